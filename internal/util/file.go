package util

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ComicInfo is the subset of the ComicRack metadata readers pick up from
// ComicInfo.xml at the root of a CBZ.
type ComicInfo struct {
	XMLName   xml.Name `xml:"ComicInfo"`
	Title     string   `xml:"Title,omitempty"`
	Series    string   `xml:"Series,omitempty"`
	Number    string   `xml:"Number,omitempty"`
	Volume    int      `xml:"Volume,omitempty"`
	Writer    string   `xml:"Writer,omitempty"`
	Penciller string   `xml:"Penciller,omitempty"`
	Genre     string   `xml:"Genre,omitempty"`
	Web       string   `xml:"Web,omitempty"`
	PageCount int      `xml:"PageCount,omitempty"`
	Year      int      `xml:"Year,omitempty"`
	Month     int      `xml:"Month,omitempty"`
	Day       int      `xml:"Day,omitempty"`
	Manga     string   `xml:"Manga,omitempty"`
	Language  string   `xml:"LanguageISO,omitempty"`
}

// CreateCBZ zips the page files, sorted by name, into output. A non-nil info
// is written as ComicInfo.xml. A partially written archive is removed.
func CreateCBZ(files []string, output string, info *ComicInfo) (err error) {
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cbz: %w", err)
	}

	defer func() {
		err = errors.Join(err, out.Close())
		if err != nil {
			_ = os.Remove(output)
		}
	}()

	z := zip.NewWriter(out)
	defer func() {
		err = errors.Join(err, z.Close())
	}()

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, file := range sorted {
		if err := addFileToZip(z, file); err != nil {
			return fmt.Errorf("cbz %s: %w", filepath.Base(file), err)
		}
	}

	if info != nil {
		if err := writeComicInfo(z, info); err != nil {
			return fmt.Errorf("cbz metadata: %w", err)
		}
	}

	return nil
}

func writeComicInfo(z *zip.Writer, info *ComicInfo) error {
	w, err := z.Create("ComicInfo.xml")
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(info); err != nil {
		return err
	}

	return enc.Close()
}

func addFileToZip(z *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(file)
	// Images are already compressed.
	header.Method = zip.Store

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
