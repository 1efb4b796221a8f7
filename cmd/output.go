package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/brogergvhs/readmanga/internal/providers"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))

	return tw
}

func printManga(w io.Writer, m *providers.Manga, shareURL string) {
	fmt.Fprintf(w, "%s\n", m.Title())
	for _, t := range m.Titles[min(1, len(m.Titles)):] {
		fmt.Fprintf(w, "  aka %s\n", t)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "ID:      %s\n", m.ID)
	fmt.Fprintf(w, "URL:     %s\n", shareURL)
	fmt.Fprintf(w, "Status:  %s\n", m.Status)
	if m.Author != "" {
		fmt.Fprintf(w, "Author:  %s\n", m.Author)
	}
	if m.Artist != "" && m.Artist != m.Author {
		fmt.Fprintf(w, "Artist:  %s\n", m.Artist)
	}
	if m.Image != "" {
		fmt.Fprintf(w, "Cover:   %s\n", m.Image)
	}
	for _, sec := range m.Tags {
		labels := make([]string, 0, len(sec.Tags))
		for _, t := range sec.Tags {
			labels = append(labels, t.Label)
		}
		fmt.Fprintf(w, "Genres:  %s\n", strings.Join(labels, ", "))
	}
	if m.Description != "" {
		fmt.Fprintf(w, "\n%s\n", m.Description)
	}
}

func printChapters(w io.Writer, list []providers.Chapter) error {
	tw := newTable(w, "#", "ID", "DATE", "NAME")
	for _, c := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.Number, c.ID, c.Time.Format("2006-01-02"), c.Name)
	}

	return tw.Flush()
}

func printTiles(w io.Writer, tiles []providers.Tile) error {
	tw := newTable(w, "ID", "TITLE", "IMAGE")
	for _, t := range tiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Title, t.Image)
	}

	return tw.Flush()
}

func printPaged(w io.Writer, res *providers.PagedResults) error {
	if err := printTiles(w, res.Results); err != nil {
		return err
	}

	if res.Cursor != nil {
		fmt.Fprintf(w, "\nmore: --cursor '%s'\n", res.Cursor.Encode())
	}

	return nil
}
