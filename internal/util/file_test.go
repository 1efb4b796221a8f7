package util

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLog struct{}

func (nopLog) Infof(string, ...any) {}
func (nopLog) Warnf(string, ...any) {}

func TestCreateCBZ(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"page_002.jpg", "page_001.jpg"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		files = append(files, p)
	}

	out := filepath.Join(dir, "0001.cbz")
	err := CreateCBZ(files, out, &ComicInfo{Title: "Начало", Series: "Ван-Пис", Number: "1", PageCount: 2})
	require.NoError(t, err)

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"page_001.jpg", "page_002.jpg", "ComicInfo.xml"}, names)

	rc, err := zr.File[2].Open()
	require.NoError(t, err)
	defer rc.Close()
	meta, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(meta), "<Series>Ван-Пис</Series>")
	assert.Contains(t, string(meta), "<PageCount>2</PageCount>")
	assert.NotContains(t, string(meta), "<Writer>")
}

func TestCreateCBZMissingPageRemovesArchive(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "broken.cbz")

	err := CreateCBZ([]string{filepath.Join(dir, "nope.jpg")}, out, nil)
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestCleanupUnfinishedTempFolders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0001"+TempSuffix), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0002.cbz"), nil, 0o644))

	CleanupUnfinishedTempFolders(dir, nopLog{})
	assert.NoDirExists(t, filepath.Join(dir, "0001"+TempSuffix))
	assert.FileExists(t, filepath.Join(dir, "0002.cbz"))

	RemoveIfEmpty(dir, nopLog{})
	assert.DirExists(t, dir)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	RemoveIfEmpty(empty, nopLog{})
	assert.NoDirExists(t, empty)
}

func TestInterruptContextParentCancel(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "0001"+TempSuffix)
	require.NoError(t, os.Mkdir(tmp, 0o755))

	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := InterruptContext(parent, dir, nopLog{})
	defer stop()

	cancel()
	<-ctx.Done()

	// Only a signal triggers cleanup.
	assert.DirExists(t, tmp)
}
