package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	done    int
	total   int
	bytes   int64
	marked  bool
	updates int
}

func (r *recorder) Update(done, total int, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done, r.total, r.bytes = done, total, bytes
	r.updates++
}

func (r *recorder) MarkDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked = true
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://readmanga.live/" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		switch {
		case strings.HasPrefix(r.URL.Path, "/missing"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/html"):
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg:" + r.URL.Path))
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func headers() http.Header {
	h := http.Header{}
	h.Set("Referer", "https://readmanga.live/")
	return h
}

func TestDownloadPages(t *testing.T) {
	srv := imageServer(t)
	dir := filepath.Join(t.TempDir(), "ch")
	d := New(srv.Client(), Options{Headers: headers(), Retries: 1})

	rec := &recorder{}
	files, written, err := d.DownloadPages(context.Background(), []string{
		srv.URL + "/p/1.jpg?t=1",
		srv.URL + "/p/2.png",
		srv.URL + "/p/3",
	}, dir, 2, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "page_001.jpg"),
		filepath.Join(dir, "page_002.png"),
		filepath.Join(dir, "page_003.jpg"),
	}, files)

	b, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "jpeg:/p/1.jpg", string(b))

	assert.Equal(t, int64(len("jpeg:/p/1.jpg")+len("jpeg:/p/2.png")+len("jpeg:/p/3")), written)
	assert.Equal(t, 3, rec.done)
	assert.Equal(t, 3, rec.total)
	assert.Equal(t, written, rec.bytes)
	assert.True(t, rec.marked)
}

func TestDownloadPagesFailsChapter(t *testing.T) {
	srv := imageServer(t)
	d := New(srv.Client(), Options{Headers: headers(), Retries: 1})

	files, _, err := d.DownloadPages(context.Background(), []string{
		srv.URL + "/p/1.jpg",
		srv.URL + "/missing/2.jpg",
		srv.URL + "/html/3.jpg",
	}, t.TempDir(), 3, &recorder{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed 2/3 pages")
	assert.Len(t, files, 1)
}

func TestDownloadPagesSkipBroken(t *testing.T) {
	srv := imageServer(t)
	d := New(srv.Client(), Options{Headers: headers(), Retries: 1, SkipBroken: true})

	files, _, err := d.DownloadPages(context.Background(), []string{
		srv.URL + "/missing/1.jpg",
		srv.URL + "/p/2.jpg",
	}, t.TempDir(), 1, &recorder{})

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "page_002.jpg", filepath.Base(files[0]))
}

func TestDownloadPagesSendsHeaders(t *testing.T) {
	srv := imageServer(t)
	d := New(srv.Client(), Options{Retries: 1})

	_, _, err := d.DownloadPages(context.Background(), []string{srv.URL + "/p/1.jpg"}, t.TempDir(), 1, &recorder{})
	require.Error(t, err, "no referer means the CDN refuses")
}

func TestDownloadPagesAllowExt(t *testing.T) {
	srv := imageServer(t)
	d := New(srv.Client(), Options{Headers: headers(), Retries: 1, AllowExt: []string{".PNG"}})

	rec := &recorder{}
	files, _, err := d.DownloadPages(context.Background(), []string{
		srv.URL + "/p/1.gif",
		srv.URL + "/p/2.png",
	}, t.TempDir(), 2, rec)

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "page_002.png", filepath.Base(files[0]))
	assert.Equal(t, 2, rec.done, "skipped pages still count as done")
}

func TestDownloadPagesCancelled(t *testing.T) {
	srv := imageServer(t)
	d := New(srv.Client(), Options{Headers: headers(), Retries: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := d.DownloadPages(ctx, []string{srv.URL + "/p/1.jpg"}, t.TempDir(), 1, &recorder{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPageExt(t *testing.T) {
	assert.Equal(t, ".jpg", pageExt("https://h/p/1.JPG?t=3"))
	assert.Equal(t, ".webp", pageExt("https://h/p/1.webp"))
	assert.Equal(t, ".jpg", pageExt("https://h/p/1"))
	assert.Equal(t, ".jpg", pageExt("https://h/p/1.somethinglong"))
}
