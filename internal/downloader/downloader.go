package downloader

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/readmanga/internal/ui"
	"github.com/brogergvhs/readmanga/internal/util"
	"golang.org/x/sync/errgroup"
)

// Progress receives per-chapter download progress. *ui.ProgressHandle
// implements it.
type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type Options struct {
	// Headers are sent with every image request, typically the source's
	// GlobalRequestHeaders.
	Headers    http.Header
	SkipBroken bool
	// AllowExt limits saved pages to these extensions. Empty allows all.
	AllowExt []string
	Retries  int
	Timeout  time.Duration
	Log      *ui.Logger
}

type Downloader struct {
	client     *http.Client
	headers    http.Header
	skipBroken bool
	allowExt   []string
	retries    int
	timeout    time.Duration
	log        *ui.Logger
}

func New(c *http.Client, opts Options) *Downloader {
	d := &Downloader{
		client:     c,
		headers:    opts.Headers.Clone(),
		skipBroken: opts.SkipBroken,
		retries:    max(opts.Retries, 1),
		timeout:    opts.Timeout,
		log:        opts.Log,
	}
	for _, e := range opts.AllowExt {
		d.allowExt = append(d.allowExt, strings.TrimPrefix(strings.ToLower(e), "."))
	}
	if d.timeout <= 0 {
		d.timeout = 30 * time.Second
	}
	if d.log == nil {
		d.log = ui.NopLogger()
	}

	return d
}

type chapterState struct {
	mu     sync.Mutex
	done   int
	total  int
	bytes  int64
	report Progress
}

func (cs *chapterState) addBytes(n int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.bytes += n
	cs.report.Update(cs.done, cs.total, cs.bytes)
}

func (cs *chapterState) finishOne() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.done++
	cs.report.Update(cs.done, cs.total, cs.bytes)
}

// DownloadPages saves urls into folder as page_001.ext and so on, at most
// workers at a time. It returns the saved files in page order and the bytes
// written. Failed pages fail the chapter unless SkipBroken is set.
func (d *Downloader) DownloadPages(ctx context.Context, urls []string, folder string, workers int, ph Progress) ([]string, int64, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, 0, err
	}

	cs := &chapterState{total: len(urls), report: ph}
	ph.Update(0, cs.total, 0)
	defer ph.MarkDone()

	files := make([]string, len(urls))
	failed := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, u := range urls {
		g.Go(func() error {
			defer cs.finishOne()

			ext := pageExt(u)
			if !d.allowed(ext) {
				d.log.Debugf("skipping page %d (%s): extension not allowed", i+1, u)
				return nil
			}

			out := filepath.Join(folder, fmt.Sprintf("page_%03d%s", i+1, ext))
			if err := d.downloadWithRetry(gctx, u, out, cs.addBytes); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = fmt.Errorf("page %d: %w", i+1, err)
				return nil
			}

			files[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return compact(files), cs.bytes, err
	}

	var errs []error
	for _, err := range failed {
		if err != nil {
			d.log.Debugf("%v", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 && !d.skipBroken {
		return compact(files), cs.bytes, fmt.Errorf("failed %d/%d pages (use --skip-broken to continue): %w", len(errs), len(urls), errs[0])
	}

	return compact(files), cs.bytes, nil
}

func compact(files []string) []string {
	return slices.DeleteFunc(slices.Clone(files), func(f string) bool { return f == "" })
}

func (d *Downloader) allowed(ext string) bool {
	if len(d.allowExt) == 0 {
		return true
	}

	return slices.Contains(d.allowExt, strings.TrimPrefix(ext, "."))
}

// pageExt reads the extension from the URL path, ignoring any query.
func pageExt(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}

	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 5 {
		return ".jpg"
	}

	return ext
}

func (d *Downloader) downloadWithRetry(ctx context.Context, u, output string, progress func(int64)) error {
	var err error
	for attempt := 1; attempt <= d.retries; attempt++ {
		var written int64
		err = d.download(ctx, u, output, func(n int64) {
			written += n
			progress(n)
		})
		if err == nil {
			return nil
		}

		// Bytes from a failed attempt are not counted.
		if written > 0 {
			progress(-written)
		}

		if attempt == d.retries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	return err
}

func (d *Downloader) download(ctx context.Context, u, output string, progress func(int64)) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	for k, vs := range d.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &util.HTTPError{StatusCode: resp.StatusCode, URL: u}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); !strings.HasPrefix(mt, "image/") {
			return fmt.Errorf("unexpected MIME: %s", ct)
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = copyWithProgress(f, resp.Body, progress)

	return err
}
