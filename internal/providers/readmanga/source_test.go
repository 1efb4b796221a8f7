package readmanga

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brogergvhs/readmanga/internal/providers"
	"github.com/brogergvhs/readmanga/internal/ui"
	"github.com/brogergvhs/readmanga/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDomain is one site domain serving canned pages keyed by path. Every
// request is recorded with its query.
type fakeDomain struct {
	*httptest.Server

	mu     sync.Mutex
	hits   []*http.Request
	handle func(w http.ResponseWriter, r *http.Request)
}

func newFakeDomain(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) *fakeDomain {
	t.Helper()

	d := &fakeDomain{handle: handle}
	d.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		d.mu.Lock()
		d.hits = append(d.hits, r)
		d.mu.Unlock()

		d.handle(w, r)
	}))
	t.Cleanup(d.Close)

	return d
}

func (d *fakeDomain) requests() []*http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*http.Request(nil), d.hits...)
}

func pages(routes map[string]string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, "<html><body>"+body+"</body></html>")
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

func newTestSource(t *testing.T, primary, secondary *fakeDomain, tweak ...func(*Site)) *Source {
	t.Helper()

	site := DefaultSite()
	site.PrimaryURL = primary.URL
	site.SecondaryURL = ""
	if secondary != nil {
		site.SecondaryURL = secondary.URL
	}
	for _, fn := range tweak {
		fn(site)
	}
	require.NoError(t, site.Validate())

	tr := &http.Transport{}
	t.Cleanup(tr.CloseIdleConnections)

	client, err := util.NewHTTPClient(util.HTTPClientOptions{Timeout: 5 * time.Second, Transport: tr})
	require.NoError(t, err)

	sched := util.NewScheduler(client, util.SchedulerOptions{RequestsPerSecond: 1000})

	return New(sched, Options{Site: site, UserAgent: "test-agent", Log: ui.NopLogger()})
}

func TestNewPicksRandomUserAgent(t *testing.T) {
	s := New(nil, Options{})

	assert.True(t, strings.HasPrefix(s.UserAgent(), "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:77.0) Gecko/20100101 Firefox/78.0"))
	assert.Equal(t, s.UserAgent(), s.GlobalRequestHeaders().Get("User-Agent"), "agent is fixed per instance")
	assert.Equal(t, "https://readmanga.live/one_piece", s.MangaShareURL("one_piece"))
}

func TestGlobalRequestHeaders(t *testing.T) {
	s := New(nil, Options{UserAgent: "agent/1"})
	h := s.GlobalRequestHeaders()

	assert.Equal(t, "https://readmanga.live/", h.Get("Referer"))
	assert.Equal(t, "agent/1", h.Get("User-Agent"))
	assert.Equal(t, "image/jpeg,image/png,image/*;q=0.8", h.Get("Accept"))
}

func TestInfo(t *testing.T) {
	info := New(nil, Options{}).Info()

	assert.Equal(t, "ReadManga", info.Name)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "ru", info.Language)
}

func TestGetMangaDetailsFallsBackToSecondary(t *testing.T) {
	primary := newFakeDomain(t, notFound)
	secondary := newFakeDomain(t, pages(map[string]string{"/one_piece": detailsPage}))
	s := newTestSource(t, primary, secondary)

	m, err := s.GetMangaDetails(context.Background(), "one_piece")
	require.NoError(t, err)
	assert.Equal(t, "Ван-Пис", m.Title())

	require.Len(t, primary.requests(), 1)
	reqs := secondary.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "1", reqs[0].URL.Query().Get("mtr"))
	assert.Equal(t, secondary.URL+"/", reqs[0].Header.Get("Referer"))
	assert.Equal(t, "test-agent", reqs[0].Header.Get("User-Agent"))
	assert.Equal(t, "application/x-www-form-urlencoded", reqs[0].Header.Get("Content-Type"))
}

func TestGetMangaDetailsPrimaryWins(t *testing.T) {
	primary := newFakeDomain(t, pages(map[string]string{"/one_piece": detailsPage}))
	secondary := newFakeDomain(t, notFound)
	s := newTestSource(t, primary, secondary)

	_, err := s.GetMangaDetails(context.Background(), "one_piece")
	require.NoError(t, err)
	assert.Empty(t, secondary.requests())
}

func TestGetMangaDetailsBothFail(t *testing.T) {
	primary := newFakeDomain(t, notFound)
	secondary := newFakeDomain(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	s := newTestSource(t, primary, secondary)

	_, err := s.GetMangaDetails(context.Background(), "one_piece")
	require.Error(t, err)

	var he *util.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadGateway, he.StatusCode, "secondary error is surfaced")
}

func TestGetChapters(t *testing.T) {
	primary := newFakeDomain(t, pages(map[string]string{"/one_piece": `<table>
<tr><td><a class="cp-l" href="/one_piece/vol1/2">2</a></td><td class="date" data-date="16.03.24"></td></tr>
<tr><td><a class="cp-l" href="/one_piece/vol1/1">1</a></td><td class="date" data-date="15.03.24"></td></tr>
</table>`}))
	s := newTestSource(t, primary, nil)

	chapters, err := s.GetChapters(context.Background(), "one_piece")
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "vol1/1", chapters[0].ID)
	assert.Equal(t, "vol1/2", chapters[1].ID)
}

const readerPage = `<script>rm_h.readerInit(0, [['https://h.example.org/','',"p/1.jpg?t=1",1,1],['https://h.example.org/','',"p/2.jpg",1,1]]);</script>`

func TestGetChapterDetailsWalksCandidates(t *testing.T) {
	primary := newFakeDomain(t, notFound)
	secondary := newFakeDomain(t, pages(map[string]string{
		"/one_piece/vol1/1": `<p>reader moved</p>`,
		"/vol1/1":           readerPage,
	}))
	s := newTestSource(t, primary, secondary)

	details, err := s.GetChapterDetails(context.Background(), "one_piece", "vol1/1")
	require.NoError(t, err)

	assert.Equal(t, "one_piece", details.MangaID)
	assert.Equal(t, "vol1/1", details.ID)
	assert.Equal(t, []string{"https://h.example.org/p/1.jpg", "https://h.example.org/p/2.jpg"}, details.Pages)

	var paths []string
	for _, r := range secondary.requests() {
		paths = append(paths, r.URL.Path)
	}
	assert.Equal(t, []string{"/one_piece/vol1/1", "/vol1/1"}, paths)
}

func TestGetChapterDetailsNoPages(t *testing.T) {
	primary := newFakeDomain(t, pages(map[string]string{"/one_piece/vol1/1": `<p>empty</p>`}))
	secondary := newFakeDomain(t, notFound)
	s := newTestSource(t, primary, secondary)

	_, err := s.GetChapterDetails(context.Background(), "one_piece", "vol1/1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPages))
}

func tile(id, title, image string) string {
	return fmt.Sprintf(`<div class="tile"><h3><a href="/%s">%s</a></h3><img class="lazy" src="%s"></div>`, id, title, image)
}

const nextArrow = `<a class="nextLink"><i class="fa fa-arrow-right"></i></a>`

func TestGetSearchResultsMergesDomains(t *testing.T) {
	primary := newFakeDomain(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			_, _ = fmt.Fprint(w, tile("a", "A", "https://img/a.jpg")+tile("b", "B", "https://img/b1.jpg")+nextArrow)
			return
		}
		_, _ = fmt.Fprint(w, tile("d", "D", "https://img/d.jpg"))
	})
	secondary := newFakeDomain(t, pages(map[string]string{
		"/search/advancedResults": tile("b", "B adult", "https://img/b2.jpg") + tile("c", "C", "https://img/c.jpg"),
	}))
	s := newTestSource(t, primary, secondary)

	query := providers.SearchRequest{Title: "piece", IncludedTags: []providers.Tag{providers.NewTag("el_5", "Боевик")}}

	res, err := s.GetSearchResults(context.Background(), query, nil)
	require.NoError(t, err)

	assert.Equal(t, []providers.Tile{
		providers.NewTile("a", "A", "https://img/a.jpg"),
		providers.NewTile("b", "B", "https://img/b1.jpg"),
		providers.NewTile("c", "C", "https://img/c.jpg"),
	}, res.Results)
	require.NotNil(t, res.Cursor)
	assert.Equal(t, 2, res.Cursor.Page)
	assert.Equal(t, []string{primary.URL}, res.Cursor.Sources)

	q := primary.requests()[0].URL.Query()
	assert.Equal(t, "piece", q.Get("q"))
	assert.Equal(t, "0", q.Get("offset"))
	assert.Equal(t, "RATING", q.Get("sortType"))
	assert.Equal(t, "in", q.Get("el_5"))

	res, err = s.GetSearchResults(context.Background(), query, res.Cursor)
	require.NoError(t, err)
	assert.Equal(t, []providers.Tile{providers.NewTile("d", "D", "https://img/d.jpg")}, res.Results)
	assert.Nil(t, res.Cursor)

	reqs := primary.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "50", reqs[1].URL.Query().Get("offset"))
	assert.Len(t, secondary.requests(), 1, "exhausted domains are not queried again")
}

func TestGetSearchResultsFormMode(t *testing.T) {
	primary := newFakeDomain(t, pages(map[string]string{"/search": tile("a", "A", "https://img/a.jpg")}))
	s := newTestSource(t, primary, nil, func(site *Site) { site.SearchMode = SearchForm })

	res, err := s.GetSearchResults(context.Background(), providers.SearchRequest{Title: "ван пис"}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)

	r := primary.requests()[0]
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "ван пис", r.PostForm.Get("q"))
}

func TestGetSearchResultsPartialFailure(t *testing.T) {
	primary := newFakeDomain(t, notFound)
	secondary := newFakeDomain(t, pages(map[string]string{"/search/advancedResults": tile("c", "C", "https://img/c.jpg")}))
	s := newTestSource(t, primary, secondary)

	res, err := s.GetSearchResults(context.Background(), providers.SearchRequest{Title: "c"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []providers.Tile{providers.NewTile("c", "C", "https://img/c.jpg")}, res.Results)
}

func TestGetSearchResultsAllFail(t *testing.T) {
	s := newTestSource(t, newFakeDomain(t, notFound), newFakeDomain(t, notFound))

	_, err := s.GetSearchResults(context.Background(), providers.SearchRequest{Title: "x"}, nil)
	require.Error(t, err)
	assert.True(t, util.IsNotFound(err))
}

func TestGetHomePageSections(t *testing.T) {
	primary := newFakeDomain(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("sortType") {
		case "votes":
			_, _ = fmt.Fprint(w, tile("top", "Top", "https://img/top.jpg"))
		case "created":
			_, _ = fmt.Fprint(w, tile("new", "New", "https://img/new.jpg"))
		default:
			http.NotFound(w, r)
		}
	})
	secondary := newFakeDomain(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	s := newTestSource(t, primary, secondary)

	var (
		mu   sync.Mutex
		seen []providers.HomeSection
	)
	err := s.GetHomePageSections(context.Background(), func(hs providers.HomeSection) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, hs)
	})
	require.NoError(t, err)

	require.Len(t, seen, 5)
	for i, id := range []string{"0", "1", "2"} {
		assert.Equal(t, id, seen[i].ID)
		assert.Empty(t, seen[i].Items, "sections are announced empty first")
		assert.True(t, seen[i].ViewMore)
	}

	loaded := map[string][]providers.Tile{}
	for _, hs := range seen[3:] {
		loaded[hs.ID] = hs.Items
	}
	assert.Equal(t, []providers.Tile{providers.NewTile("top", "Top", "https://img/top.jpg")}, loaded["0"])
	assert.Equal(t, []providers.Tile{providers.NewTile("new", "New", "https://img/new.jpg")}, loaded["1"])
	assert.NotContains(t, loaded, "2")
}

func TestGetViewMoreItems(t *testing.T) {
	primary := newFakeDomain(t, pages(map[string]string{"/list": tile("new", "New", "/img/new.jpg") + nextArrow}))
	s := newTestSource(t, primary, newFakeDomain(t, notFound))

	res, err := s.GetViewMoreItems(context.Background(), "1", &providers.Cursor{Offset: 70})
	require.NoError(t, err)

	assert.Equal(t, []providers.Tile{providers.NewTile("new", "New", primary.URL+"/img/new.jpg")}, res.Results)
	require.NotNil(t, res.Cursor)
	assert.Equal(t, 140, res.Cursor.Offset)

	q := primary.requests()[0].URL.Query()
	assert.Equal(t, "DATE_CREATE", q.Get("sortType"))
	assert.Equal(t, "70", q.Get("offset"))
}

func TestGetViewMoreItemsUnknownSection(t *testing.T) {
	primary := newFakeDomain(t, notFound)
	s := newTestSource(t, primary, nil)

	res, err := s.GetViewMoreItems(context.Background(), "42", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Nil(t, res.Cursor)
	assert.Empty(t, primary.requests())
}

func TestGetTags(t *testing.T) {
	primary := newFakeDomain(t, pages(map[string]string{
		"/search/advanced": `<ul><li><input id="el_5"><label><span title="Боевик"></span></label></li></ul>`,
	}))
	s := newTestSource(t, primary, nil)

	sections, err := s.GetTags(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, []providers.Tag{providers.NewTag("el_5", "Боевик")}, sections[0].Tags)
}

func datePage(day string) string {
	return `<table><tr><td class="date" data-date="` + day + `"></td></tr></table>`
}

func TestFilterUpdatedMangaByDetails(t *testing.T) {
	primary := newFakeDomain(t, pages(map[string]string{
		"/a": datePage("20.03.24"),
		"/b": datePage("01.03.24"),
		"/d": datePage("19.03.24"),
	}))
	secondary := newFakeDomain(t, pages(map[string]string{"/c": datePage("21.03.24")}))
	s := newTestSource(t, primary, secondary)

	var calls [][]string
	err := s.FilterUpdatedManga(context.Background(), func(u providers.MangaUpdates) {
		calls = append(calls, u.IDs)
	}, time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC), []string{"d", "a", "b", "c", "missing"})

	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"d", "a", "c"}, calls[0])
}

func TestFilterUpdatedMangaAllFail(t *testing.T) {
	s := newTestSource(t, newFakeDomain(t, notFound), newFakeDomain(t, notFound))

	var got []string
	err := s.FilterUpdatedManga(context.Background(), func(u providers.MangaUpdates) {
		got = u.IDs
	}, time.Now(), []string{"a"})

	require.Error(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterUpdatedMangaByListing(t *testing.T) {
	row := func(id, raw string) string {
		return fmt.Sprintf(`<div class="tile" data-date-raw="%s"><h3><a href="/%s">%s</a></h3></div>`, raw, id, id)
	}

	primary := newFakeDomain(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "":
			_, _ = fmt.Fprint(w, row("x", "2024-03-22 10:00:00")+row("b", "2024-03-21 10:00:00")+nextArrow)
		case "70":
			_, _ = fmt.Fprint(w, row("a", "2024-03-20 10:00:00")+row("c", "2024-03-01 10:00:00")+nextArrow)
		default:
			t.Errorf("unexpected page %s", r.URL.RawQuery)
			http.NotFound(w, r)
		}
	})
	secondary := newFakeDomain(t, pages(map[string]string{"/list": row("d", "2024-03-19 00:00:00")}))
	s := newTestSource(t, primary, secondary, func(site *Site) { site.UpdateMode = UpdatesByListing })

	var got []string
	err := s.FilterUpdatedManga(context.Background(), func(u providers.MangaUpdates) {
		got = u.IDs
	}, time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC), []string{"a", "b", "c", "d"})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, got)

	for _, r := range primary.requests() {
		assert.Equal(t, "updated", r.URL.Query().Get("sortType"))
	}
}

func TestFilterUpdatedMangaListingPageBudget(t *testing.T) {
	primary := newFakeDomain(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<div class="tile" data-date-raw="2030-01-01 00:00:00"><h3><a href="/x">x</a></h3></div>`+nextArrow)
	})
	s := newTestSource(t, primary, nil, func(site *Site) {
		site.UpdateMode = UpdatesByListing
		site.MaxUpdatePages = 3
	})

	err := s.FilterUpdatedManga(context.Background(), func(providers.MangaUpdates) {}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, primary.requests(), 3)
}
