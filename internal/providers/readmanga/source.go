package readmanga

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/readmanga/internal/providers"
	"github.com/brogergvhs/readmanga/internal/ui"
	"github.com/brogergvhs/readmanga/internal/util"
	"golang.org/x/sync/errgroup"
)

const Version = "1.1.0"

// ErrNoPages is returned when no reader script yielded a page on any
// candidate URL. A chapter without pages is never returned as a success.
var ErrNoPages = errors.New("no pages found")

type Options struct {
	Site *Site
	// UserAgent overrides the randomized Firefox agent picked at
	// construction.
	UserAgent string
	Log       *ui.Logger
}

type Source struct {
	site      *Site
	parser    *Parser
	sched     *util.Scheduler
	userAgent string
	log       *ui.Logger
}

var _ providers.Source = (*Source)(nil)

func New(sched *util.Scheduler, opts Options) *Source {
	site := opts.Site
	if site == nil {
		site = DefaultSite()
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = randomUserAgent()
	}

	log := opts.Log
	if log == nil {
		log = ui.NopLogger()
	}

	return &Source{
		site:      site,
		parser:    NewParser(site),
		sched:     sched,
		userAgent: ua,
		log:       log,
	}
}

func (s *Source) Info() providers.SourceInfo {
	return providers.SourceInfo{
		Name:        s.site.Name,
		Version:     Version,
		Description: "Pulls manga from " + s.site.PrimaryURL + " and " + s.site.SecondaryURL,
		Author:      "mallone63",
		Website:     s.site.PrimaryURL,
		Language:    s.site.Language,
		Tags:        []string{"Russian"},
	}
}

func (s *Source) MangaShareURL(mangaID string) string {
	return s.site.PrimaryURL + "/" + mangaID
}

func (s *Source) UserAgent() string {
	return s.userAgent
}

func (s *Source) GlobalRequestHeaders() http.Header {
	h := http.Header{}
	h.Set("Referer", s.site.PrimaryURL+"/")
	if s.userAgent != "" {
		h.Set("User-Agent", s.userAgent)
	}
	h.Set("Accept", "image/jpeg,image/png,image/*;q=0.8")

	return h
}

func (s *Source) fetchDoc(ctx context.Context, r util.Request) (*goquery.Document, error) {
	resp, err := s.sched.Schedule(ctx, r)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", resp.URL, err)
	}

	return doc, nil
}

// withFallback runs fn against the primary domain and, if that fails, once
// more against the secondary one. The primary error is only logged.
func withFallback[T any](ctx context.Context, s *Source, op string, fn func(domain string) (T, error)) (T, error) {
	v, err := fn(s.site.PrimaryURL)
	if err == nil {
		return v, nil
	}
	if s.site.SecondaryURL == "" || ctx.Err() != nil {
		return v, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debugf("%s failed on %s, retrying on %s: %v", op, s.site.PrimaryURL, s.site.SecondaryURL, err)

	v, err = fn(s.site.SecondaryURL)
	if err != nil {
		return v, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (s *Source) GetMangaDetails(ctx context.Context, mangaID string) (*providers.Manga, error) {
	return withFallback(ctx, s, "manga details "+mangaID, func(domain string) (*providers.Manga, error) {
		doc, err := s.fetchDoc(ctx, s.detailRequest(domain, mangaID))
		if err != nil {
			return nil, err
		}

		return s.parser.ParseMangaDetails(doc, mangaID), nil
	})
}

func (s *Source) GetChapters(ctx context.Context, mangaID string) ([]providers.Chapter, error) {
	return withFallback(ctx, s, "chapters "+mangaID, func(domain string) ([]providers.Chapter, error) {
		doc, err := s.fetchDoc(ctx, s.detailRequest(domain, mangaID))
		if err != nil {
			return nil, err
		}

		return s.parser.ParseChapterList(doc, mangaID), nil
	})
}

// GetChapterDetails walks the reader URLs in order and returns the first one
// that yields pages.
func (s *Source) GetChapterDetails(ctx context.Context, mangaID, chapterID string) (*providers.ChapterDetails, error) {
	candidates := []util.Request{s.readerRequest(s.site.PrimaryURL, mangaID+"/"+chapterID)}
	if s.site.SecondaryURL != "" {
		candidates = append(candidates,
			s.readerRequest(s.site.SecondaryURL, mangaID+"/"+chapterID),
			s.readerRequest(s.site.SecondaryURL, chapterID),
		)
	}

	var lastErr error
	for _, r := range candidates {
		doc, err := s.fetchDoc(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Debugf("reader %s: %v", r.URL, err)
			lastErr = err
			continue
		}

		if pages := s.parser.ParseChapterPages(doc); len(pages) > 0 {
			s.log.Debugf("found %d pages at %s", len(pages), r.URL)
			return providers.NewChapterDetails(mangaID, chapterID, pages), nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w for %s/%s (last error: %v)", ErrNoPages, mangaID, chapterID, lastErr)
	}

	return nil, fmt.Errorf("%w for %s/%s", ErrNoPages, mangaID, chapterID)
}

type listingPage struct {
	tiles []providers.Tile
	more  bool
	err   error
}

// fetchListings loads one listing page per request concurrently. A failing
// request only marks its own slot.
func (s *Source) fetchListings(ctx context.Context, domains []string, build func(domain string) util.Request) []listingPage {
	out := make([]listingPage, len(domains))

	var g errgroup.Group
	for i, d := range domains {
		g.Go(func() error {
			doc, err := s.fetchDoc(ctx, build(d))
			if err != nil {
				out[i].err = err
				return nil
			}

			out[i].tiles = s.parser.ParseTiles(doc, d)
			out[i].more = !s.parser.IsLastPage(doc)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// GetSearchResults queries every domain still listed in the cursor (all
// configured domains on the first call) and merges the tiles primary first.
func (s *Source) GetSearchResults(ctx context.Context, query providers.SearchRequest, cursor *providers.Cursor) (*providers.PagedResults, error) {
	page := 1
	domains := s.site.Domains()
	if cursor != nil {
		if cursor.Page > 0 {
			page = cursor.Page
		}
		if len(cursor.Sources) > 0 {
			domains = cursor.Sources
		}
	}

	pages := s.fetchListings(ctx, domains, func(d string) util.Request {
		return s.searchRequest(d, query, page)
	})

	var (
		lists [][]providers.Tile
		next  []string
		errs  []error
	)
	for i, p := range pages {
		if p.err != nil {
			s.log.Warnf("search on %s failed: %v", domains[i], p.err)
			errs = append(errs, p.err)
			continue
		}

		lists = append(lists, p.tiles)
		if p.more {
			next = append(next, domains[i])
		}
	}

	if len(errs) == len(domains) {
		return nil, fmt.Errorf("search %q: %w", query.Title, errors.Join(errs...))
	}

	var nextCursor *providers.Cursor
	if len(next) > 0 {
		nextCursor = &providers.Cursor{Page: page + 1, Sources: next}
	}

	return providers.NewPagedResults(providers.MergeTiles(lists...), nextCursor), nil
}

func (s *Source) GetTags(ctx context.Context) ([]providers.TagSection, error) {
	doc, err := s.fetchDoc(ctx, s.get(s.site.PrimaryURL, s.site.TagsPath, nil))
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}

	return s.parser.ParseTags(doc), nil
}

// GetHomePageSections reports every section empty first, then again with its
// items once loaded. Sections load concurrently; one failing section does
// not affect the others.
func (s *Source) GetHomePageSections(ctx context.Context, sectionCallback func(providers.HomeSection)) error {
	var sections []Section
	for _, sec := range s.site.Sections {
		if s.site.sectionDomain(sec) == "" {
			continue
		}
		sections = append(sections, sec)
	}

	for _, sec := range sections {
		sectionCallback(providers.NewHomeSection(sec.ID, sec.Title, sec.MoreSortType != ""))
	}

	var (
		mu     sync.Mutex
		failed []error
		g      errgroup.Group
	)

	for _, sec := range sections {
		g.Go(func() error {
			domain := s.site.sectionDomain(sec)
			doc, err := s.fetchDoc(ctx, s.listRequest(domain, sec.SortType, 0))

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.log.Warnf("home section %s failed: %v", sec.ID, err)
				failed = append(failed, fmt.Errorf("section %s: %w", sec.ID, err))
				return nil
			}

			hs := providers.NewHomeSection(sec.ID, sec.Title, sec.MoreSortType != "")
			hs.Items = providers.MergeTiles(s.parser.ParseTiles(doc, domain))
			sectionCallback(hs)
			return nil
		})
	}
	_ = g.Wait()

	if len(sections) > 0 && len(failed) == len(sections) {
		return fmt.Errorf("home page: %w", errors.Join(failed...))
	}

	return nil
}

func (s *Source) GetViewMoreItems(ctx context.Context, sectionID string, cursor *providers.Cursor) (*providers.PagedResults, error) {
	sec, ok := s.site.section(sectionID)
	domain := s.site.sectionDomain(sec)
	if !ok || sec.MoreSortType == "" || domain == "" {
		return providers.NewPagedResults(nil, nil), nil
	}

	offset := 0
	if cursor != nil {
		offset = cursor.Offset
	}

	doc, err := s.fetchDoc(ctx, s.listRequest(domain, sec.MoreSortType, offset))
	if err != nil {
		return nil, fmt.Errorf("view more %s: %w", sectionID, err)
	}

	var next *providers.Cursor
	if !s.parser.IsLastPage(doc) {
		next = &providers.Cursor{Offset: offset + s.site.ViewMorePageSize}
	}

	return providers.NewPagedResults(s.parser.ParseTiles(doc, domain), next), nil
}
