package readmanga

import (
	"html"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/readmanga/internal/providers"
)

var (
	// ['https://host/','',"path/01.jpg?t=1",1200,1800]
	reTriplePage = regexp.MustCompile(`\[\s*'(https?://[^']*)'\s*,\s*'[^']*'\s*,\s*"([^"]*)"`)
	reQuotedURL  = regexp.MustCompile(`['"](https?://[^'"\s]+)['"]`)
)

// Parser maps parsed pages of one site to records. It performs no I/O.
type Parser struct {
	site *Site
}

func NewParser(site *Site) *Parser {
	return &Parser{site: site}
}

func (p *Parser) ParseMangaDetails(doc *goquery.Document, mangaID string) *providers.Manga {
	s := p.site

	var titles []string
	for _, sel := range s.TitleSelectors {
		titles = append(titles, strings.TrimSpace(doc.Find(sel).First().Text()))
	}

	image, _ := doc.Find(s.CoverSelector).First().Attr("src")

	author := joinFirstNonEmpty(doc, s.AuthorSelectors)
	artist := joinFirstNonEmpty(doc, s.ArtistSelectors)
	if artist == "" {
		artist = author
	}

	status := providers.StatusOngoing
	if s.StatusSelector != "" && s.CompletedKeyword != "" {
		if strings.Contains(doc.Find(s.StatusSelector).First().Text(), s.CompletedKeyword) {
			status = providers.StatusCompleted
		}
	}

	m := providers.NewManga(mangaID, titles, strings.TrimSpace(image), status)
	m.Author = author
	m.Artist = artist
	m.Description = decodeEntities(strings.TrimSpace(doc.Find(s.DescriptionSelector).Text()))

	if genres := p.parseGenres(doc); len(genres) > 0 {
		m.Tags = []providers.TagSection{providers.NewTagSection("0", "genres", genres)}
	}

	return m
}

// joinFirstNonEmpty joins the texts matched by the first selector that
// yields any node.
func joinFirstNonEmpty(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		nodes := doc.Find(sel)
		if nodes.Length() == 0 {
			continue
		}

		var parts []string
		nodes.Each(func(_ int, a *goquery.Selection) {
			if t := strings.TrimSpace(a.Text()); t != "" {
				parts = append(parts, t)
			}
		})

		return strings.Join(parts, " ")
	}

	return ""
}

func (p *Parser) parseGenres(doc *goquery.Document) []providers.Tag {
	if p.site.GenreSelector == "" {
		return nil
	}

	var tags []providers.Tag
	seen := map[string]bool{}

	doc.Find(p.site.GenreSelector).Each(func(_ int, g *goquery.Selection) {
		label := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(g.Text()), ","))
		if label == "" {
			return
		}

		id := label
		if href, ok := g.Attr("href"); ok {
			if seg := lastPathSegment(href); seg != "" {
				id = seg
			}
		}

		if seen[id] {
			return
		}
		seen[id] = true
		tags = append(tags, providers.NewTag(id, label))
	})

	return tags
}

// ParseChapterList pairs chapter anchors with date cells. The site lists the
// newest chapter first, so both are reversed and numbered from the oldest.
func (p *Parser) ParseChapterList(doc *goquery.Document, mangaID string) []providers.Chapter {
	s := p.site

	links := doc.Find(s.ChapterLinkSelector)
	dates := doc.Find(s.ChapterDateSelector)
	nl, nd := links.Length(), dates.Length()

	prefix := "/" + mangaID + "/"
	out := []providers.Chapter{}

	for i := 0; i < nl && i < nd; i++ {
		a := links.Eq(nl - 1 - i)
		href, ok := a.Attr("href")
		if !ok {
			continue
		}

		id := chapterID(href, prefix)
		if id == "" {
			continue
		}

		t, ok := s.cellTime(dates.Eq(nd - 1 - i))
		if !ok {
			continue
		}

		name := strings.Join(strings.Fields(a.Text()), " ")
		out = append(out, providers.NewChapter(mangaID, id, len(out)+1, name, s.Language, t))
	}

	return out
}

func chapterID(href, prefix string) string {
	href = strings.TrimSpace(href)
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		href = u.EscapedPath()
	}

	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}

	return strings.Trim(strings.Replace(href, prefix, "", 1), "/")
}

// ParseChapterPages reads the page list out of the first reader init script.
// An empty result means no such script was found.
func (p *Parser) ParseChapterPages(doc *goquery.Document) []string {
	s := p.site
	pages := []string{}

	doc.Find("script").EachWithBreak(func(_ int, sc *goquery.Selection) bool {
		body := sc.Text()
		if !containsAny(body, s.ReaderMarkers) {
			return true
		}

		seen := map[string]bool{}
		for _, raw := range readerURLs(body) {
			u := s.cleanPageURL(raw)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			pages = append(pages, u)
		}

		return false
	})

	return pages
}

func readerURLs(script string) []string {
	var out []string

	if m := reTriplePage.FindAllStringSubmatch(script, -1); len(m) > 0 {
		for _, g := range m {
			out = append(out, g[1]+g[2])
		}
		return out
	}

	for _, g := range reQuotedURL.FindAllStringSubmatch(script, -1) {
		out = append(out, g[1])
	}

	return out
}

// cleanPageURL strips tracking queries from hosts off the whitelist and
// rejects placeholder images.
func (s *Site) cleanPageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !s.whitelisted(raw) {
		if i := strings.Index(raw, "?"); i >= 0 {
			raw = raw[:i]
		}
	}

	if containsAny(raw, s.PlaceholderFragments) {
		return ""
	}

	return raw
}

func (s *Site) whitelisted(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, w := range s.CDNWhitelist {
		w = strings.ToLower(w)
		if host == w || strings.HasSuffix(host, "."+w) {
			return true
		}
	}

	return false
}

// ParseTiles extracts listing entries. Relative images are resolved against
// base. Duplicates by id are dropped, first occurrence wins.
func (p *Parser) ParseTiles(doc *goquery.Document, base string) []providers.Tile {
	s := p.site
	var tiles []providers.Tile

	doc.Find(s.TileSelector).Each(func(_ int, tile *goquery.Selection) {
		id, title, ok := p.tileLink(tile)
		if !ok || title == "" {
			return
		}

		img := tile.Find(s.TileImageSelector).First()
		image := ""
		for _, attr := range s.TileImageAttrs {
			if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
				image = strings.TrimSpace(v)
				break
			}
		}
		if image == "" {
			return
		}

		tiles = append(tiles, providers.NewTile(id, decodeEntities(title), resolveURL(base, image)))
	})

	return providers.MergeTiles(tiles)
}

func (p *Parser) tileLink(tile *goquery.Selection) (id, title string, ok bool) {
	a := tile.Find(p.site.TileLinkSelector).First()
	href, exists := a.Attr("href")
	if !exists {
		return "", "", false
	}

	path := strings.TrimSpace(href)
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}

	if containsAny(path, p.site.ExcludedPaths) {
		return "", "", false
	}

	id = strings.Trim(path, "/")
	if id == "" {
		return "", "", false
	}

	return id, strings.TrimSpace(a.Text()), true
}

// IsLastPage reports whether the listing has no "next page" arrow.
func (p *Parser) IsLastPage(doc *goquery.Document) bool {
	return doc.Find(p.site.NextPageSelector).Length() == 0
}

func (p *Parser) ParseTags(doc *goquery.Document) []providers.TagSection {
	s := p.site

	inputs := doc.Find(s.TagInputSelector)
	tags := []providers.Tag{}

	doc.Find(s.TagLabelSelector).Each(func(i int, span *goquery.Selection) {
		label := strings.TrimSpace(span.AttrOr("title", ""))
		if label == "" {
			return
		}

		id := strings.TrimSpace(inputs.Eq(i).AttrOr("id", ""))
		if id == "" {
			return
		}

		tags = append(tags, providers.NewTag(id, label))
	})

	return []providers.TagSection{providers.NewTagSection("0", s.TagSectionLabel, tags)}
}

// IsUpdatedSince checks a detail page: the newest chapter date decides.
func (p *Parser) IsUpdatedSince(doc *goquery.Document, cutoff time.Time) bool {
	cell := doc.Find(p.site.ChapterDateSelector).First()
	if cell.Length() == 0 {
		return false
	}

	t, ok := p.site.cellTime(cell)
	if !ok {
		return false
	}

	return isUpdated(t, cutoff)
}

// ParseUpdatedRows checks a newest-first update listing against the
// candidate set. done reports that a row older than cutoff was reached, so
// later pages cannot contain anything new.
func (p *Parser) ParseUpdatedRows(doc *goquery.Document, cutoff time.Time, candidates map[string]bool) (ids []string, done bool) {
	s := p.site

	doc.Find(s.UpdateRowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		id, _, ok := p.tileLink(row)
		if !ok {
			return true
		}

		t, ok := s.parseTimestamp(row.AttrOr(s.UpdateRowTimeAttr, ""))
		if !ok {
			return true
		}

		if !isUpdated(t, cutoff) {
			done = true
			return false
		}

		if candidates[id] && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}

		return true
	})

	return ids, done
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

// decodeEntities resolves entities that survive one round of HTML decoding,
// such as double-escaped numeric references.
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}

	return html.UnescapeString(s)
}

func resolveURL(base, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(base)
	if err != nil {
		return raw
	}

	return b.ResolveReference(u).String()
}

func lastPathSegment(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	return parts[len(parts)-1]
}
