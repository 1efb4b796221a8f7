package providers

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

type Manga struct {
	ID          string       `json:"id"`
	Titles      []string     `json:"titles"`
	Image       string       `json:"image"`
	Status      Status       `json:"status"`
	Author      string       `json:"author"`
	Artist      string       `json:"artist"`
	Description string       `json:"description"`
	Rating      float64      `json:"rating"`
	Tags        []TagSection `json:"tags,omitempty"`
}

// NewManga drops empty and repeated titles and defaults the status to
// ongoing.
func NewManga(id string, titles []string, image string, status Status) *Manga {
	if status == "" {
		status = StatusOngoing
	}

	return &Manga{
		ID:     id,
		Titles: uniqueNonEmpty(titles),
		Image:  image,
		Status: status,
	}
}

// Title returns the first display title, or the id when none was found.
func (m *Manga) Title() string {
	if len(m.Titles) > 0 {
		return m.Titles[0]
	}

	return m.ID
}

type Chapter struct {
	ID       string    `json:"id"`
	MangaID  string    `json:"manga_id"`
	Number   int       `json:"number"`
	Name     string    `json:"name"`
	LangCode string    `json:"lang_code"`
	Time     time.Time `json:"time"`
}

func NewChapter(mangaID, id string, number int, name, lang string, t time.Time) Chapter {
	return Chapter{
		ID:       id,
		MangaID:  mangaID,
		Number:   number,
		Name:     name,
		LangCode: lang,
		Time:     t,
	}
}

// Label is the chapter number as text, used for selection and file names.
func (c Chapter) Label() string {
	return strconv.Itoa(c.Number)
}

type ChapterDetails struct {
	ID        string   `json:"id"`
	MangaID   string   `json:"manga_id"`
	Pages     []string `json:"pages"`
	LongStrip bool     `json:"long_strip"`
}

func NewChapterDetails(mangaID, chapterID string, pages []string) *ChapterDetails {
	return &ChapterDetails{
		ID:      chapterID,
		MangaID: mangaID,
		Pages:   pages,
	}
}

type Tile struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

func NewTile(id, title, image string) Tile {
	return Tile{ID: id, Title: title, Image: image}
}

// MergeTiles concatenates listings, keeping the first tile seen for each id.
func MergeTiles(lists ...[]Tile) []Tile {
	seen := map[string]bool{}
	out := []Tile{}

	for _, list := range lists {
		for _, t := range list {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}

	return out
}

type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func NewTag(id, label string) Tag {
	return Tag{ID: id, Label: label}
}

type TagSection struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Tags  []Tag  `json:"tags"`
}

func NewTagSection(id, label string, tags []Tag) TagSection {
	if tags == nil {
		tags = []Tag{}
	}

	return TagSection{ID: id, Label: label, Tags: tags}
}

type SearchRequest struct {
	Title        string `json:"title"`
	IncludedTags []Tag  `json:"included_tags,omitempty"`
}

// Cursor is the continuation token threaded between a listing call and the
// next one. Sources lists the domains that still have pages, for sources
// that page over more than one site.
type Cursor struct {
	Page    int      `json:"page,omitempty"`
	Offset  int      `json:"offset,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// Encode renders the cursor as an opaque string for the CLI.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}

	v := url.Values{}
	if c.Page != 0 {
		v.Set("page", strconv.Itoa(c.Page))
	}
	if c.Offset != 0 {
		v.Set("offset", strconv.Itoa(c.Offset))
	}
	for _, s := range c.Sources {
		v.Add("source", s)
	}

	return v.Encode()
}

// ParseCursor is the inverse of Encode. An empty string yields a nil cursor.
func ParseCursor(s string) (*Cursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	v, err := url.ParseQuery(s)
	if err != nil {
		return nil, err
	}

	c := &Cursor{Sources: v["source"]}
	if p := v.Get("page"); p != "" {
		if c.Page, err = strconv.Atoi(p); err != nil {
			return nil, err
		}
	}
	if o := v.Get("offset"); o != "" {
		if c.Offset, err = strconv.Atoi(o); err != nil {
			return nil, err
		}
	}

	return c, nil
}

type PagedResults struct {
	Results []Tile  `json:"results"`
	Cursor  *Cursor `json:"cursor,omitempty"`
}

func NewPagedResults(results []Tile, cursor *Cursor) *PagedResults {
	if results == nil {
		results = []Tile{}
	}

	return &PagedResults{Results: results, Cursor: cursor}
}

type HomeSection struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ViewMore bool   `json:"view_more"`
	Items    []Tile `json:"items"`
}

func NewHomeSection(id, title string, viewMore bool) HomeSection {
	return HomeSection{ID: id, Title: title, ViewMore: viewMore, Items: []Tile{}}
}

type MangaUpdates struct {
	IDs []string `json:"ids"`
}

func NewMangaUpdates(ids []string) MangaUpdates {
	if ids == nil {
		ids = []string{}
	}

	return MangaUpdates{IDs: ids}
}

func uniqueNonEmpty(in []string) []string {
	seen := map[string]bool{}
	out := []string{}

	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}

	return out
}
