package providers

import (
	"context"
	"net/http"
	"time"
)

// Source is the contract a content source fulfils for the reader app.
type Source interface {
	Info() SourceInfo
	MangaShareURL(mangaID string) string

	GetMangaDetails(ctx context.Context, mangaID string) (*Manga, error)
	GetChapters(ctx context.Context, mangaID string) ([]Chapter, error)
	GetChapterDetails(ctx context.Context, mangaID, chapterID string) (*ChapterDetails, error)

	GetSearchResults(ctx context.Context, query SearchRequest, cursor *Cursor) (*PagedResults, error)
	GetHomePageSections(ctx context.Context, sectionCallback func(HomeSection)) error
	GetViewMoreItems(ctx context.Context, sectionID string, cursor *Cursor) (*PagedResults, error)
	GetTags(ctx context.Context) ([]TagSection, error)

	// FilterUpdatedManga reports, through cb, the subset of ids updated at or
	// after since.
	FilterUpdatedManga(ctx context.Context, cb func(MangaUpdates), since time.Time, ids []string) error

	// GlobalRequestHeaders are the headers the app must send when fetching
	// page images outside the source.
	GlobalRequestHeaders() http.Header
}

type SourceInfo struct {
	Name        string
	Version     string
	Description string
	Author      string
	Website     string
	Language    string
	Tags        []string
}
