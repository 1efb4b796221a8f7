package readmanga

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ReadMangaDomain  = "https://readmanga.live"
	AdultMangaDomain = "https://1.seimanga.me"
)

const (
	SearchAdvanced = "advanced"
	SearchForm     = "form"

	UpdatesByDetails = "details"
	UpdatesByListing = "listing"
)

// Section is one homepage listing. Secondary sections are served from the
// adult domain.
type Section struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Secondary    bool   `yaml:"secondary"`
	SortType     string `yaml:"sort_type"`
	MoreSortType string `yaml:"more_sort_type"`
}

// Site holds everything that is specific to one deployment of the site
// engine: domains, selectors, date layouts and paging constants.
type Site struct {
	Name         string `yaml:"name"`
	PrimaryURL   string `yaml:"primary_url"`
	SecondaryURL string `yaml:"secondary_url"`
	Language     string `yaml:"language"`

	// DetailQuery is appended to detail, chapter list and reader pages.
	DetailQuery map[string]string `yaml:"detail_query"`

	TitleSelectors      []string `yaml:"title_selectors"`
	CoverSelector       string   `yaml:"cover_selector"`
	AuthorSelectors     []string `yaml:"author_selectors"`
	ArtistSelectors     []string `yaml:"artist_selectors"`
	DescriptionSelector string   `yaml:"description_selector"`
	StatusSelector      string   `yaml:"status_selector"`
	CompletedKeyword    string   `yaml:"completed_keyword"`
	GenreSelector       string   `yaml:"genre_selector"`

	ChapterLinkSelector string   `yaml:"chapter_link_selector"`
	ChapterDateSelector string   `yaml:"chapter_date_selector"`
	DateAttr            string   `yaml:"date_attr"`
	RawDateAttr         string   `yaml:"raw_date_attr"`
	DateLayouts         []string `yaml:"date_layouts"`

	ReaderMarkers        []string `yaml:"reader_markers"`
	CDNWhitelist         []string `yaml:"cdn_whitelist"`
	PlaceholderFragments []string `yaml:"placeholder_fragments"`

	TileSelector      string   `yaml:"tile_selector"`
	TileLinkSelector  string   `yaml:"tile_link_selector"`
	TileImageSelector string   `yaml:"tile_image_selector"`
	TileImageAttrs    []string `yaml:"tile_image_attrs"`
	ExcludedPaths     []string `yaml:"excluded_paths"`
	NextPageSelector  string   `yaml:"next_page_selector"`

	TagsPath         string `yaml:"tags_path"`
	TagInputSelector string `yaml:"tag_input_selector"`
	TagLabelSelector string `yaml:"tag_label_selector"`
	TagSectionLabel  string `yaml:"tag_section_label"`

	SearchMode     string `yaml:"search_mode"`
	SearchPageSize int    `yaml:"search_page_size"`
	SearchYears    string `yaml:"search_years"`

	ListPath         string    `yaml:"list_path"`
	ViewMorePageSize int       `yaml:"view_more_page_size"`
	Sections         []Section `yaml:"sections"`

	UpdateMode        string `yaml:"update_mode"`
	UpdatesSortType   string `yaml:"updates_sort_type"`
	UpdateRowSelector string `yaml:"update_row_selector"`
	UpdateRowTimeAttr string `yaml:"update_row_time_attr"`
	MaxUpdatePages    int    `yaml:"max_update_pages"`
	UpdateWorkers     int    `yaml:"update_workers"`
}

func DefaultSite() *Site {
	return &Site{
		Name:         "ReadManga",
		PrimaryURL:   ReadMangaDomain,
		SecondaryURL: AdultMangaDomain,
		Language:     "ru",

		DetailQuery: map[string]string{"mtr": "1"},

		TitleSelectors:      []string{"h1 > span.name", "span.name", "span.eng-name"},
		CoverSelector:       "div.picture-fotorama img",
		AuthorSelectors:     []string{"span.elem_author > a", "span.elem_screenwriter > a"},
		ArtistSelectors:     []string{"span.elem_artist > a", "span.elem_illustrator > a"},
		DescriptionSelector: "#tab-description > div",
		StatusSelector:      "div.subject-meta p",
		CompletedKeyword:    "завершено",
		GenreSelector:       "span.elem_genre a",

		ChapterLinkSelector: "a.cp-l",
		ChapterDateSelector: "td.date",
		DateAttr:            "data-date",
		RawDateAttr:         "data-date-raw",
		DateLayouts:         []string{"02.01.06", "02.01.2006"},

		ReaderMarkers:        []string{"rm_h.readerInit(", "rm_h.initReader("},
		CDNWhitelist:         []string{"rmr.rocks"},
		PlaceholderFragments: []string{"auto/15/49/36"},

		TileSelector:      "div.tile",
		TileLinkSelector:  "h3 > a",
		TileImageSelector: "img.lazy",
		TileImageAttrs:    []string{"data-original", "src"},
		ExcludedPaths:     []string{"/person/"},
		NextPageSelector:  "i.fa.fa-arrow-right",

		TagsPath:         "/search/advanced",
		TagInputSelector: "li > input",
		TagLabelSelector: "label > span",
		TagSectionLabel:  "Теги",

		SearchMode:     SearchAdvanced,
		SearchPageSize: 50,
		SearchYears:    "1950,2024",

		ListPath:         "/list",
		ViewMorePageSize: 70,
		Sections: []Section{
			{ID: "0", Title: "С наивысшим рейтингом", SortType: "votes", MoreSortType: "USER_RATING"},
			{ID: "1", Title: "Новинки", SortType: "created", MoreSortType: "DATE_CREATE"},
			{ID: "2", Title: "Манга для взрослых", Secondary: true, SortType: "rate", MoreSortType: "USER_RATING"},
		},

		UpdateMode:        UpdatesByDetails,
		UpdatesSortType:   "updated",
		UpdateRowSelector: "div.tile",
		UpdateRowTimeAttr: "data-date-raw",
		MaxUpdatePages:    10,
		UpdateWorkers:     4,
	}
}

// LoadSite reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadSite(path string) (*Site, error) {
	site := DefaultSite()
	if path == "" {
		return site, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(b, site); err != nil {
		return nil, fmt.Errorf("site %s: %w", path, err)
	}

	return site, site.Validate()
}

func (s *Site) Validate() error {
	if s.PrimaryURL == "" {
		return fmt.Errorf("site %q: primary_url is required", s.Name)
	}

	switch s.SearchMode {
	case SearchAdvanced, SearchForm:
	default:
		return fmt.Errorf("site %q: unknown search_mode %q", s.Name, s.SearchMode)
	}

	switch s.UpdateMode {
	case UpdatesByDetails, UpdatesByListing:
	default:
		return fmt.Errorf("site %q: unknown update_mode %q", s.Name, s.UpdateMode)
	}

	s.PrimaryURL = strings.TrimRight(s.PrimaryURL, "/")
	s.SecondaryURL = strings.TrimRight(s.SecondaryURL, "/")

	return nil
}

// Domains lists the configured base URLs, primary first.
func (s *Site) Domains() []string {
	if s.SecondaryURL == "" {
		return []string{s.PrimaryURL}
	}

	return []string{s.PrimaryURL, s.SecondaryURL}
}

func (s *Site) section(id string) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.ID == id {
			return sec, true
		}
	}

	return Section{}, false
}

func (s *Site) sectionDomain(sec Section) string {
	if sec.Secondary {
		return s.SecondaryURL
	}

	return s.PrimaryURL
}
