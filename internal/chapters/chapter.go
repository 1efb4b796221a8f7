package chapters

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/brogergvhs/readmanga/internal/providers"
	"github.com/brogergvhs/readmanga/internal/util"
)

var reUnderscore = regexp.MustCompile(`_+`)

// Chapter adds file naming on top of a source chapter.
type Chapter struct {
	providers.Chapter
}

func Wrap(list []providers.Chapter) []Chapter {
	out := make([]Chapter, len(list))
	for i, c := range list {
		out[i] = Chapter{Chapter: c}
	}

	return out
}

func sanitize(s string) string {
	s = strings.ToLower(s)

	repl := strings.NewReplacer(
		"•", "_",
		"-", "_",
		"—", "_",
		"–", "_",
		"/", "_",
		"\\", "_",
		".", "_",
		" ", "_",
		"(", "",
		")", "",
	)
	s = repl.Replace(s)

	clean := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			clean = append(clean, r)
		}
	}

	return strings.Trim(reUnderscore.ReplaceAllString(string(clean), "_"), "_")
}

// baseName is the zero-padded chapter number, followed by the sanitized
// chapter name when there is one.
func (c Chapter) baseName() string {
	num := fmt.Sprintf("%04d", c.Number)

	name := sanitize(c.Name)
	if name != "" && name != sanitize(c.Label()) {
		return num + "_" + name
	}

	return num
}

func (c Chapter) FolderName() string {
	return c.baseName() + util.TempSuffix
}

func (c Chapter) OutputCBZ() string {
	return c.baseName() + ".cbz"
}

func (c Chapter) OutputCBZPath(out string) string {
	return filepath.Join(out, c.OutputCBZ())
}

// ComicInfo describes the chapter for the CBZ metadata. m may be nil when the
// manga details could not be loaded.
func (c Chapter) ComicInfo(m *providers.Manga, pages int, web string) *util.ComicInfo {
	info := &util.ComicInfo{
		Title:     c.Name,
		Number:    c.Label(),
		Web:       web,
		PageCount: pages,
		Manga:     "YesAndRightToLeft",
		Language:  c.LangCode,
	}
	if info.Title == "" {
		info.Title = "Chapter " + c.Label()
	}
	if !c.Time.IsZero() {
		info.Year, info.Month, info.Day = c.Time.Year(), int(c.Time.Month()), c.Time.Day()
	}

	if m == nil {
		return info
	}

	info.Series = m.Title()
	info.Writer = m.Author
	info.Penciller = m.Artist

	var genres []string
	for _, sec := range m.Tags {
		for _, t := range sec.Tags {
			genres = append(genres, t.Label)
		}
	}
	info.Genre = strings.Join(genres, ", ")

	return info
}
