package chapters

import (
	"fmt"
	"strconv"
	"strings"
)

// Selection picks chapters by number. Chapter also accepts a chapter id such
// as "vol1/5". At most one field is used, in field order.
type Selection struct {
	Chapter string
	Range   string
	List    string
}

func (s Selection) Empty() bool {
	return s.Chapter == "" && s.Range == "" && s.List == ""
}

// Select applies sel to all. An empty selection returns every chapter.
func Select(all []Chapter, sel Selection) ([]Chapter, error) {
	switch {
	case sel.Chapter != "":
		if out := FilterChapter(all, sel.Chapter); len(out) > 0 {
			return out, nil
		}
		return nil, fmt.Errorf("chapter %q not found", sel.Chapter)
	case sel.Range != "":
		return FilterChapterRange(all, sel.Range)
	case sel.List != "":
		return FilterChapterList(all, sel.List)
	}

	return all, nil
}

// FilterChapter matches by number first, then by id.
func FilterChapter(all []Chapter, key string) []Chapter {
	key = strings.TrimSpace(key)

	var out []Chapter
	for _, ch := range all {
		if ch.Label() == key {
			out = append(out, ch)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, ch := range all {
		if ch.ID == strings.Trim(key, "/") {
			out = append(out, ch)
		}
	}

	return out
}

// FilterChapterRange selects numbers start-end inclusive. An open end
// ("5-") runs to the last chapter.
func FilterChapterRange(all []Chapter, rng string) ([]Chapter, error) {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid range %q, want start-end", rng)
	}

	start, err := atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q", parts[0])
	}

	end := len(all)
	if strings.TrimSpace(parts[1]) != "" {
		if end, err = atoi(parts[1]); err != nil {
			return nil, fmt.Errorf("invalid range end %q", parts[1])
		}
	}

	if start <= 0 || start > end {
		return nil, fmt.Errorf("invalid range %q", rng)
	}

	var out []Chapter
	for _, ch := range all {
		if ch.Number >= start && ch.Number <= end {
			out = append(out, ch)
		}
	}

	return out, nil
}

// FilterChapterList selects the comma separated numbers in list, in list
// order. Unknown numbers are ignored.
func FilterChapterList(all []Chapter, list string) ([]Chapter, error) {
	byNumber := make(map[int]Chapter, len(all))
	for _, ch := range all {
		byNumber[ch.Number] = ch
	}

	out := []Chapter{}
	for _, n := range strings.Split(list, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}

		num, err := atoi(n)
		if err != nil {
			return nil, fmt.Errorf("invalid chapter number %q", n)
		}
		if ch, ok := byNumber[num]; ok {
			out = append(out, ch)
		}
	}

	return out, nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
