package readmanga

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// parseDay parses the site's fixed day.month.year strings. Dates are taken
// as midnight UTC.
func (s *Site) parseDay(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}

	for _, layout := range s.DateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseRaw accepts whatever the raw timestamp attribute carries: ISO-ish
// date-times, epoch milliseconds, and so on.
func parseRaw(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// parseTimestamp tries the fixed layouts first, then the raw parser.
func (s *Site) parseTimestamp(v string) (time.Time, bool) {
	if t, ok := s.parseDay(v); ok {
		return t, true
	}

	return parseRaw(v)
}

// cellTime reads a date cell: the day attribute first, then the raw
// attribute when the day is missing or unparsable.
func (s *Site) cellTime(cell *goquery.Selection) (time.Time, bool) {
	if s.DateAttr != "" {
		if t, ok := s.parseDay(cell.AttrOr(s.DateAttr, "")); ok {
			return t, true
		}
	}

	if s.RawDateAttr != "" {
		if v, ok := cell.Attr(s.RawDateAttr); ok {
			return parseRaw(v)
		}
	}

	return time.Time{}, false
}

// isUpdated is the single before/after rule shared by both update layouts.
func isUpdated(ts, cutoff time.Time) bool {
	return !ts.Before(cutoff)
}
