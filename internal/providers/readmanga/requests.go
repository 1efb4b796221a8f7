package readmanga

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"

	"github.com/brogergvhs/readmanga/internal/providers"
	"github.com/brogergvhs/readmanga/internal/util"
)

func randomUserAgent() string {
	return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:77.0) Gecko/20100101 Firefox/78.0%d", rand.IntN(100000))
}

// headers are attached to every request the source makes.
func (s *Source) headers(domain string) http.Header {
	h := http.Header{}
	if s.userAgent != "" {
		h.Set("User-Agent", s.userAgent)
	}
	h.Set("Referer", domain+"/")
	h.Set("Content-Type", "application/x-www-form-urlencoded")

	return h
}

func (s *Source) get(domain, path string, query url.Values) util.Request {
	return util.Request{
		Method:  http.MethodGet,
		URL:     domain + path,
		Query:   query,
		Headers: s.headers(domain),
	}
}

func (s *Source) detailQuery() url.Values {
	q := url.Values{}
	for k, v := range s.site.DetailQuery {
		q.Set(k, v)
	}

	return q
}

func (s *Source) detailRequest(domain, mangaID string) util.Request {
	return s.get(domain, "/"+mangaID, s.detailQuery())
}

func (s *Source) readerRequest(domain, path string) util.Request {
	return s.get(domain, "/"+path, s.detailQuery())
}

func (s *Source) searchRequest(domain string, query providers.SearchRequest, page int) util.Request {
	offset := (max(page, 1) - 1) * s.site.SearchPageSize

	if s.site.SearchMode == SearchForm {
		form := url.Values{}
		form.Set("q", query.Title)
		if offset > 0 {
			form.Set("offset", strconv.Itoa(offset))
		}

		return util.Request{
			Method:  http.MethodPost,
			URL:     domain + "/search",
			Headers: s.headers(domain),
			Form:    form,
		}
	}

	q := url.Values{}
	q.Set("q", query.Title)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sortType", "RATING")
	if s.site.SearchYears != "" {
		q.Set("years", s.site.SearchYears)
	}
	for _, tag := range query.IncludedTags {
		if tag.ID != "" {
			q.Set(tag.ID, "in")
		}
	}

	return s.get(domain, "/search/advancedResults", q)
}

func (s *Source) listRequest(domain, sortType string, offset int) util.Request {
	q := url.Values{}
	q.Set("sortType", sortType)
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	return s.get(domain, s.site.ListPath, q)
}
