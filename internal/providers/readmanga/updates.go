package readmanga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brogergvhs/readmanga/internal/providers"
	"golang.org/x/sync/errgroup"
)

// FilterUpdatedManga reports which of ids changed at or after since. The
// callback runs once, with matches in input order, even when some checks
// failed. An error is returned only if every check failed.
func (s *Source) FilterUpdatedManga(ctx context.Context, cb func(providers.MangaUpdates), since time.Time, ids []string) error {
	if len(ids) == 0 {
		cb(providers.NewMangaUpdates(nil))
		return nil
	}

	var (
		updated map[string]bool
		err     error
	)

	switch s.site.UpdateMode {
	case UpdatesByListing:
		updated, err = s.updatesFromListing(ctx, since, ids)
	default:
		updated, err = s.updatesFromDetails(ctx, since, ids)
	}

	var out []string
	for _, id := range ids {
		if updated[id] {
			out = append(out, id)
			delete(updated, id)
		}
	}

	cb(providers.NewMangaUpdates(out))

	return err
}

func (s *Source) updatesFromDetails(ctx context.Context, since time.Time, ids []string) (map[string]bool, error) {
	var (
		mu      sync.Mutex
		updated = map[string]bool{}
		errs    []error
	)

	var g errgroup.Group
	g.SetLimit(max(s.site.UpdateWorkers, 1))

	for _, id := range ids {
		g.Go(func() error {
			ok, err := withFallback(ctx, s, "update check "+id, func(domain string) (bool, error) {
				doc, err := s.fetchDoc(ctx, s.detailRequest(domain, id))
				if err != nil {
					return false, err
				}

				return s.parser.IsUpdatedSince(doc, since), nil
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.log.Warnf("%v", err)
				errs = append(errs, err)
				return nil
			}
			if ok {
				updated[id] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(ids) {
		return updated, fmt.Errorf("updates: %w", errors.Join(errs...))
	}

	return updated, nil
}

// updatesFromListing walks the newest-first update listing of every domain
// until a row older than since shows up, the last page is reached or the
// page budget runs out.
func (s *Source) updatesFromListing(ctx context.Context, since time.Time, ids []string) (map[string]bool, error) {
	candidates := make(map[string]bool, len(ids))
	for _, id := range ids {
		candidates[id] = true
	}

	domains := s.site.Domains()

	var (
		mu      sync.Mutex
		updated = map[string]bool{}
		errs    []error
	)

	var g errgroup.Group
	for _, domain := range domains {
		g.Go(func() error {
			found, err := s.walkUpdateListing(ctx, domain, since, candidates)

			mu.Lock()
			defer mu.Unlock()

			for _, id := range found {
				updated[id] = true
			}
			if err != nil {
				s.log.Warnf("update listing on %s: %v", domain, err)
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(domains) && len(updated) == 0 {
		return updated, fmt.Errorf("updates: %w", errors.Join(errs...))
	}

	return updated, nil
}

func (s *Source) walkUpdateListing(ctx context.Context, domain string, since time.Time, candidates map[string]bool) ([]string, error) {
	var found []string

	for page := 0; page < max(s.site.MaxUpdatePages, 1); page++ {
		doc, err := s.fetchDoc(ctx, s.listRequest(domain, s.site.UpdatesSortType, page*s.site.ViewMorePageSize))
		if err != nil {
			return found, fmt.Errorf("page %d: %w", page+1, err)
		}

		ids, done := s.parser.ParseUpdatedRows(doc, since, candidates)
		found = append(found, ids...)

		if done || s.parser.IsLastPage(doc) {
			return found, nil
		}
	}

	s.log.Debugf("update listing on %s stopped after %d pages", domain, s.site.MaxUpdatePages)

	return found, nil
}
