package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/brogergvhs/readmanga/internal/providers"
	"github.com/spf13/cobra"
)

var (
	flagSearchTags []string
	flagCursor     string
	flagSince      string
)

var detailsCmd = &cobra.Command{
	Use:   "details <manga_id>",
	Short: "Show a manga's details",
	Args:  cobra.ExactArgs(1),
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, args []string) error {
		m, err := s.src.GetMangaDetails(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), m)
		}

		printManga(cmd.OutOrStdout(), m, s.src.MangaShareURL(m.ID))
		return nil
	}),
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters <manga_id>",
	Short: "List a manga's chapters, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, args []string) error {
		list, err := s.src.GetChapters(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), list)
		}

		return printChapters(cmd.OutOrStdout(), list)
	}),
}

var pagesCmd = &cobra.Command{
	Use:   "pages <manga_id> <chapter_id>",
	Short: "List the page image URLs of a chapter",
	Args:  cobra.ExactArgs(2),
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, args []string) error {
		details, err := s.src.GetChapterDetails(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), details)
		}

		for _, p := range details.Pages {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	}),
}

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search both domains by title and tags",
	Args:  cobra.MaximumNArgs(1),
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, args []string) error {
		query := providers.SearchRequest{}
		if len(args) == 1 {
			query.Title = args[0]
		}
		for _, id := range flagSearchTags {
			query.IncludedTags = append(query.IncludedTags, providers.NewTag(id, id))
		}
		if query.Title == "" && len(query.IncludedTags) == 0 {
			return fmt.Errorf("give a title or at least one --tag")
		}

		cursor, err := providers.ParseCursor(flagCursor)
		if err != nil {
			return fmt.Errorf("invalid --cursor: %w", err)
		}

		res, err := s.src.GetSearchResults(cmd.Context(), query, cursor)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}

		return printPaged(cmd.OutOrStdout(), res)
	}),
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Show the homepage sections",
	Args:  cobra.NoArgs,
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, _ []string) error {
		var (
			mu       sync.Mutex
			order    []string
			sections = map[string]providers.HomeSection{}
		)

		err := s.src.GetHomePageSections(cmd.Context(), func(hs providers.HomeSection) {
			mu.Lock()
			defer mu.Unlock()

			if _, ok := sections[hs.ID]; !ok {
				order = append(order, hs.ID)
			}
			sections[hs.ID] = hs
			s.log.Debugf("section %s: %d items", hs.ID, len(hs.Items))
		})
		if err != nil {
			return err
		}

		out := make([]providers.HomeSection, 0, len(order))
		for _, id := range order {
			out = append(out, sections[id])
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}

		w := cmd.OutOrStdout()
		for _, hs := range out {
			fmt.Fprintf(w, "== %s [%s] ==\n", hs.Title, hs.ID)
			if len(hs.Items) == 0 {
				fmt.Fprintln(w, "(unavailable)")
			} else if err := printTiles(w, hs.Items); err != nil {
				return err
			}
			fmt.Fprintln(w)
		}
		return nil
	}),
}

var moreCmd = &cobra.Command{
	Use:   "more <section_id>",
	Short: "Page through a homepage section",
	Args:  cobra.ExactArgs(1),
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, args []string) error {
		cursor, err := providers.ParseCursor(flagCursor)
		if err != nil {
			return fmt.Errorf("invalid --cursor: %w", err)
		}

		res, err := s.src.GetViewMoreItems(cmd.Context(), args[0], cursor)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}

		return printPaged(cmd.OutOrStdout(), res)
	}),
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tags usable with search --tag",
	Args:  cobra.NoArgs,
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, _ []string) error {
		sections, err := s.src.GetTags(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), sections)
		}

		tw := newTable(cmd.OutOrStdout(), "ID", "TAG")
		for _, sec := range sections {
			for _, t := range sec.Tags {
				fmt.Fprintf(tw, "%s\t%s\n", t.ID, t.Label)
			}
		}
		return tw.Flush()
	}),
}

var updatesCmd = &cobra.Command{
	Use:   "updates <manga_id>...",
	Short: "Report which of the given manga were updated since a date",
	Args:  cobra.MinimumNArgs(1),
	RunE: sourceCommand(func(cmd *cobra.Command, s *session, args []string) error {
		since, err := parseSince(flagSince, time.Now())
		if err != nil {
			return err
		}
		s.log.Debugf("checking %d manga updated since %s", len(args), since.Format(time.RFC3339))

		var updated []string
		err = s.src.FilterUpdatedManga(cmd.Context(), func(u providers.MangaUpdates) {
			updated = u.IDs
		}, since, args)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), providers.NewMangaUpdates(updated))
		}

		for _, id := range updated {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}),
}

// parseSince accepts a duration back from now ("48h") or any date dateparse
// understands. Empty means the last 24 hours.
func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return now.Add(-24 * time.Hour), nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}

	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", v, err)
	}

	return t, nil
}

func init() {
	searchCmd.Flags().StringSliceVar(&flagSearchTags, "tag", nil, "include tag id (see `readmanga tags`), repeatable")
	searchCmd.Flags().StringVar(&flagCursor, "cursor", "", "continue from a previous page")
	moreCmd.Flags().StringVar(&flagCursor, "cursor", "", "continue from a previous page")
	updatesCmd.Flags().StringVar(&flagSince, "since", "", "cutoff: a date or a duration back from now (default 24h)")

	rootCmd.AddCommand(detailsCmd, chaptersCmd, pagesCmd, searchCmd, homeCmd, moreCmd, tagsCmd, updatesCmd)
}
