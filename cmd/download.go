package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brogergvhs/readmanga/internal/chapters"
	"github.com/brogergvhs/readmanga/internal/downloader"
	"github.com/brogergvhs/readmanga/internal/providers"
	"github.com/brogergvhs/readmanga/internal/ui"
	"github.com/brogergvhs/readmanga/internal/util"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	// selection
	flagChapter  string
	flagRange    string
	flagList     string
	flagPick     bool
	flagAllowExt string

	// runtime
	flagOutput         string
	flagImageWorkers   int
	flagChapterWorkers int
	flagKeepFolders    bool
	flagDryRun         bool
	flagSkipBroken     bool
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download [manga_id]",
		Short: "Download manga chapters and produce CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagChapter, "chapter", "", "download a single chapter by number or id (e.g. 5 or vol1/5)")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download range of chapters by number (e.g. 5-12 or 5-)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific chapter numbers (e.g. 1,3,5)")
	downloadCmd.Flags().BoolVar(&flagPick, "pick", false, "pick a chapter interactively")
	downloadCmd.Flags().StringVar(&flagAllowExt, "allow-ext", "", "Allowed image extensions (e.g. \"webp|jpg|png\")")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for CBZ files")
	downloadCmd.Flags().IntVar(&flagImageWorkers, "image-workers", 5, "parallel image downloads per chapter")
	downloadCmd.Flags().IntVar(&flagChapterWorkers, "chapter-workers", 2, "parallel chapter downloads")
	downloadCmd.Flags().BoolVar(&flagKeepFolders, "keep-folders", false, "keep temporary folders")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")
	downloadCmd.Flags().BoolVar(&flagSkipBroken, "skip-broken", false, "skip failed images instead of failing the whole chapter")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	opts := baseOptions()
	opts.Output = flagOutput
	opts.KeepFolders = flagKeepFolders
	opts.SkipBroken = flagSkipBroken
	opts.DefaultRange = flagRange
	opts.DefaultList = flagList
	if len(args) == 1 {
		opts.DefaultManga = args[0]
	}

	s, err := newSession(opts)
	if err != nil {
		return err
	}
	defer s.log.Sync()

	cfg := s.cfg
	if cmd.Flags().Changed("image-workers") {
		cfg.ImageWorkers = flagImageWorkers
	}
	if cmd.Flags().Changed("chapter-workers") {
		cfg.ChapterWorkers = flagChapterWorkers
	}
	if flagAllowExt != "" {
		cfg.AllowExt = splitExt(flagAllowExt)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config file: %s\n", s.used)
	if cfg.Debug {
		fmt.Fprintln(out, "Full config:")
		cfg.Print(out)
		fmt.Fprintln(out)
	}

	if cfg.DefaultManga == "" {
		return fmt.Errorf("missing manga id and no default_manga in config")
	}

	ctx := cmd.Context()
	mangaID := strings.Trim(cfg.DefaultManga, "/")

	list, err := s.src.GetChapters(ctx, mangaID)
	if err != nil {
		return err
	}
	all := chapters.Wrap(list)
	fmt.Fprintf(out, "Found %d chapters of %s.\n\n", len(all), s.src.MangaShareURL(mangaID))

	// A flag range or list wins over any default from the config.
	sel := chapters.Selection{Chapter: flagChapter, Range: flagRange, List: flagList}
	if sel.Empty() {
		sel = chapters.Selection{Range: cfg.DefaultRange, List: cfg.DefaultList}
	}

	var selected []chapters.Chapter
	if flagPick {
		selected, err = pickChapter(all)
	} else {
		selected, err = chapters.Select(all, sel)
	}
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	if flagDryRun {
		fmt.Fprintf(out, "Dry-run: %d chapters selected.\n\n", len(selected))
		for _, ch := range selected {
			fmt.Fprintf(out, "%4d) %s  [%s]\n      %s\n", ch.Number, ch.Name, ch.ID, s.src.MangaShareURL(mangaID+"/"+ch.ID))
		}
		return nil
	}

	mangaDir := filepath.Join(cfg.Output, mangaID)
	if err := os.MkdirAll(mangaDir, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}
	ctx, stop := util.InterruptContext(ctx, mangaDir, s.log)
	defer stop()

	manga, err := s.src.GetMangaDetails(ctx, mangaID)
	if err != nil {
		s.log.Warnf("No details for %s, CBZ metadata will be partial: %v", mangaID, err)
	}

	var bars io.Writer = os.Stdout
	if flagJSON {
		bars = io.Discard
	}
	pm := ui.NewProgressManager(bars)

	dl := downloader.New(s.client, downloader.Options{
		Headers:    s.src.GlobalRequestHeaders(),
		SkipBroken: cfg.SkipBroken,
		AllowExt:   cfg.AllowExt,
		Retries:    3,
		Timeout:    cfg.Timeout(),
		Log:        s.log,
	})

	stats := &ui.Stats{}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(max(1, cfg.ChapterWorkers))

	for _, ch := range selected {
		g.Go(func() error {
			if err := downloadChapter(ctx, s, dl, pm, manga, ch, mangaDir, stats); err != nil {
				stats.Failed.Add(1)
				s.log.Errorf("Chapter %d (%s) failed: %v", ch.Number, ch.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	pm.Close()

	if ctx.Err() != nil {
		return fmt.Errorf("download interrupted: %w", context.Cause(ctx))
	}

	stats.Print(out, time.Since(start))
	if n := stats.Failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d chapters failed", n, len(selected))
	}

	fmt.Fprintln(out, "\nAll done.")
	return nil
}

func downloadChapter(
	ctx context.Context,
	s *session,
	dl *downloader.Downloader,
	pm *ui.MPBProgressManager,
	manga *providers.Manga,
	ch chapters.Chapter,
	dir string,
	stats *ui.Stats,
) error {
	details, err := s.src.GetChapterDetails(ctx, ch.MangaID, ch.ID)
	if err != nil {
		return err
	}

	handle := pm.Register(fmt.Sprintf("Ch.%d", ch.Number))
	tmpFolder := filepath.Join(dir, ch.FolderName())

	files, written, err := dl.DownloadPages(ctx, details.Pages, tmpFolder, max(1, s.cfg.ImageWorkers), handle)
	if err != nil {
		handle.Fail()
		_ = os.RemoveAll(tmpFolder)
		return err
	}

	info := ch.ComicInfo(manga, len(files), s.src.MangaShareURL(ch.MangaID+"/"+ch.ID))
	if err := util.CreateCBZ(files, ch.OutputCBZPath(dir), info); err != nil {
		_ = os.RemoveAll(tmpFolder)
		return err
	}

	if !s.cfg.KeepFolders {
		util.CleanupFolder(tmpFolder)
	}

	stats.AddChapter(len(files), written)
	return nil
}

func pickChapter(all []chapters.Chapter) ([]chapters.Chapter, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("no chapters to pick from")
	}

	items := make([]string, len(all))
	for i, ch := range all {
		items[i] = fmt.Sprintf("%4d  %s", ch.Number, ch.Name)
	}

	prompt := promptui.Select{
		Label: "Select chapter",
		Items: items,
		Size:  15,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index]), strings.ToLower(input))
		},
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("selection cancelled")
	}

	return all[idx : idx+1], nil
}

func splitExt(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})

	out := []string{}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}
