package cmd

import (
	"fmt"
	"net/http"

	"github.com/brogergvhs/readmanga/internal/config"
	"github.com/brogergvhs/readmanga/internal/providers/readmanga"
	"github.com/brogergvhs/readmanga/internal/ui"
	"github.com/brogergvhs/readmanga/internal/util"
	"github.com/spf13/cobra"
)

// session is everything a command needs to talk to the site.
type session struct {
	cfg    *config.Config
	used   string
	log    *ui.Logger
	client *http.Client
	src    *readmanga.Source
}

func baseOptions() config.Options {
	var secondary *string
	if rootCmd.PersistentFlags().Changed("secondary-url") {
		secondary = &flagSecondaryURL
	}

	return config.Options{
		IgnoreConfig:      flagIgnoreConfig,
		Debug:             flagDebug,
		PrimaryURL:        flagPrimaryURL,
		SecondaryURL:      secondary,
		SiteFile:          flagSiteFile,
		RequestsPerSecond: flagRPS,
		RequestTimeout:    flagTimeout,
		UserAgent:         flagUserAgent,
		Cookie:            flagCookie,
		CookieFile:        flagCookieFile,
		CloudflareBypass:  flagCloudflare,
	}
}

func newSession(opts config.Options) (*session, error) {
	cfg, used, err := config.LoadMerged(opts)
	if err != nil {
		return nil, err
	}

	log := ui.NewLogger(cfg.Debug)
	log.Debugf("config: %s", used)

	site, err := cfg.Site()
	if err != nil {
		return nil, fmt.Errorf("site: %w", err)
	}

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:          cfg.Timeout(),
		UserAgent:        util.PickUserAgent(cfg.UserAgent),
		Cookie:           cfg.Cookie,
		CookieFile:       cfg.CookieFile,
		CloudflareBypass: cfg.CloudflareBypass,
		DebugLogger:      log,
	})
	if err != nil {
		return nil, err
	}

	sched := util.NewScheduler(client, util.SchedulerOptions{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout(),
		DebugLogger:       log,
	})

	src := readmanga.New(sched, readmanga.Options{
		Site:      site,
		UserAgent: cfg.UserAgent,
		Log:       log.With("source", site.Name),
	})

	return &session{cfg: cfg, used: used, log: log, client: client, src: src}, nil
}

// sourceCommand wraps a command body that only needs a session.
func sourceCommand(run func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(baseOptions())
		if err != nil {
			return err
		}
		defer s.log.Sync()

		return run(cmd, s, args)
	}
}
