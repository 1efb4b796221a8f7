package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagJSON         bool

	// site/transport
	flagPrimaryURL   string
	flagSecondaryURL string
	flagSiteFile     string
	flagRPS          float64
	flagTimeout      int
	flagUserAgent    string
	flagCookie       string
	flagCookieFile   string
	flagCloudflare   bool
)

var rootCmd = &cobra.Command{
	Use:           "readmanga",
	Short:         "Browse, search and download manga from ReadManga and its adult mirror",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")
	pf.BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
	pf.BoolVar(&flagJSON, "json", false, "print results as JSON")

	pf.StringVar(&flagPrimaryURL, "primary-url", "", "override the primary domain")
	pf.StringVar(&flagSecondaryURL, "secondary-url", "", "override the secondary (adult) domain, empty disables it")
	pf.StringVar(&flagSiteFile, "site-file", "", "YAML file with selector overrides")
	pf.Float64Var(&flagRPS, "rps", 0, "requests per second against the site")
	pf.IntVar(&flagTimeout, "timeout", 0, "request timeout in seconds")
	pf.StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	pf.StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	pf.StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	pf.BoolVar(&flagCloudflare, "cloudflare", false, "wrap the transport with the Cloudflare bypass")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
