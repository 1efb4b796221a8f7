package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brogergvhs/readmanga/internal/providers/readmanga"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Site overrides. Unset fields keep the value from the site table, so
	// a site file is never overwritten by a default. An explicitly empty
	// secondary_url disables the second domain.
	PrimaryURL   string  `yaml:"primary_url,omitempty"`
	SecondaryURL *string `yaml:"secondary_url,omitempty"`
	SiteFile     string  `yaml:"site_file,omitempty"`
	SearchMode   string  `yaml:"search_mode,omitempty"`
	UpdateMode   string  `yaml:"update_mode,omitempty"`

	MaxUpdatePages int `yaml:"max_update_pages,omitempty"`

	// Transport
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RequestTimeout    int     `yaml:"request_timeout"`
	UserAgent         string  `yaml:"user_agent"`
	Cookie            string  `yaml:"cookie"`
	CookieFile        string  `yaml:"cookie_file"`
	CloudflareBypass  bool    `yaml:"cloudflare_bypass"`

	// Downloads
	Output         string   `yaml:"output"`
	ImageWorkers   int      `yaml:"image_workers"`
	ChapterWorkers int      `yaml:"chapter_workers"`
	KeepFolders    bool     `yaml:"keep_folders"`
	SkipBroken     bool     `yaml:"skip_broken"`
	AllowExt       []string `yaml:"allow_ext"`

	DefaultManga string `yaml:"default_manga"`
	DefaultRange string `yaml:"default_range"`
	DefaultList  string `yaml:"default_list"`

	Debug bool `yaml:"debug"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool

	PrimaryURL        string
	SecondaryURL      *string
	SiteFile          string
	SearchMode        string
	UpdateMode        string
	MaxUpdatePages    int
	RequestsPerSecond float64
	RequestTimeout    int
	UserAgent         string
	Cookie            string
	CookieFile        string
	CloudflareBypass  bool

	Output         string
	ImageWorkers   int
	ChapterWorkers int
	KeepFolders    bool
	SkipBroken     bool
	DefaultManga   string
	DefaultRange   string
	DefaultList    string
}

func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: 2,
		RequestTimeout:    30,
		Output:            ".",
		ImageWorkers:      5,
		ChapterWorkers:    2,
		AllowExt:          []string{"jpg", "jpeg", "png", "webp"},
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged loads the active profile from the default store. See
// Store.LoadMerged.
func LoadMerged(opts Options) (*Config, string, error) {
	return DefaultStore().LoadMerged(opts)
}

// LoadMerged returns the active profile with opts laid over it, plus a
// description of where it came from. Without an active profile the defaults
// are used.
func (s *Store) LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := s.ActiveConfigPath()
	if errors.Is(err, ErrNoConfig) || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `readmanga config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.PrimaryURL != "" {
		c.PrimaryURL = o.PrimaryURL
	}
	if o.SecondaryURL != nil {
		v := *o.SecondaryURL
		c.SecondaryURL = &v
	}
	if o.SiteFile != "" {
		c.SiteFile = o.SiteFile
	}
	if o.SearchMode != "" {
		c.SearchMode = o.SearchMode
	}
	if o.UpdateMode != "" {
		c.UpdateMode = o.UpdateMode
	}
	if o.MaxUpdatePages != 0 {
		c.MaxUpdatePages = o.MaxUpdatePages
	}
	if o.RequestsPerSecond != 0 {
		c.RequestsPerSecond = o.RequestsPerSecond
	}
	if o.RequestTimeout != 0 {
		c.RequestTimeout = o.RequestTimeout
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.CloudflareBypass {
		c.CloudflareBypass = true
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.ImageWorkers != 0 {
		c.ImageWorkers = o.ImageWorkers
	}
	if o.ChapterWorkers != 0 {
		c.ChapterWorkers = o.ChapterWorkers
	}
	if o.KeepFolders {
		c.KeepFolders = true
	}
	if o.SkipBroken {
		c.SkipBroken = true
	}
	if o.DefaultManga != "" {
		c.DefaultManga = o.DefaultManga
	}
	if o.DefaultRange != "" {
		c.DefaultRange = o.DefaultRange
	}
	if o.DefaultList != "" {
		c.DefaultList = o.DefaultList
	}
	if o.Debug {
		c.Debug = true
	}
}

func normalizeDefaults(c *Config) {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30
	}
	if c.Output == "" {
		c.Output = "."
	}
	if c.ImageWorkers == 0 {
		c.ImageWorkers = 5
	}
	if c.ChapterWorkers == 0 {
		c.ChapterWorkers = 2
	}
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Site builds the site table: the built-in defaults, then the optional site
// file, then whatever overrides this config sets.
func (c *Config) Site() (*readmanga.Site, error) {
	site, err := readmanga.LoadSite(c.SiteFile)
	if err != nil {
		return nil, err
	}

	if c.PrimaryURL != "" {
		site.PrimaryURL = c.PrimaryURL
	}
	if c.SecondaryURL != nil {
		site.SecondaryURL = *c.SecondaryURL
	}
	if c.SearchMode != "" {
		site.SearchMode = c.SearchMode
	}
	if c.UpdateMode != "" {
		site.UpdateMode = c.UpdateMode
	}
	if c.MaxUpdatePages > 0 {
		site.MaxUpdatePages = c.MaxUpdatePages
	}

	return site, site.Validate()
}

func (c *Config) Print(w io.Writer) {
	if c.PrimaryURL != "" {
		fmt.Fprintf(w, " -primary_url: %s\n", c.PrimaryURL)
	}
	if c.SecondaryURL != nil {
		if *c.SecondaryURL == "" {
			fmt.Fprintln(w, " -secondary_url: (disabled)")
		} else {
			fmt.Fprintf(w, " -secondary_url: %s\n", *c.SecondaryURL)
		}
	}
	if c.SiteFile != "" {
		fmt.Fprintf(w, " -site_file: %s\n", c.SiteFile)
	}
	if c.SearchMode != "" {
		fmt.Fprintf(w, " -search_mode: %s\n", c.SearchMode)
	}
	if c.UpdateMode != "" {
		fmt.Fprintf(w, " -update_mode: %s\n", c.UpdateMode)
	}
	if c.MaxUpdatePages > 0 {
		fmt.Fprintf(w, " -max_update_pages: %d\n", c.MaxUpdatePages)
	}
	fmt.Fprintf(w, " -requests_per_second: %g\n", c.RequestsPerSecond)
	fmt.Fprintf(w, " -request_timeout: %ds\n", c.RequestTimeout)
	if c.UserAgent != "" {
		fmt.Fprintf(w, " -user_agent: %s\n", c.UserAgent)
	}
	if c.CookieFile != "" {
		fmt.Fprintf(w, " -cookie_file: %s\n", c.CookieFile)
	}
	if c.CloudflareBypass {
		fmt.Fprintf(w, " -cloudflare_bypass: %t\n", c.CloudflareBypass)
	}
	if c.Output != "" {
		fmt.Fprintf(w, " -output: %s\n", c.Output)
	}
	fmt.Fprintf(w, " -image_workers: %d\n", c.ImageWorkers)
	fmt.Fprintf(w, " -chapter_workers: %d\n", c.ChapterWorkers)
	if c.KeepFolders {
		fmt.Fprintf(w, " -keep_folders: %t\n", c.KeepFolders)
	}
	if c.SkipBroken {
		fmt.Fprintf(w, " -skip_broken: %t\n", c.SkipBroken)
	}
	if len(c.AllowExt) > 0 {
		fmt.Fprintf(w, " -allow_ext: %s\n", strings.Join(c.AllowExt, ", "))
	}
	if c.DefaultManga != "" {
		fmt.Fprintf(w, " -manga: %s\n", c.DefaultManga)
	}
	if c.DefaultRange != "" {
		fmt.Fprintf(w, " -range: %s\n", c.DefaultRange)
	}
	if c.DefaultList != "" {
		fmt.Fprintf(w, " -list: %s\n", c.DefaultList)
	}
	if c.Debug {
		fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
}
