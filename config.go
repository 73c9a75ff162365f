package prismblog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eringen/prismblog/logger"
)

// Duration wraps time.Duration for YAML. It accepts strings like "30m" and
// bare integers, read as seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ContentConfig points the site at its content API.
type ContentConfig struct {
	Endpoint    string   `yaml:"endpoint"`     // PRISMIC_ENDPOINT, required
	AccessToken string   `yaml:"access_token"` // PRISMIC_ACCESS_TOKEN
	Type        string   `yaml:"type"`         // document type listed on the home page (default "posts")
	PageSize    int      `yaml:"page_size"`    // posts per page (default 1)
	Orderings   []string `yaml:"orderings"`
	Timeout     Duration `yaml:"timeout"`      // per request (default 15s)
	MaxAttempts int      `yaml:"max_attempts"` // listing query attempts (default 3)
}

// SiteConfig holds all configuration for a prismblog site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Blog")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Author name for JSON-LD
	Locale      string `yaml:"locale"`      // Date locale (default "pt_BR")

	Addr         string `yaml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `yaml:"database_path"` // Snapshot SQLite path (default "data/prismblog.db")

	AdminPassword    string `yaml:"admin_password"`    // Enables the admin dashboard when set
	SessionSecret    string `yaml:"session_secret"`    // Required by the server
	CookieSecure     bool   `yaml:"cookie_secure"`     // Set true for HTTPS
	RevalidateSecret string `yaml:"revalidate_secret"` // Enables the revalidation webhook when set

	Content ContentConfig `yaml:"content"`

	Revalidate    Duration `yaml:"revalidate"`      // Page staleness interval; 0 means the default 1800s
	ViewTTL       Duration `yaml:"view_ttl"`        // Idle lifetime of a page view's pagination session (default 30m)
	MaxViews      int      `yaml:"max_views"`       // Live pagination sessions kept (default 10000)
	LoadMoreLimit int      `yaml:"load_more_limit"` // Load-more requests per IP per minute (default 60)

	Log logger.Config `yaml:"log"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Locale == "" {
		c.Locale = "pt_BR"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/prismblog.db"
	}
	if c.Content.Type == "" {
		c.Content.Type = "posts"
	}
	if c.Content.PageSize < 1 {
		c.Content.PageSize = 1
	}
	if c.Content.Timeout.Duration == 0 {
		c.Content.Timeout.Duration = 15 * time.Second
	}
	if c.Content.MaxAttempts == 0 {
		c.Content.MaxAttempts = 3
	}
	if c.Revalidate.Duration == 0 {
		c.Revalidate.Duration = 1800 * time.Second
	}
	if c.ViewTTL.Duration == 0 {
		c.ViewTTL.Duration = 30 * time.Minute
	}
	if c.MaxViews == 0 {
		c.MaxViews = 10000
	}
	if c.LoadMoreLimit == 0 {
		c.LoadMoreLimit = 60
	}
}

// Validate reports configuration errors that make the site unusable.
func (c *SiteConfig) Validate() error {
	if strings.TrimSpace(c.Content.Endpoint) == "" {
		return errors.New("content.endpoint is required (PRISMIC_ENDPOINT)")
	}
	if c.Revalidate.Duration < 0 {
		return errors.New("revalidate must not be negative")
	}
	if c.ViewTTL.Duration < 0 {
		return errors.New("view_ttl must not be negative")
	}
	if c.MaxViews < 0 {
		return errors.New("max_views must not be negative")
	}
	return nil
}

// LoadConfig builds a SiteConfig from .env files, the optional YAML file
// at path, and environment variables, in increasing priority.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if err := loadEnvFiles(); err != nil {
		return cfg, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// Variables already present in the environment win.
func loadEnvFiles() error {
	files := []string{".env.local", ".env"}
	if f := os.Getenv("ENV_FILE"); f != "" {
		files = []string{f}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *SiteConfig) error {
	strs := map[string]*string{
		"SITE_NAME":            &cfg.Name,
		"SITE_URL":             &cfg.URL,
		"SITE_DESCRIPTION":     &cfg.Description,
		"SITE_AUTHOR":          &cfg.Author,
		"SITE_LOCALE":          &cfg.Locale,
		"ADDR":                 &cfg.Addr,
		"DATABASE_PATH":        &cfg.DatabasePath,
		"ADMIN_PASSWORD":       &cfg.AdminPassword,
		"SESSION_SECRET":       &cfg.SessionSecret,
		"REVALIDATE_SECRET":    &cfg.RevalidateSecret,
		"PRISMIC_ENDPOINT":     &cfg.Content.Endpoint,
		"PRISMIC_ACCESS_TOKEN": &cfg.Content.AccessToken,
		"CONTENT_TYPE":         &cfg.Content.Type,
		"LOG_LEVEL":            &cfg.Log.Level,
		"LOG_FORMAT":           &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PAGE_SIZE":       &cfg.Content.PageSize,
		"MAX_VIEWS":       &cfg.MaxViews,
		"LOAD_MORE_LIMIT": &cfg.LoadMoreLimit,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("REVALIDATE_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REVALIDATE_SECONDS: %w", err)
		}
		cfg.Revalidate.Duration = time.Duration(n) * time.Second
	}
	if v := os.Getenv("VIEW_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VIEW_TTL: %w", err)
		}
		cfg.ViewTTL.Duration = d
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = v == "true" || v == "1"
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts. Paths without a
// trailing slash are redirected to the slashed form, so register page
// routes as "/name/".
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the logger built from SiteConfig.Log.
func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithContentAPI replaces the content client built from SiteConfig.Content.
func WithContentAPI(api ContentAPI) Option {
	return func(a *App) {
		a.Content = api
	}
}

// WithViews replaces the default templates.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}
