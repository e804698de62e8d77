package ringslog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/eringen/ringslog/postform"
	"github.com/eringen/ringslog/submit"
	"github.com/eringen/ringslog/uploads"
)

// SiteConfig holds all configuration for a RingsLog site.
type SiteConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`               // Site name (default "RingsLog")
	URL         string `mapstructure:"url" yaml:"url"`                 // Canonical URL (default "http://localhost:3000")
	Description string `mapstructure:"description" yaml:"description"` // Meta description

	Addr         string `mapstructure:"addr" yaml:"addr"`                   // Listen address (default ":3000")
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // SQLite path (default "data/ringslog.db")
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`         // debug/info/warn/error, empty = silent

	SessionSecret string        `mapstructure:"session_secret" yaml:"-"`        // Required: cookie + token signing secret
	CookieSecure  bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"` // Set true for HTTPS
	TokenTTL      time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`     // Access token lifetime (default 12h)

	BookAPIURL  string `mapstructure:"book_api_url" yaml:"book_api_url"`   // Catalog endpoint (default Google Books)
	PostsAPIURL string `mapstructure:"posts_api_url" yaml:"posts_api_url"` // External posts API; empty = in-process

	Storage         string            `mapstructure:"storage" yaml:"storage"`                     // "local" (default) or "s3"
	UploadDir       string            `mapstructure:"upload_dir" yaml:"upload_dir"`               // Local uploads dir (default "public/uploads")
	UploadURLPrefix string            `mapstructure:"upload_url_prefix" yaml:"upload_url_prefix"` // default "/public/uploads"
	S3              uploads.S3Options `mapstructure:"s3" yaml:"s3"`

	ReviewCacheTTL time.Duration `mapstructure:"review_cache_ttl" yaml:"review_cache_ttl"` // default 5min
	FormSessionTTL time.Duration `mapstructure:"form_session_ttl" yaml:"form_session_ttl"` // default 1h
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "RingsLog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/ringslog.db"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 12 * time.Hour
	}
	if c.Storage == "" {
		c.Storage = "local"
	}
	if c.UploadDir == "" {
		c.UploadDir = "public/uploads"
	}
	if c.UploadURLPrefix == "" {
		c.UploadURLPrefix = "/public/uploads"
	}
	if c.ReviewCacheTTL == 0 {
		c.ReviewCacheTTL = 5 * time.Minute
	}
	if c.FormSessionTTL == 0 {
		c.FormSessionTTL = time.Hour
	}
}

// LoadConfig reads configuration from the YAML file at path (optional) and
// RINGSLOG_* environment variables, e.g. RINGSLOG_SESSION_SECRET or
// RINGSLOG_S3_BUCKET. A missing file is not an error.
func LoadConfig(path string) (SiteConfig, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv can bind it during Unmarshal.
	v.SetDefault("name", "RingsLog")
	v.SetDefault("url", "http://localhost:3000")
	v.SetDefault("description", "本の感想を記録するブログ")
	v.SetDefault("addr", ":3000")
	v.SetDefault("database_path", "data/ringslog.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_secret", "")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("token_ttl", "12h")
	v.SetDefault("book_api_url", "")
	v.SetDefault("posts_api_url", "")
	v.SetDefault("storage", "local")
	v.SetDefault("upload_dir", "public/uploads")
	v.SetDefault("upload_url_prefix", "/public/uploads")
	for _, k := range []string{"bucket", "region", "endpoint", "access_key_id", "secret_access_key", "public_url", "prefix"} {
		v.SetDefault("s3."+k, "")
	}
	v.SetDefault("review_cache_ttl", "5m")
	v.SetDefault("form_session_ttl", "1h")

	v.SetEnvPrefix("RINGSLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return SiteConfig{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger sets the application logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithStore uses an already opened Store instead of opening DatabasePath.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithBookLookup replaces the catalog client used for ISBN autofill.
func WithBookLookup(l postform.Lookuper) Option {
	return func(a *App) {
		a.lookup = l
	}
}

// WithPoster replaces the posts API the editor submits to.
func WithPoster(p submit.Poster) Option {
	return func(a *App) {
		a.poster = p
	}
}

// WithUploadStore replaces the image store selected by Storage.
func WithUploadStore(s uploads.Store) Option {
	return func(a *App) {
		a.uploads = s
	}
}
