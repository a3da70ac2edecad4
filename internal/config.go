package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store drivers.
const (
	StoreDriverHTTP   = "http"
	StoreDriverSQLite = "sqlite"
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Documents DocumentsConfig   `yaml:"documents"`
	Tracked   TrackedConfig     `yaml:"tracked"`
	Spool     SpoolConfig       `yaml:"spool"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Documents.Validate(); err != nil {
		return err
	}
	if err := c.Tracked.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level      `yaml:"log_level"`
	HTTP      HTTPConfig      `yaml:"http"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RateLimitConfig throttles the webhook endpoint per client.
// RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	// Database is the logical database id the aggregate documents live in.
	Database string            `yaml:"database"`
	HTTP     HTTPStoreConfig   `yaml:"http"`
	SQLite   SQLiteStoreConfig `yaml:"sqlite"`
	Redis    RedisStoreConfig  `yaml:"redis"`
}

// Validate validates the store configuration, including the section for
// the selected driver.
func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StoreDriverMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(StoreDriverHTTP, StoreDriverSQLite, StoreDriverRedis, StoreDriverMemory)),
		validation.Field(&c.Database, validation.Required),
	); err != nil {
		return err
	}
	switch c.Driver {
	case StoreDriverHTTP:
		return c.HTTP.Validate()
	case StoreDriverSQLite:
		return c.SQLite.Validate()
	case StoreDriverRedis:
		return c.Redis.Validate()
	}
	return nil
}

// HTTPStoreConfig configures the remote document backend client.
type HTTPStoreConfig struct {
	Endpoint string `yaml:"endpoint"`
	Project  string `yaml:"project"`
	Key      string `yaml:"key"`
}

// Validate validates the HTTP store configuration.
func (c *HTTPStoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.Project, validation.Required),
		validation.Field(&c.Key, validation.Required),
	)
}

// SQLiteStoreConfig configures the local SQLite store backend.
type SQLiteStoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite store configuration.
func (c *SQLiteStoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RedisStoreConfig configures the Redis store backend.
type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate validates the Redis store configuration.
func (c *RedisStoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
	)
}

// DocumentsConfig names the three aggregate documents.
type DocumentsConfig struct {
	StatsCollection   string `yaml:"stats_collection"`
	StatsDocument     string `yaml:"stats_document"`
	CacheCollection   string `yaml:"cache_collection"`
	LinksDocument     string `yaml:"links_document"`
	UploadersDocument string `yaml:"uploaders_document"`
}

// Validate validates the documents configuration.
func (c *DocumentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StatsCollection, validation.Required),
		validation.Field(&c.StatsDocument, validation.Required),
		validation.Field(&c.CacheCollection, validation.Required),
		validation.Field(&c.LinksDocument, validation.Required),
		validation.Field(&c.UploadersDocument, validation.Required),
	)
}

// TrackedConfig holds the collection ids whose events feed the per-category
// stats counters. The notes collection also drives the uploader cache.
type TrackedConfig struct {
	Notes   string `yaml:"notes"`
	Forms   string `yaml:"forms"`
	YouTube string `yaml:"youtube"`
}

// Validate validates the tracked collections configuration.
func (c *TrackedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Notes, validation.Required),
		validation.Field(&c.Forms, validation.Required),
		validation.Field(&c.YouTube, validation.Required),
	)
}

// SpoolConfig configures the optional file-drop ingestion directory.
// An empty path disables the spool watcher.
type SpoolConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			RateLimit: RateLimitConfig{
				RPS:   20,
				Burst: 40,
			},
		},
		Store: StoreConfig{
			Driver:   StoreDriverMemory,
			Database: "main",
			SQLite: SQLiteStoreConfig{
				Path: "./tally.db",
			},
		},
		Documents: DocumentsConfig{
			StatsCollection:   "stats",
			StatsDocument:     "teacher-stats",
			CacheCollection:   "cache",
			LinksDocument:     "links",
			UploadersDocument: "uploaders",
		},
		Tracked: TrackedConfig{
			Notes:   "notes",
			Forms:   "forms",
			YouTube: "youtube",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
