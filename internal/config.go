package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/tagging"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Notes   NotesConfig       `yaml:"notes"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Sync    SyncConfig        `yaml:"sync"`
	Tagging TaggingConfig     `yaml:"tagging"`
	GPG     GPGConfig         `yaml:"gpg"`
	Links   LinksConfig       `yaml:"links"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.App, &c.Notes, &c.SQLite, &c.Auth, &c.Sync, &c.Tagging, &c.GPG, &c.Links,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
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

// NotesConfig holds the notes root directory (YYYY/MM/<id>.md[.gpg] below it).
type NotesConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// SyncConfig controls the git sync run when a command exits. Remote is the
// URL configured as origin; without it changes are only committed locally.
type SyncConfig struct {
	AutoSync  bool          `yaml:"auto_sync"`
	Remote    string        `yaml:"remote"`
	UserName  string        `yaml:"user_name"`
	UserEmail string        `yaml:"user_email"`
	ExitGrace time.Duration `yaml:"exit_grace"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ExitGrace, validation.Min(time.Duration(0))),
	)
}

// TaggingConfig controls keyword auto-tagging of recently edited notes.
type TaggingConfig struct {
	AutoTag bool `yaml:"auto_tag"`
	MaxTags int  `yaml:"max_tags"`
}

// Validate validates the tagging configuration.
func (c *TaggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxTags, validation.Min(1), validation.Max(20)),
	)
}

// GPGConfig names the gpg binary and recipient key used for encrypted notes.
// An empty Key leaves encrypted notes unreadable and new notes plain.
type GPGConfig struct {
	Binary string `yaml:"binary"`
	Key    string `yaml:"key"`
}

// Validate validates the gpg configuration.
func (c *GPGConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
	)
}

// Enabled reports whether a recipient key is configured.
func (c *GPGConfig) Enabled() bool {
	return c.Key != ""
}

// LinksConfig tunes link extraction.
type LinksConfig struct {
	// ContextRadius is the number of characters kept on each side of a link
	// or mention.
	ContextRadius int `yaml:"context_radius"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ContextRadius, validation.Required, validation.Min(1), validation.Max(1000)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Dir: "./notes",
		},
		SQLite: SQLiteConfig{
			Path: "./notes/.notegraph.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Sync: SyncConfig{
			ExitGrace: 10 * time.Second,
		},
		Tagging: TaggingConfig{
			MaxTags: tagging.DefaultMaxTags,
		},
		GPG: GPGConfig{
			Binary: "gpg",
		},
		Links: LinksConfig{
			ContextRadius: parser.DefaultContextRadius,
		},
	}
}
