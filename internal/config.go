package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Storage     StorageConfig     `yaml:"storage"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Sweeper     SweeperConfig     `yaml:"sweeper"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	Store       StoreConfig       `yaml:"store"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Storage, &c.SQLite, &c.Auth, &c.Transcriber, &c.Sweeper,
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
	// BaseURL prefixes artifact links returned by save_note; empty keeps them host-relative.
	BaseURL string `yaml:"base_url"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.BaseURL, is.RequestURL),
	)
}

// StorageConfig holds the output directory for note artifacts.
type StorageConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OutputDir, validation.Required),
	)
}

// AudioDir returns the directory holding recordings.
func (c *StorageConfig) AudioDir() string {
	return filepath.Join(c.OutputDir, "audio")
}

// NotesDir returns the directory holding text and document artifacts.
func (c *StorageConfig) NotesDir() string {
	return filepath.Join(c.OutputDir, "notes")
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
//   - "disabled" (default): no authentication required, suitable for local use.
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

// TranscriberConfig points at the Whisper ASR webservice.
type TranscriberConfig struct {
	URL           string        `yaml:"url"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	Retries       int           `yaml:"retries"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// Validate validates the transcriber configuration.
func (c *TranscriberConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.RequestURL),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.MaxConcurrent, validation.Min(1)),
	)
}

// SweeperConfig controls removal of abandoned temp recordings.
type SweeperConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// Validate validates the sweeper configuration.
func (c *SweeperConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxAge, validation.Required, validation.Min(time.Minute)),
	)
}

// WatcherConfig toggles the artifact directory watcher.
type WatcherConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StoreConfig holds note store maintenance options.
type StoreConfig struct {
	ReconcileOnStart bool `yaml:"reconcile_on_start"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 5000,
			},
		},
		Storage: StorageConfig{
			OutputDir: "./outputs",
		},
		SQLite: SQLiteConfig{
			Path: "./notes.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Transcriber: TranscriberConfig{
			URL:           "http://localhost:9000",
			Model:         "medium",
			Timeout:       2 * time.Minute,
			Retries:       3,
			MaxConcurrent: 1,
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Interval: 10 * time.Minute,
			MaxAge:   24 * time.Hour,
		},
		Watcher: WatcherConfig{
			Enabled: true,
		},
		Store: StoreConfig{
			ReconcileOnStart: true,
		},
	}
}
