// Package config loads npmlens settings.
//
// Settings are resolved in order, later sources winning:
//
//  1. built-in defaults
//  2. the TOML file ($XDG_CONFIG_HOME/npmlens/config.toml, or the path
//     passed with --config)
//  3. NPMLENS_* environment variables, including those set in a .env file
//     in the working directory
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/kv"
)

const (
	appName  = "npmlens"
	fileName = "config.toml"

	// DefaultTimeout bounds each upstream HTTP request.
	DefaultTimeout = 10 * time.Second
)

// Environment variables read by [Load].
const (
	EnvRegistryURL     = "NPMLENS_REGISTRY_URL"
	EnvDownloadsURL    = "NPMLENS_DOWNLOADS_URL"
	EnvNpmsURL         = "NPMLENS_NPMS_URL"
	EnvBundlephobiaURL = "NPMLENS_BUNDLEPHOBIA_URL"
	EnvStore           = "NPMLENS_STORE"
	EnvMongoDatabase   = "NPMLENS_MONGO_DATABASE"
	EnvTimeout         = "NPMLENS_TIMEOUT"
	EnvLogLevel        = "NPMLENS_LOG_LEVEL"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Duration is a time.Duration written as a Go duration string ("10s") in
// TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds every setting.
type Config struct {
	RegistryURL     string   `toml:"registry_url"`
	DownloadsURL    string   `toml:"downloads_url"`
	NpmsURL         string   `toml:"npms_url"`
	BundlephobiaURL string   `toml:"bundlephobia_url"`
	Store           string   `toml:"store"`
	MongoDatabase   string   `toml:"mongo_database"`
	Timeout         Duration `toml:"timeout"`
	LogLevel        string   `toml:"log_level"`
	// Popular overrides the package set of the popular board.
	Popular []string `toml:"popular,omitempty"`

	// Path is the file the config was read from, empty when none was.
	Path string `toml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		RegistryURL:     integrations.DefaultRegistryURL,
		DownloadsURL:    integrations.DefaultDownloadsURL,
		NpmsURL:         integrations.DefaultNpmsURL,
		BundlephobiaURL: integrations.DefaultBundlephobiaURL,
		Store:           DefaultStore(),
		MongoDatabase:   kv.DefaultMongoDatabase,
		Timeout:         Duration(DefaultTimeout),
		LogLevel:        "info",
	}
}

// Dir returns the npmlens config directory following the XDG convention
// (~/.config/npmlens/).
func Dir() string {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(home, ".config", appName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), fileName)
}

// DefaultStore returns the default store URL, a SQLite database in [Dir].
func DefaultStore() string {
	return "sqlite:" + filepath.Join(Dir(), appName+".db")
}

// Load resolves the settings. An empty path selects [DefaultPath], which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "load .env")
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	switch err := cfg.decodeFile(path); {
	case err == nil:
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv() error {
	for env, dst := range map[string]*string{
		EnvRegistryURL:     &c.RegistryURL,
		EnvDownloadsURL:    &c.DownloadsURL,
		EnvNpmsURL:         &c.NpmsURL,
		EnvBundlephobiaURL: &c.BundlephobiaURL,
		EnvStore:           &c.Store,
		EnvMongoDatabase:   &c.MongoDatabase,
		EnvLogLevel:        &c.LogLevel,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		if err := c.Timeout.UnmarshalText([]byte(v)); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "invalid %s %q", EnvTimeout, v)
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for _, u := range []struct{ name, value string }{
		{"registry_url", c.RegistryURL},
		{"downloads_url", c.DownloadsURL},
		{"npms_url", c.NpmsURL},
		{"bundlephobia_url", c.BundlephobiaURL},
	} {
		if err := pkgerrors.ValidateURL(u.value); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "%s %q", u.name, u.value)
		}
	}

	if c.Timeout <= 0 {
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "timeout must be positive, got %s", time.Duration(c.Timeout))
	}

	if _, _, err := kv.Parse(c.Store); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "store %q", c.Store)
	}

	c.LogLevel = strings.ToLower(c.LogLevel)
	if !slices.Contains(logLevels, c.LogLevel) {
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "log_level must be one of %s, got %q", strings.Join(logLevels, ", "), c.LogLevel)
	}
	return nil
}

// Write encodes c as TOML.
func (c *Config) Write(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
