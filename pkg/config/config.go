// Package config loads bantay settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/log"
)

// Duration lets TOML carry values like "5m" or "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Session  SessionConfig  `toml:"session"`
	Watchdog WatchdogConfig `toml:"watchdog"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Log      log.Config     `toml:"log"`
}

type BackendConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type SessionConfig struct {
	CommunityHours int      `toml:"community_hours"`
	SystemHours    int      `toml:"system_hours"`
	ExpiryBuffer   Duration `toml:"expiry_buffer"`
	LegacyMirror   bool     `toml:"legacy_mirror"`
}

type WatchdogConfig struct {
	Interval   Duration `toml:"interval"`
	NearExpiry Duration `toml:"near_expiry"`
}

// StorageConfig picks the credential store backend: "memory", "file" or "sqlite".
type StorageConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	Watch  bool   `toml:"watch"`
}

// ServerConfig is used by the development backend only.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	DatabaseURL string `toml:"database_url"`
}

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrInvalidHours  = errors.New("session hours must be positive")
)

func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8080/api",
			Timeout: Duration{15 * time.Second},
		},
		Session: SessionConfig{
			CommunityHours: core.CommunitySessionHours,
			SystemHours:    core.SystemSessionHours,
			ExpiryBuffer:   Duration{core.DefaultExpiryBuffer},
		},
		Watchdog: WatchdogConfig{
			Interval:   Duration{core.DefaultWatchdogInterval},
			NearExpiry: Duration{core.DefaultNearExpiry},
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   defaultStoragePath(),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: log.DefaultConfig(),
	}
}

// Dir is where bantay keeps its config and credential files.
func Dir() string {
	if dir := os.Getenv("BANTAY_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bantay"
	}
	return filepath.Join(home, ".bantay")
}

func defaultStoragePath() string {
	return filepath.Join(Dir(), "credentials.json")
}

// DefaultPath is the config file read when no explicit path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads path (a missing file is fine), applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides lets BANTAY_* variables win over the file.
func (c *Config) ApplyEnvOverrides() {
	c.Backend.BaseURL = getenv("BANTAY_BACKEND_URL", c.Backend.BaseURL)
	c.Backend.Timeout.Duration = getenvDuration("BANTAY_BACKEND_TIMEOUT", c.Backend.Timeout.Duration)
	c.Session.ExpiryBuffer.Duration = getenvDuration("BANTAY_EXPIRY_BUFFER", c.Session.ExpiryBuffer.Duration)
	c.Session.LegacyMirror = getenvBool("BANTAY_LEGACY_MIRROR", c.Session.LegacyMirror)
	c.Watchdog.Interval.Duration = getenvDuration("BANTAY_WATCHDOG_INTERVAL", c.Watchdog.Interval.Duration)
	c.Storage.Driver = getenv("BANTAY_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = getenv("BANTAY_STORAGE_PATH", c.Storage.Path)
	c.Server.Addr = getenv("BANTAY_SERVER_ADDR", c.Server.Addr)
	c.Server.DatabaseURL = getenv("DATABASE_URL", c.Server.DatabaseURL)
	c.Log.Level = getenv("BANTAY_LOG_LEVEL", c.Log.Level)
	c.Log.File = getenv("BANTAY_LOG_FILE", c.Log.File)
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}
	if c.Session.CommunityHours <= 0 || c.Session.SystemHours <= 0 {
		return ErrInvalidHours
	}
	if c.Session.ExpiryBuffer.Duration < 0 {
		c.Session.ExpiryBuffer.Duration = 0
	}
	if c.Watchdog.Interval.Duration <= 0 {
		c.Watchdog.Interval.Duration = core.DefaultWatchdogInterval
	}
	if c.Watchdog.NearExpiry.Duration <= 0 {
		c.Watchdog.NearExpiry.Duration = core.DefaultNearExpiry
	}
	return nil
}

// SessionConfig returns the session settings for class.
func (c *Config) SessionConfig(class core.IdentityClass) core.SessionConfig {
	sc := core.SessionConfigFor(class)
	sc.ExpiryBuffer = c.Session.ExpiryBuffer.Duration
	if class == core.ClassSystem {
		sc.DurationHours = c.Session.SystemHours
	} else {
		sc.DurationHours = c.Session.CommunityHours
	}
	return sc
}

func (c *Config) WatchdogConfig() core.WatchdogConfig {
	return core.WatchdogConfig{
		Interval:   c.Watchdog.Interval.Duration,
		NearExpiry: c.Watchdog.NearExpiry.Duration,
	}
}

// Save writes c to path as TOML with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# bantay configuration")
	return toml.NewEncoder(f).Encode(c)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
