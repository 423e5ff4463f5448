package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/bantay/core"
)

func TestDefault_MatchesSessionRules(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 24, cfg.Session.CommunityHours)
	assert.Equal(t, 8, cfg.Session.SystemHours)
	assert.Equal(t, 5*time.Minute, cfg.Session.ExpiryBuffer.Duration)
	assert.Equal(t, 60*time.Second, cfg.Watchdog.Interval.Duration)
	assert.Equal(t, 30*time.Minute, cfg.Watchdog.NearExpiry.Duration)
	assert.False(t, cfg.Session.LegacyMirror)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
base_url = "https://api.example.test"

[session]
system_hours = 4
expiry_buffer = "2m"
legacy_mirror = true

[storage]
driver = "sqlite"
path = "/tmp/bantay.db"
`), 0o600))
	t.Setenv("BANTAY_WATCHDOG_INTERVAL_SECONDS", "15")
	t.Setenv("BANTAY_STORAGE_PATH", "/var/lib/bantay.db")

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test", cfg.Backend.BaseURL)
	assert.Equal(t, 24, cfg.Session.CommunityHours)
	assert.Equal(t, 4, cfg.Session.SystemHours)
	assert.Equal(t, 2*time.Minute, cfg.Session.ExpiryBuffer.Duration)
	assert.True(t, cfg.Session.LegacyMirror)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/bantay.db", cfg.Storage.Path)
	assert.Equal(t, 15*time.Second, cfg.Watchdog.Interval.Duration)

	sys := cfg.SessionConfig(core.ClassSystem)
	assert.Equal(t, "/system/auth", sys.EndpointPrefix)
	assert.Equal(t, 4, sys.DurationHours)
	assert.Equal(t, 2*time.Minute, sys.ExpiryBuffer)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Backend.BaseURL, cfg.Backend.BaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "unknown driver", content: "[storage]\ndriver = \"redis\"\n", wantErr: ErrUnknownDriver},
		{name: "zero hours", content: "[session]\ncommunity_hours = 0\n", wantErr: ErrInvalidHours},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(test.content), 0o600))

			_, err := Load(path)
			require.ErrorIs(t, err, test.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Session.SystemHours = 6
	cfg.Watchdog.Interval = Duration{30 * time.Second}

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Session.SystemHours)
	assert.Equal(t, 30*time.Second, loaded.Watchdog.Interval.Duration)
}
