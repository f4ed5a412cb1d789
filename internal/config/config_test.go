package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.ErrorIs(t, err, ErrMissingDatabaseURL)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 40, cfg.Worker.MaxResults)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/maps")
	t.Setenv("WORKERS", "3")
	t.Setenv("IDLE_BACKOFF", "250ms")
	t.Setenv("CHROME_HEADLESS", "false")
	t.Setenv("MAX_RESULTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/maps", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.IdleBackoff)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 40, cfg.Worker.MaxResults, "unparsable values keep the default")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapscraper.toml")
	body := `
database_url = "badger:///tmp/maps"
log_level = "debug"
auto_migrate = false

[worker]
max_results = 25
settle_delay = "500ms"

[browser]
headless = false
locale = "de-DE"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "badger:///tmp/maps", cfg.DatabaseURL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 25, cfg.Worker.MaxResults)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.SettleDelay)
	assert.Equal(t, 30, cfg.Worker.MaxIterations)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "de-DE", cfg.Browser.Locale)
}

func TestLoad_BadFileDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[worker]\nscroll_wait = \"soon\"\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker.scroll_wait")
}
