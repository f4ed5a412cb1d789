package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL not set")

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	AutoMigrate bool
	Workers     int
	LogLevel    string

	Worker  WorkerConfig
	Browser BrowserConfig
}

type WorkerConfig struct {
	MaxResults    int
	MaxIterations int
	IdleBackoff   time.Duration
	SettleDelay   time.Duration
	NavTimeout    time.Duration
	StepTimeout   time.Duration
	InitialWait   time.Duration
	DetailWait    time.Duration
	ScrollWait    time.Duration
	MaxErrorLen   int
	SearchBaseURL string
}

type BrowserConfig struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Locale    string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122 Safari/537.36"

func Default() Config {
	return Config{
		Env:         "development",
		ListenAddr:  ":8080",
		AutoMigrate: true,
		LogLevel:    "info",
		Worker: WorkerConfig{
			MaxResults:    40,
			MaxIterations: 30,
			IdleBackoff:   3 * time.Second,
			SettleDelay:   1500 * time.Millisecond,
			NavTimeout:    60 * time.Second,
			StepTimeout:   15 * time.Second,
			InitialWait:   4 * time.Second,
			DetailWait:    2500 * time.Millisecond,
			ScrollWait:    2 * time.Second,
			MaxErrorLen:   1000,
			SearchBaseURL: "https://www.google.com/maps/search/",
		},
		Browser: BrowserConfig{
			Headless:  true,
			UserAgent: defaultUserAgent,
			Locale:    "en-US",
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file named
// by CONFIG_FILE, and the environment (including a .env file if present).
// The returned Config is usable even when err is ErrMissingDatabaseURL.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Env = getenv("APP_ENV", cfg.Env)
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.AutoMigrate = getenvBool("AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.Workers = getenvInt("WORKERS", cfg.Workers)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)

	w := &cfg.Worker
	w.MaxResults = getenvInt("MAX_RESULTS", w.MaxResults)
	w.MaxIterations = getenvInt("MAX_ITERATIONS", w.MaxIterations)
	w.IdleBackoff = getenvDuration("IDLE_BACKOFF", w.IdleBackoff)
	w.SettleDelay = getenvDuration("SETTLE_DELAY", w.SettleDelay)
	w.NavTimeout = getenvDuration("NAV_TIMEOUT", w.NavTimeout)
	w.StepTimeout = getenvDuration("STEP_TIMEOUT", w.StepTimeout)
	w.InitialWait = getenvDuration("INITIAL_WAIT", w.InitialWait)
	w.DetailWait = getenvDuration("DETAIL_WAIT", w.DetailWait)
	w.ScrollWait = getenvDuration("SCROLL_WAIT", w.ScrollWait)
	w.MaxErrorLen = getenvInt("MAX_ERROR_LEN", w.MaxErrorLen)
	w.SearchBaseURL = getenv("SEARCH_BASE_URL", w.SearchBaseURL)

	b := &cfg.Browser
	b.Headless = getenvBool("CHROME_HEADLESS", b.Headless)
	b.ExecPath = getenv("CHROME_PATH", b.ExecPath)
	b.UserAgent = getenv("USER_AGENT", b.UserAgent)
	b.Locale = getenv("BROWSER_LOCALE", b.Locale)

	if cfg.DatabaseURL == "" {
		return cfg, ErrMissingDatabaseURL
	}
	return cfg, nil
}

// fileConfig mirrors Config for TOML decoding; durations are strings such
// as "1500ms".
type fileConfig struct {
	Env         string `toml:"env"`
	ListenAddr  string `toml:"listen_addr"`
	DatabaseURL string `toml:"database_url"`
	AutoMigrate *bool  `toml:"auto_migrate"`
	Workers     int    `toml:"workers"`
	LogLevel    string `toml:"log_level"`
	Worker      struct {
		MaxResults    int    `toml:"max_results"`
		MaxIterations int    `toml:"max_iterations"`
		IdleBackoff   string `toml:"idle_backoff"`
		SettleDelay   string `toml:"settle_delay"`
		NavTimeout    string `toml:"nav_timeout"`
		StepTimeout   string `toml:"step_timeout"`
		InitialWait   string `toml:"initial_wait"`
		DetailWait    string `toml:"detail_wait"`
		ScrollWait    string `toml:"scroll_wait"`
		MaxErrorLen   int    `toml:"max_error_len"`
		SearchBaseURL string `toml:"search_base_url"`
	} `toml:"worker"`
	Browser struct {
		Headless  *bool  `toml:"headless"`
		ExecPath  string `toml:"exec_path"`
		UserAgent string `toml:"user_agent"`
		Locale    string `toml:"locale"`
	} `toml:"browser"`
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Env, fc.Env)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	if fc.AutoMigrate != nil {
		cfg.AutoMigrate = *fc.AutoMigrate
	}
	setInt(&cfg.Workers, fc.Workers)
	setString(&cfg.LogLevel, fc.LogLevel)

	w := &cfg.Worker
	setInt(&w.MaxResults, fc.Worker.MaxResults)
	setInt(&w.MaxIterations, fc.Worker.MaxIterations)
	setInt(&w.MaxErrorLen, fc.Worker.MaxErrorLen)
	setString(&w.SearchBaseURL, fc.Worker.SearchBaseURL)
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"worker.idle_backoff", fc.Worker.IdleBackoff, &w.IdleBackoff},
		{"worker.settle_delay", fc.Worker.SettleDelay, &w.SettleDelay},
		{"worker.nav_timeout", fc.Worker.NavTimeout, &w.NavTimeout},
		{"worker.step_timeout", fc.Worker.StepTimeout, &w.StepTimeout},
		{"worker.initial_wait", fc.Worker.InitialWait, &w.InitialWait},
		{"worker.detail_wait", fc.Worker.DetailWait, &w.DetailWait},
		{"worker.scroll_wait", fc.Worker.ScrollWait, &w.ScrollWait},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}

	b := &cfg.Browser
	if fc.Browser.Headless != nil {
		b.Headless = *fc.Browser.Headless
	}
	setString(&b.ExecPath, fc.Browser.ExecPath)
	setString(&b.UserAgent, fc.Browser.UserAgent)
	setString(&b.Locale, fc.Browser.Locale)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseBool(v); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}
