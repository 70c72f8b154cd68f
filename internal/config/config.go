package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	APIBaseURL string
	APIToken   string

	PollInterval time.Duration
	HTTPTimeout  time.Duration

	ActionNoticeTTL time.Duration
	CopyNoticeTTL   time.Duration
	ConfigCacheTTL  time.Duration

	DownloadDir string
	LogLevel    slog.Level
}

// Load reads configuration from environment variables and validates required
// fields. requireToken is false in demo mode, where the fake backend issues
// its own token.
func Load(requireToken bool) (Config, error) {
	pollInterval, err := getEnvDuration("POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_INTERVAL: %w", err)
	}

	httpTimeout, err := getEnvDuration("HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_TIMEOUT: %w", err)
	}

	actionTTL, err := getEnvDuration("ACTION_NOTICE_TTL", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse ACTION_NOTICE_TTL: %w", err)
	}

	copyTTL, err := getEnvDuration("COPY_NOTICE_TTL", 3*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse COPY_NOTICE_TTL: %w", err)
	}

	cacheTTL, err := getEnvDuration("CONFIG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse CONFIG_CACHE_TTL: %w", err)
	}

	level, err := getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	if err != nil {
		return Config{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	cfg := Config{
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8000"),
		APIToken:        getEnv("API_TOKEN", ""),
		PollInterval:    pollInterval,
		HTTPTimeout:     httpTimeout,
		ActionNoticeTTL: actionTTL,
		CopyNoticeTTL:   copyTTL,
		ConfigCacheTTL:  cacheTTL,
		DownloadDir:     getEnv("DOWNLOAD_DIR", "."),
		LogLevel:        level,
	}

	if err := cfg.validate(requireToken); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate(requireToken bool) error {
	if requireToken && c.APIToken == "" {
		return fmt.Errorf("API_TOKEN is required")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

func getEnvLevel(key string, defaultValue slog.Level) (slog.Level, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
		return defaultValue, err
	}
	return level, nil
}
