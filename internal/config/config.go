package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "symprime.db"
	defaultUploadDir    = "uploads"
	defaultTokenTTL     = 24 * time.Hour
	defaultTickInterval = 2 * time.Second

	envListenAddr   = "SYMPRIME_LISTEN_ADDR"
	envDBPath       = "SYMPRIME_DB_PATH"
	envLogLevel     = "SYMPRIME_LOG_LEVEL"
	envTokenSecret  = "SYMPRIME_TOKEN_SECRET"
	envTokenTTL     = "SYMPRIME_TOKEN_TTL"
	envTickInterval = "SYMPRIME_TICK_INTERVAL"
	envUploadDir    = "SYMPRIME_UPLOAD_DIR"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBPath       string
	LogLevel     slog.Level
	TokenSecret  string
	TokenTTL     time.Duration
	TickInterval time.Duration
	UploadDir    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:   defaultListenAddr,
		DBPath:       defaultDBPath,
		LogLevel:     slog.LevelInfo,
		TokenTTL:     defaultTokenTTL,
		TickInterval: defaultTickInterval,
		UploadDir:    defaultUploadDir,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envTokenSecret); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv(envTokenTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}
	if v := os.Getenv(envTickInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TickInterval = d
		}
	}
	if v := os.Getenv(envUploadDir); v != "" {
		cfg.UploadDir = v
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
