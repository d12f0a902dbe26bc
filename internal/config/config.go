package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel slog.Level
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return &Config{
		DBSource: dbSource,
		Port:     port,
		Env:      env,
		LogLevel: level,
	}, nil
}
