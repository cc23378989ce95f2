package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/portfolio-feed/internal/server"
)

const defaultPort = 5000

// loadConfig builds the server config from environment lookups.
// getenv is os.Getenv in production and a map lookup in tests.
//
//	HOST              listen host (default: all interfaces)
//	PORT              listen port (default 5000)
//	STORE_DRIVER      "file" (default) or "sqlite"
//	DATA_DIR          directory of the JSON collections (default "data")
//	DB_PATH           sqlite database file (default "data/feed.db")
//	TOKEN_SECRET      HMAC key for session tokens (generated and stored when unset)
//	CORS_ORIGINS      comma-separated allowed origins (default "*")
//	RATE_LIMIT_RPS    per-IP requests/second on write routes (0 = off)
//	RATE_LIMIT_BURST  per-IP burst (default 5)
func loadConfig(getenv func(string) string) (server.Config, error) {
	cfg := server.Config{
		Host:           getenv("HOST"),
		Port:           defaultPort,
		StoreDriver:    orDefault(getenv("STORE_DRIVER"), server.DriverFile),
		DataDir:        orDefault(getenv("DATA_DIR"), "data"),
		DBPath:         orDefault(getenv("DB_PATH"), "data/feed.db"),
		TokenSecret:    getenv("TOKEN_SECRET"),
		CORSOrigins:    splitList(orDefault(getenv("CORS_ORIGINS"), "*")),
		RateLimitBurst: 5,
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v) // Atoi = ASCII to Integer
		if err != nil || port < 0 || port > 65535 {
			return cfg, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}

	switch cfg.StoreDriver {
	case server.DriverFile, server.DriverSQLite:
	default:
		return cfg, fmt.Errorf("invalid STORE_DRIVER %q (want %q or %q)", cfg.StoreDriver, server.DriverFile, server.DriverSQLite)
	}

	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimitRPS = rps
	}
	if v := getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst < 1 {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		cfg.RateLimitBurst = burst
	}

	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
