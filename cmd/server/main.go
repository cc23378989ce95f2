// Package main is the entry point for the feed API server.
//
// MAIN PACKAGE IN GO:
// main's job is to:
//  1. Read configuration (environment variables, optionally from .env)
//  2. Create dependencies (logger)
//  3. Start the application
//
// All actual logic lives in the internal/ packages.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/portfolio-feed/internal/server"
)

func main() {
	// === 1. LOAD .env ===
	// A missing .env file is normal in production, where the environment is
	// set directly. Remember it and log once the logger exists.
	envErr := godotenv.Load()

	// === 2. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
	if envErr != nil {
		logger.Debug("no .env file loaded, reading from environment", slog.String("error", envErr.Error()))
	}

	// === 3. READ CONFIGURATION ===
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
