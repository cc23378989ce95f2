// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects storage, services,
// handlers, and middleware, and it owns the process lifecycle.
//
// DEPENDENCY INJECTION FLOW:
//
//	Config.StoreDriver → Collections (posts, users, sessions, keys)
//	TokenSecret or stored key → TokenService
//	TokenService + users + sessions → AuthService
//	posts + AuthService (as TokenResolver) → PostService
//	services → handlers → chi routes
//
// This is the "composition root" pattern: every dependency is wired in one
// place (New), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/portfolio-feed/internal/auth"
	"github.com/sakif/portfolio-feed/internal/handler"
	"github.com/sakif/portfolio-feed/internal/middleware"
	"github.com/sakif/portfolio-feed/internal/model"
	"github.com/sakif/portfolio-feed/internal/repository"
	"github.com/sakif/portfolio-feed/internal/repository/jsonfile"
	sqliteRepo "github.com/sakif/portfolio-feed/internal/repository/sqlite"
	"github.com/sakif/portfolio-feed/internal/service"
)

// Storage drivers accepted in Config.StoreDriver.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config holds server configuration. main.go fills it from the environment.
type Config struct {
	Host string
	Port int

	StoreDriver string // DriverFile (default) or DriverSQLite
	DataDir     string // DriverFile: holds posts.json, users.json, sessions.json
	DBPath      string // DriverSQLite: database file

	// TokenSecret signs session tokens. When empty, a secret is generated
	// once and stored in the "keys" collection of the configured store.
	TokenSecret string

	CORSOrigins []string

	// RateLimitRPS <= 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Addr returns the listen address, e.g. ":5000" or "127.0.0.1:5000".
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// With the sqlite driver the Server owns a database connection (db) and
// closes it on shutdown. With the file driver db is nil.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.IPRateLimiter
}

type stores struct {
	posts    repository.Collection[model.Post]
	users    repository.Collection[model.User]
	sessions repository.Collection[model.Session]
	keys     repository.Collection[signingKey]
}

// New creates a new Server with the given config.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	st, err := s.openStores()
	if err != nil {
		return nil, err
	}

	secret, err := resolveSecret(context.Background(), cfg.TokenSecret, st.keys, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	authService := service.NewAuthService(st.users, st.sessions, tokens, logger)
	postService := service.NewPostService(st.posts, authService, logger)

	s.setupRoutes(
		handler.NewPostHandler(postService, logger),
		handler.NewAuthHandler(authService, logger),
	)
	return s, nil
}

// openStores builds the three collections for the configured driver.
func (s *Server) openStores() (*stores, error) {
	switch s.config.StoreDriver {
	case "", DriverFile:
		return &stores{
			posts:    jsonfile.Open[model.Post](s.config.DataDir, repository.Posts, s.logger),
			users:    jsonfile.Open[model.User](s.config.DataDir, repository.Users, s.logger),
			sessions: jsonfile.Open[model.Session](s.config.DataDir, repository.Sessions, s.logger),
			keys:     jsonfile.Open[signingKey](s.config.DataDir, repository.Keys, s.logger),
		}, nil

	case DriverSQLite:
		if s.config.DBPath != ":memory:" {
			dir := filepath.Dir(s.config.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(s.config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.db = db
		return &stores{
			posts:    sqliteRepo.NewCollection[model.Post](db, repository.Posts, s.logger),
			users:    sqliteRepo.NewCollection[model.User](db, repository.Users, s.logger),
			sessions: sqliteRepo.NewCollection[model.Session](db, repository.Sessions, s.logger),
			keys:     sqliteRepo.NewCollection[signingKey](db, repository.Keys, s.logger),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q (want %q or %q)", s.config.StoreDriver, DriverFile, DriverSQLite)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                → liveness
//	GET    /posts                  → list posts
//	POST   /posts                  → create post (bearer token)   [limited]
//	DELETE /posts/{id}             → delete post                  [limited]
//	POST   /posts/{id}/comments    → add comment                  [limited]
//	POST   /posts/{id}/likes       → toggle like                  [limited]
//	POST   /auth/register          → create account               [limited]
//	POST   /auth/login             → new session token            [limited]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique id to each request
//  2. RealIP: rewrites RemoteAddr from X-Forwarded-For (the rate limiter keys on it)
//  3. Logger: logs each request with timing info
//  4. Recoverer: turns panics into 500s
//  5. CORS: the site's frontend calls the API from another origin
func (s *Server) setupRoutes(posts *handler.PostHandler, authH *handler.AuthHandler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(corsMiddleware(s.config.CORSOrigins))

	var limited []func(http.Handler) http.Handler
	if s.config.RateLimitRPS > 0 {
		s.limiter = middleware.NewIPRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
		limited = append(limited, middleware.RateLimit(s.limiter))
	}

	s.router.Get("/healthz", handler.HandleHealth)
	s.router.Route("/posts", posts.Routes(limited...))
	s.router.Route("/auth", authH.Routes(limited...))
}

func corsMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		// Tokens travel in the Authorization header, never in cookies.
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// Handler returns the fully wired router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection, if any.
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if s.limiter != nil {
		go s.limiter.Run(ctx, 10*time.Minute)
	}

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("store", s.storeDescription()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) storeDescription() string {
	if s.db != nil {
		return "sqlite:" + s.config.DBPath
	}
	return "file:" + s.config.DataDir
}
