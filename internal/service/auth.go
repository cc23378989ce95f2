// Package service: authentication business logic.
//
// AuthService is the business logic layer for accounts and sessions. It sits
// between the HTTP handlers and the storage/token utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → users, sessions collections
//	                   ↘ TokenService (signed tokens)
//
// KEY RESPONSIBILITIES:
//   - Register and log in users by exact username/password match
//   - Mint a fresh token on every register/login and record it as a session
//   - Resolve a bearer token back to a username for PostService
//
// NOTE ON PASSWORDS:
// Passwords are stored exactly as submitted. This is a single-author site
// and the account system only gates who may publish; it is not a credential
// store and must not be reused as one.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/portfolio-feed/internal/apperror"
	"github.com/sakif/portfolio-feed/internal/auth"
	"github.com/sakif/portfolio-feed/internal/model"
	"github.com/sakif/portfolio-feed/internal/repository"
)

const msgMissingCredentials = "username and password are required"

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.Collection[model.User]    → registered accounts
//   - sessions  repository.Collection[model.Session] → token → username map
//   - tokens    *auth.TokenService                   → sign/verify tokens
//   - logger    *slog.Logger                         → structured logging
type AuthService struct {
	users    repository.Collection[model.User]
	sessions repository.Collection[model.Session]
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.Collection[model.User],
	sessions repository.Collection[model.Session],
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

// RegisterResult is the body of a successful registration.
type RegisterResult struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Register creates a user and logs them in.
//
// Usernames are compared case-sensitively: "Sal" and "sal" are two accounts.
// The returned token is already stored as a session, so the caller can use it
// right away without a separate Login.
func (s *AuthService) Register(ctx context.Context, username, password string) (*RegisterResult, error) {
	if missing(username) || missing(password) {
		return nil, apperror.ValidationFailed("username", msgMissingCredentials)
	}

	users := s.users.Load(ctx)
	for _, u := range users {
		if u.Username == username {
			return nil, apperror.Duplicate("username", "username already exists")
		}
	}

	user := model.User{
		ID:       xid.New().String(),
		Username: username,
		Password: password,
	}
	users = append(users, user)
	if err := s.users.Save(ctx, users); err != nil {
		return nil, fmt.Errorf("service/auth: saving user %q: %w", username, err)
	}

	token, err := s.startSession(ctx, username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", username),
	)

	return &RegisterResult{ID: user.ID, Username: username, Token: token}, nil
}

// Login checks the exact username/password pair and mints a new token.
//
// Earlier tokens for the same user stay valid: there is no single-session
// rule and nothing is ever revoked.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if missing(username) || missing(password) {
		return nil, apperror.ValidationFailed("username", msgMissingCredentials)
	}

	found := false
	for _, u := range s.users.Load(ctx) {
		if u.Username == username && u.Password == password {
			found = true
			break
		}
	}
	if !found {
		s.logger.Info("login rejected", slog.String("username", username))
		return nil, apperror.InvalidCredentials()
	}

	token, err := s.startSession(ctx, username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("username", username))
	return &LoginResult{Token: token, Username: username}, nil
}

// ResolveToken returns the username a bearer token belongs to.
//
// A token resolves only if its signature verifies AND it is present in the
// sessions collection. The signature check rejects garbage without touching
// storage; the collection is what decides whether the session exists.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}

	subject, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("bearer token rejected", slog.String("error", err.Error()))
		return "", false
	}

	for _, sess := range s.sessions.Load(ctx) {
		if sess.Token == token && sess.Username == subject {
			return sess.Username, true
		}
	}
	return "", false
}

func (s *AuthService) startSession(ctx context.Context, username string) (string, error) {
	token, err := s.tokens.Issue(username)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing token for %q: %w", username, err)
	}

	sessions := append(s.sessions.Load(ctx), model.Session{Token: token, Username: username})
	if err := s.sessions.Save(ctx, sessions); err != nil {
		return "", fmt.Errorf("service/auth: saving session for %q: %w", username, err)
	}
	return token, nil
}

func missing(s string) bool {
	return strings.TrimSpace(s) == ""
}
