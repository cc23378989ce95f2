package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio-feed/internal/service"
)

// AuthService is the subset of service.AuthService the handlers call.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*service.RegisterResult, error)
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
}

// AuthHandler serves /auth/register and /auth/login.
//
// Tokens are returned in the JSON body, not as cookies: the client stores the
// token itself and sends it back as "Authorization: Bearer <token>".
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Routes returns the auth endpoints for mounting at /auth, wrapped in mw.
func (h *AuthHandler) Routes(mw ...func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(mw...)
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates an account and returns a session token.
//
// HTTP: POST /auth/register
// RESPONSE: 201 {"id": "...", "username": "sal", "token": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleLogin exchanges credentials for a new session token.
//
// HTTP: POST /auth/login
// RESPONSE: 200 {"token": "...", "username": "sal"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
