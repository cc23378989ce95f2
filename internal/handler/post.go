package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio-feed/internal/auth"
	"github.com/sakif/portfolio-feed/internal/model"
	"github.com/sakif/portfolio-feed/internal/service"
)

// PostService is the subset of service.PostService the handlers call.
type PostService interface {
	List(ctx context.Context) []model.Post
	Create(ctx context.Context, token string, in service.CreatePostInput) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	AddComment(ctx context.Context, postID, author, content string) (*model.Comment, error)
	ToggleLike(ctx context.Context, postID, author string) (int, error)
}

// PostHandler serves the /posts resource group.
type PostHandler struct {
	posts  PostService
	logger *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// Routes returns the post endpoints for mounting at /posts. Every endpoint
// except the listing runs behind writeMW.
func (h *PostHandler) Routes(writeMW ...func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(writeMW...)
			r.Post("/", h.HandleCreate)
			r.Delete("/{id}", h.HandleDelete)
			r.Post("/{id}/comments", h.HandleAddComment)
			r.Post("/{id}/likes", h.HandleToggleLike)
		})
	}
}

type createPostRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	Image   string `json:"image"`
}

type commentRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

type likeRequest struct {
	Author string `json:"author"`
}

// HandleList returns every post, newest insertion first.
//
// HTTP: GET /posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.posts.List(r.Context()))
}

// HandleCreate publishes a post for the bearer token's user.
//
// HTTP: POST /posts
// HEADERS: Authorization: Bearer <token>
// REQUEST BODY: {"content": "hello", "image": "https://..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.posts.Create(r.Context(), auth.BearerToken(r), service.CreatePostInput{
		Author:  req.Author,
		Content: req.Content,
		Image:   req.Image,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleDelete removes a post.
//
// HTTP: DELETE /posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleAddComment appends a comment. No authentication.
//
// HTTP: POST /posts/{id}/comments
// REQUEST BODY: {"author": "bob", "content": "nice"}
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.posts.AddComment(r.Context(), chi.URLParam(r, "id"), req.Author, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleToggleLike toggles a named like or adds an anonymous one.
//
// HTTP: POST /posts/{id}/likes
// REQUEST BODY: {"author": "bob"} or empty
// RESPONSE: {"likes": 3}
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	likes, err := h.posts.ToggleLike(r.Context(), chi.URLParam(r, "id"), req.Author)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likes": likes})
}
