// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → loads and saves whole collections
//
// Every mutation here is load → modify → save on a whole collection. There is
// no locking: two concurrent writers race and the later Save wins.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/portfolio-feed/internal/apperror"
	"github.com/sakif/portfolio-feed/internal/model"
	"github.com/sakif/portfolio-feed/internal/repository"
)

const msgContentRequired = "content is required"

// TokenResolver maps a bearer token to a username. AuthService implements it.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (string, bool)
}

// PostService handles business logic for feed posts, comments, and likes.
type PostService struct {
	posts    repository.Collection[model.Post]
	sessions TokenResolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewPostService creates a new PostService.
func NewPostService(posts repository.Collection[model.Post], sessions TokenResolver, logger *slog.Logger) *PostService {
	return &PostService{
		posts:    posts,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// CreatePostInput is what a client may send when creating a post.
// Author is accepted for wire compatibility but the session username wins.
type CreatePostInput struct {
	Author  string
	Content string
	Image   string
}

// List returns every post, most recently inserted first.
//
// The order is the reverse of insertion order, NOT a sort by CreatedAt, so a
// post imported with an old timestamp still shows at the top.
func (s *PostService) List(ctx context.Context) []model.Post {
	stored := s.posts.Load(ctx)

	out := make([]model.Post, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		p := stored[i]
		p.Normalize()
		out = append(out, p)
	}
	return out
}

// Create publishes a post on behalf of the session that owns token.
//
// Checks run in this order: session first, then content. An anonymous caller
// with an empty body gets 401, not 400.
func (s *PostService) Create(ctx context.Context, token string, in CreatePostInput) (*model.Post, error) {
	username, ok := s.sessions.ResolveToken(ctx, token)
	if !ok {
		return nil, apperror.Unauthenticated("authentication required to create posts")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperror.ValidationFailed("content", msgContentRequired)
	}

	if in.Author != "" && in.Author != username {
		s.logger.Debug("ignoring client-supplied author",
			slog.String("author", in.Author),
			slog.String("username", username),
		)
	}

	post := model.Post{
		ID:        xid.New().String(),
		Author:    username,
		Content:   in.Content,
		CreatedAt: s.now().UTC(),
		Image:     in.Image,
	}
	post.Normalize()

	posts := append(s.posts.Load(ctx), post)
	if err := s.posts.Save(ctx, posts); err != nil {
		return nil, fmt.Errorf("service/post: saving new post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("author", post.Author),
	)
	return &post, nil
}

// Delete removes a post. Anyone may delete; there is no ownership check.
func (s *PostService) Delete(ctx context.Context, id string) error {
	posts := s.posts.Load(ctx)
	before := len(posts)

	kept := slices.DeleteFunc(posts, func(p model.Post) bool { return p.ID == id })
	if len(kept) == before {
		return apperror.NotFound("post", id)
	}

	if err := s.posts.Save(ctx, kept); err != nil {
		return fmt.Errorf("service/post: deleting post %s: %w", id, err)
	}

	s.logger.Info("post deleted", slog.String("postID", id))
	return nil
}

// AddComment appends a comment to a post.
//
// Unlike Create, commenting is not authenticated: the author is whatever the
// caller sends, or DefaultAuthor when blank.
func (s *PostService) AddComment(ctx context.Context, postID, author, content string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperror.ValidationFailed("content", msgContentRequired)
	}

	posts := s.posts.Load(ctx)
	idx := indexOf(posts, postID)
	if idx == -1 {
		return nil, apperror.NotFound("post", postID)
	}

	if strings.TrimSpace(author) == "" {
		author = model.DefaultAuthor
	}
	comment := model.Comment{
		ID:        xid.New().String(),
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}

	posts[idx].Normalize()
	posts[idx].Comments = append(posts[idx].Comments, comment)
	if err := s.posts.Save(ctx, posts); err != nil {
		return nil, fmt.Errorf("service/post: saving comment on %s: %w", postID, err)
	}

	return &comment, nil
}

// ToggleLike flips author's like on a post and returns the new like count.
//
// With an author, membership in LikedBy is toggled, so two calls in a row
// leave the count unchanged. Without one, the anonymous counter is
// incremented; an anonymous unlike does not exist.
func (s *PostService) ToggleLike(ctx context.Context, postID, author string) (int, error) {
	posts := s.posts.Load(ctx)
	idx := indexOf(posts, postID)
	if idx == -1 {
		return 0, apperror.NotFound("post", postID)
	}

	p := &posts[idx]
	p.Normalize()
	if author != "" {
		if i := slices.Index(p.LikedBy, author); i >= 0 {
			p.LikedBy = slices.Delete(p.LikedBy, i, i+1)
		} else {
			p.LikedBy = append(p.LikedBy, author)
		}
	} else {
		p.AnonymousLikes++
	}

	if err := s.posts.Save(ctx, posts); err != nil {
		return 0, fmt.Errorf("service/post: saving like on %s: %w", postID, err)
	}
	return p.Likes(), nil
}

func indexOf(posts []model.Post, id string) int {
	return slices.IndexFunc(posts, func(p model.Post) bool { return p.ID == id })
}
