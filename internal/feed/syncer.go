// Package feed is the client-side sync layer between a user and the feed API.
//
// TWO TIERS:
// The Syncer keeps two tiers of posts:
//
//	Confirmed: the last snapshot fetched from the server
//	Pending:   posts created while the server was unreachable or refused the
//	           write, persisted in a local cache and flagged Local
//
// The rendered feed (View) is always Merge(pending, confirmed).
//
// WRITE STATE MACHINE (Submit, Comment, Like):
//
//	attempt remote write, with the session token when logged in
//	  ├─ success → refresh from the server; if that refresh succeeds,
//	  │            the local cache is cleared
//	  └─ failure → synthesize a local record, show it immediately,
//	               persist it to the cache (posts only)
//
// Nothing is retried automatically. Replay pushes pending posts on request.
//
// Cache and session persistence errors are logged and otherwise ignored;
// they never fail the user's action.
//
// Every load-modify-save of the cache runs under cacheMu, so concurrent
// writes never drop each other's pending posts. cacheMu is always taken
// before mu.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/portfolio-feed/internal/apperror"
	"github.com/sakif/portfolio-feed/internal/client"
	"github.com/sakif/portfolio-feed/internal/model"
	"github.com/sakif/portfolio-feed/internal/repository"
)

// API is the remote surface the Syncer needs. *client.Client implements it.
type API interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	CreatePost(ctx context.Context, token string, in client.NewPost) (*model.Post, error)
	DeletePost(ctx context.Context, token, id string) error
	AddComment(ctx context.Context, token, postID, author, content string) (*model.Comment, error)
	ToggleLike(ctx context.Context, token, postID, author string) (int, error)
	Register(ctx context.Context, username, password string) (*client.AuthResult, error)
	Login(ctx context.Context, username, password string) (*client.AuthResult, error)
}

var _ API = (*client.Client)(nil)

// Feed is what Load returns.
type Feed struct {
	Posts []model.Post
	// Offline is true when the server could not be reached and Posts holds
	// only the local cache.
	Offline bool
}

// ReplayResult counts the outcome of Replay.
type ReplayResult struct {
	Confirmed int
	Failed    int
}

// Syncer reconciles the server feed with the local cache.
type Syncer struct {
	api      API
	cache    repository.Collection[model.Post]
	sessions repository.Collection[model.Session]
	logger   *slog.Logger
	now      func() time.Time

	cacheMu sync.Mutex

	mu      sync.Mutex
	view    []model.Post
	session *model.Session
}

// NewSyncer creates a Syncer and hydrates the persisted session.
//
// cache holds the pending tier. sessions holds at most one record: the
// logged-in user.
func NewSyncer(api API, cache repository.Collection[model.Post], sessions repository.Collection[model.Session], logger *slog.Logger) *Syncer {
	s := &Syncer{
		api:      api,
		cache:    cache,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
		view:     []model.Post{},
	}

	if stored := sessions.Load(context.Background()); len(stored) > 0 && stored[0].Token != "" {
		sess := stored[0]
		s.session = &sess
	}
	return s
}

// =========================================================================
// SESSION
// =========================================================================

// Session returns the logged-in user, if any.
func (s *Syncer) Session() (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return model.Session{}, false
	}
	return *s.session, true
}

// Register creates an account and logs in as it.
func (s *Syncer) Register(ctx context.Context, username, password string) (model.Session, error) {
	res, err := s.api.Register(ctx, username, password)
	if err != nil {
		return model.Session{}, err
	}
	return s.setSession(ctx, model.Session{Token: res.Token, Username: res.Username}), nil
}

// Login replaces the current session with a fresh one.
func (s *Syncer) Login(ctx context.Context, username, password string) (model.Session, error) {
	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		return model.Session{}, err
	}
	return s.setSession(ctx, model.Session{Token: res.Token, Username: res.Username}), nil
}

// Logout forgets the session locally. The server keeps the token valid.
func (s *Syncer) Logout(ctx context.Context) {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	if err := s.sessions.Save(ctx, []model.Session{}); err != nil {
		s.logger.Warn("could not clear saved session", slog.String("error", err.Error()))
	}
}

func (s *Syncer) setSession(ctx context.Context, sess model.Session) model.Session {
	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()

	if err := s.sessions.Save(ctx, []model.Session{sess}); err != nil {
		s.logger.Warn("could not persist session", slog.String("error", err.Error()))
	}
	return sess
}

func (s *Syncer) token() string {
	if sess, ok := s.Session(); ok {
		return sess.Token
	}
	return ""
}

// =========================================================================
// READS
// =========================================================================

// View returns a copy of the currently rendered feed.
func (s *Syncer) View() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Post, len(s.view))
	for i, p := range s.view {
		out[i] = p.Clone()
	}
	return out
}

// Load fetches the feed. On success any cached post the server now knows
// about is purged from the cache, and the view is the merge of what is left
// with the server snapshot. On failure the view is the cache alone.
func (s *Syncer) Load(ctx context.Context) Feed {
	remote, err := s.api.ListPosts(ctx)
	if err != nil {
		s.logger.Warn("feed unavailable, showing local posts", slog.String("error", err.Error()))

		s.cacheMu.Lock()
		pending := s.cache.Load(ctx)
		sortNewestFirst(pending)

		s.mu.Lock()
		s.view = pending
		s.mu.Unlock()
		s.cacheMu.Unlock()
		return Feed{Posts: s.View(), Offline: true}
	}

	s.cacheMu.Lock()
	pending := s.cache.Load(ctx)
	kept := slices.DeleteFunc(slices.Clone(pending), func(p model.Post) bool {
		return slices.ContainsFunc(remote, func(r model.Post) bool { return r.ID == p.ID })
	})
	if len(kept) != len(pending) {
		s.saveCache(ctx, kept)
	}

	s.mu.Lock()
	s.view = Merge(kept, remote)
	s.mu.Unlock()
	s.cacheMu.Unlock()
	return Feed{Posts: s.View()}
}

// refresh reloads the confirmed tier after a successful write.
// Only when the fetch succeeds is the cache cleared.
func (s *Syncer) refresh(ctx context.Context) bool {
	remote, err := s.api.ListPosts(ctx)
	if err != nil {
		s.logger.Warn("refresh after write failed", slog.String("error", err.Error()))
		return false
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	pending := s.cache.Load(ctx)

	s.mu.Lock()
	s.view = Merge(pending, remote)
	s.mu.Unlock()

	if len(pending) > 0 {
		s.saveCache(ctx, []model.Post{})
	}
	return true
}

// =========================================================================
// WRITES
// =========================================================================

// Submit publishes a post.
//
// If the server accepts it, the confirmed post is returned. Otherwise a
// local post (Local == true, id starting with model.LocalIDPrefix) is
// returned with a nil error: the post shows up either way. Only blank
// content is an error.
func (s *Syncer) Submit(ctx context.Context, content, image string) (model.Post, error) {
	if strings.TrimSpace(content) == "" {
		return model.Post{}, apperror.ValidationFailed("content", "content is required")
	}

	sess, _ := s.Session()
	created, err := s.api.CreatePost(ctx, sess.Token, client.NewPost{
		Author:  sess.Username,
		Content: content,
		Image:   image,
	})
	if err == nil {
		if !s.refresh(ctx) {
			s.upsertView(*created)
		}
		return *created, nil
	}

	s.logger.Warn("post not accepted by server, keeping it locally", slog.String("error", err.Error()))

	author := sess.Username
	if author == "" {
		author = model.DefaultAuthor
	}
	post := model.Post{
		ID:        newLocalID(),
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
		Image:     image,
		Local:     true,
	}
	post.Normalize()

	s.cacheMu.Lock()
	s.mu.Lock()
	s.view = append([]model.Post{post}, s.view...)
	s.mu.Unlock()

	pending := s.cache.Load(ctx)
	s.saveCache(ctx, append([]model.Post{post}, pending...))
	s.cacheMu.Unlock()

	return post.Clone(), nil
}

// Comment adds a comment to a post. Comments on local posts never reach the
// server until Replay pushes the post.
func (s *Syncer) Comment(ctx context.Context, postID, author, content string) (model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return model.Comment{}, apperror.ValidationFailed("content", "content is required")
	}
	if strings.TrimSpace(author) == "" {
		if sess, ok := s.Session(); ok {
			author = sess.Username
		}
	}

	if !IsLocalID(postID) {
		created, err := s.api.AddComment(ctx, s.token(), postID, author, content)
		if err == nil {
			s.refresh(ctx)
			return *created, nil
		}
		s.logger.Warn("comment not accepted by server, keeping it locally",
			slog.String("postID", postID),
			slog.String("error", err.Error()),
		)
	}

	if strings.TrimSpace(author) == "" {
		author = model.DefaultAuthor
	}
	comment := model.Comment{
		ID:        newLocalID(),
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}

	found := s.applyLocal(ctx, postID, func(p *model.Post) {
		p.Comments = append(p.Comments, comment)
	})
	if !found {
		return model.Comment{}, apperror.NotFound("post", postID)
	}
	return comment, nil
}

// Like toggles the logged-in user's like on a post, or adds an anonymous
// like when nobody is logged in. It returns the resulting like count.
func (s *Syncer) Like(ctx context.Context, postID string) (int, error) {
	sess, _ := s.Session()

	if !IsLocalID(postID) {
		likes, err := s.api.ToggleLike(ctx, sess.Token, postID, sess.Username)
		if err == nil {
			s.refresh(ctx)
			return likes, nil
		}
		s.logger.Warn("like not accepted by server, applying it locally",
			slog.String("postID", postID),
			slog.String("error", err.Error()),
		)
	}

	var likes int
	found := s.applyLocal(ctx, postID, func(p *model.Post) {
		toggle(p, sess.Username)
		likes = p.Likes()
	})
	if !found {
		return 0, apperror.NotFound("post", postID)
	}
	return likes, nil
}

// Delete removes a post. A local post is dropped from the cache without
// contacting the server. A server delete is not optimistic: its error is
// returned and the view is left alone.
func (s *Syncer) Delete(ctx context.Context, postID string) error {
	if IsLocalID(postID) {
		s.cacheMu.Lock()
		defer s.cacheMu.Unlock()

		pending := s.cache.Load(ctx)
		kept := slices.DeleteFunc(pending, func(p model.Post) bool { return p.ID == postID })
		s.saveCache(ctx, kept)

		s.mu.Lock()
		s.view = slices.DeleteFunc(s.view, func(p model.Post) bool { return p.ID == postID })
		s.mu.Unlock()
		return nil
	}

	if err := s.api.DeletePost(ctx, s.token(), postID); err != nil {
		if client.IsStatus(err, http.StatusNotFound) {
			return apperror.NotFound("post", postID)
		}
		return err
	}

	// Not a create/comment/like: refresh the confirmed tier but keep the cache.
	if remote, err := s.api.ListPosts(ctx); err == nil {
		s.cacheMu.Lock()
		pending := s.cache.Load(ctx)
		s.mu.Lock()
		s.view = Merge(pending, remote)
		s.mu.Unlock()
		s.cacheMu.Unlock()
	} else {
		s.mu.Lock()
		s.view = slices.DeleteFunc(s.view, func(p model.Post) bool { return p.ID == postID })
		s.mu.Unlock()
	}
	return nil
}

// Replay pushes every pending post to the server, oldest first, with the
// current session. A post the server accepts leaves the cache; its local
// comments are pushed after it, best effort. Local likes are not replayed.
//
// The cache is not locked while posts are pushed. Posts that go pending in
// the meantime stay in the cache.
func (s *Syncer) Replay(ctx context.Context) (ReplayResult, error) {
	s.cacheMu.Lock()
	pending := s.cache.Load(ctx)
	s.cacheMu.Unlock()

	if len(pending) == 0 {
		return ReplayResult{}, nil
	}
	sess, ok := s.Session()
	if !ok {
		return ReplayResult{Failed: len(pending)}, apperror.Unauthenticated("authentication required to create posts")
	}

	oldestFirst := slices.Clone(pending)
	slices.Reverse(oldestFirst)
	sortOldestFirst(oldestFirst)

	var res ReplayResult
	var confirmed []string
	for _, p := range oldestFirst {
		created, err := s.api.CreatePost(ctx, sess.Token, client.NewPost{
			Author:  sess.Username,
			Content: p.Content,
			Image:   p.Image,
		})
		if err != nil {
			s.logger.Warn("replay failed", slog.String("postID", p.ID), slog.String("error", err.Error()))
			res.Failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}

		res.Confirmed++
		confirmed = append(confirmed, p.ID)
		for _, c := range p.Comments {
			if _, err := s.api.AddComment(ctx, sess.Token, created.ID, c.Author, c.Content); err != nil {
				s.logger.Warn("replaying comment failed",
					slog.String("postID", created.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	// Anything not attempted because ctx ended stays pending too.
	res.Failed += len(oldestFirst) - res.Confirmed - res.Failed

	remote, listErr := s.api.ListPosts(ctx)

	s.cacheMu.Lock()
	remaining := slices.DeleteFunc(s.cache.Load(ctx), func(p model.Post) bool {
		return slices.Contains(confirmed, p.ID)
	})
	if len(confirmed) > 0 {
		s.saveCache(ctx, remaining)
	}
	if listErr == nil {
		s.mu.Lock()
		s.view = Merge(remaining, remote)
		s.mu.Unlock()
	}
	s.cacheMu.Unlock()

	if res.Failed > 0 {
		return res, errors.New("feed: some local posts could not be replayed")
	}
	return res, nil
}

// =========================================================================
// HELPERS
// =========================================================================

// applyLocal mutates postID in the view, and in the cache when the post is
// pending. It reports whether the post exists in either.
func (s *Syncer) applyLocal(ctx context.Context, postID string, fn func(p *model.Post)) bool {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	var updated *model.Post

	s.mu.Lock()
	if i := indexOf(s.view, postID); i >= 0 {
		s.view[i].Normalize()
		fn(&s.view[i])
		c := s.view[i].Clone()
		updated = &c
	}
	s.mu.Unlock()

	pending := s.cache.Load(ctx)
	i := indexOf(pending, postID)
	if i < 0 {
		return updated != nil
	}
	if updated != nil {
		pending[i] = *updated
	} else {
		pending[i].Normalize()
		fn(&pending[i])
	}
	s.saveCache(ctx, pending)
	return true
}

func indexOf(posts []model.Post, id string) int {
	return slices.IndexFunc(posts, func(p model.Post) bool { return p.ID == id })
}

func (s *Syncer) upsertView(p model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.view, p.ID); i >= 0 {
		s.view[i] = p
		return
	}
	s.view = append([]model.Post{p}, s.view...)
}

func (s *Syncer) saveCache(ctx context.Context, posts []model.Post) {
	if err := s.cache.Save(ctx, posts); err != nil {
		s.logger.Warn("could not write local post cache", slog.String("error", err.Error()))
	}
}

func toggle(p *model.Post, author string) {
	if author == "" {
		p.AnonymousLikes++
		return
	}
	if i := slices.Index(p.LikedBy, author); i >= 0 {
		p.LikedBy = slices.Delete(p.LikedBy, i, i+1)
		return
	}
	p.LikedBy = append(p.LikedBy, author)
}

func sortOldestFirst(posts []model.Post) {
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func newLocalID() string {
	return model.LocalIDPrefix + xid.New().String()
}
