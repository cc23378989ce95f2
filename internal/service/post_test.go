package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/portfolio-feed/internal/apperror"
	"github.com/sakif/portfolio-feed/internal/model"
	"github.com/sakif/portfolio-feed/internal/repository/memory"
)

// =========================================================================
// FAKE RESOLVER
// =========================================================================

// fakeResolver maps tokens to usernames without any signing.
type fakeResolver map[string]string

func (f fakeResolver) ResolveToken(_ context.Context, token string) (string, bool) {
	u, ok := f[token]
	return u, ok
}

func newTestPostService(t *testing.T, seed ...model.Post) (*PostService, *memory.Collection[model.Post]) {
	t.Helper()
	posts := memory.New(seed...)
	svc := NewPostService(posts, fakeResolver{"tok-sal": "sal"}, testLogger())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, posts
}

// =========================================================================
// LIST
// =========================================================================

func TestList_Empty(t *testing.T) {
	svc, _ := newTestPostService(t)

	posts := svc.List(context.Background())
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestList_ReverseInsertionOrderIgnoresTimestamps(t *testing.T) {
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// "b" was inserted last but carries the older timestamp.
	svc, _ := newTestPostService(t,
		model.Post{ID: "a", Author: "x", Content: "first", CreatedAt: recent},
		model.Post{ID: "b", Author: "x", Content: "second", CreatedAt: old},
	)

	posts := svc.List(context.Background())
	require.Len(t, posts, 2)
	assert.Equal(t, "b", posts[0].ID)
	assert.Equal(t, "a", posts[1].ID)
}

func TestList_NormalizesLegacyRecords(t *testing.T) {
	svc, _ := newTestPostService(t, model.Post{ID: "legacy", Content: "no extras"})

	posts := svc.List(context.Background())
	require.Len(t, posts, 1)
	assert.Equal(t, model.DefaultAuthor, posts[0].Author)
	assert.NotNil(t, posts[0].Comments)
	assert.NotNil(t, posts[0].LikedBy)
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_AuthorIsSessionUser(t *testing.T) {
	svc, store := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, "tok-sal", CreatePostInput{Author: "mallory", Content: "hello", Image: "https://example.com/a.png"})
	require.NoError(t, err)

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "sal", post.Author)
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, "https://example.com/a.png", post.Image)
	assert.Equal(t, 0, post.Likes())

	stored := store.Load(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, post.ID, stored[0].ID)
}

func TestCreate_AppendsAndMintsUniqueIDs(t *testing.T) {
	svc, store := newTestPostService(t)
	ctx := context.Background()

	ids := map[string]bool{}
	for i := 0; i < 10; i++ {
		p, err := svc.Create(ctx, "tok-sal", CreatePostInput{Content: "post"})
		require.NoError(t, err)
		assert.False(t, ids[p.ID], "duplicate id %s", p.ID)
		ids[p.ID] = true
	}
	assert.Len(t, store.Load(ctx), 10)
}

func TestCreate_Unauthenticated(t *testing.T) {
	svc, store := newTestPostService(t)

	for _, token := range []string{"", "tok-unknown"} {
		_, err := svc.Create(context.Background(), token, CreatePostInput{Content: "hello"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrUnauthenticated))
		assert.Equal(t, "authentication required to create posts", err.Error())
	}
	assert.Equal(t, 0, store.Saves)
}

func TestCreate_UnauthenticatedBeatsEmptyContent(t *testing.T) {
	svc, _ := newTestPostService(t)

	_, err := svc.Create(context.Background(), "", CreatePostInput{Content: ""})
	assert.True(t, errors.Is(err, apperror.ErrUnauthenticated))
}

func TestCreate_BlankContent(t *testing.T) {
	svc, store := newTestPostService(t)

	for _, content := range []string{"", " ", "\n\t  "} {
		_, err := svc.Create(context.Background(), "tok-sal", CreatePostInput{Content: content})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrValidation))
		assert.Equal(t, "content is required", err.Error())
	}
	assert.Equal(t, 0, store.Saves)
}

func TestCreate_SaveFailure(t *testing.T) {
	svc, store := newTestPostService(t)
	store.SaveErr = errors.New("read-only filesystem")

	_, err := svc.Create(context.Background(), "tok-sal", CreatePostInput{Content: "hi"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrValidation))
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete_Success(t *testing.T) {
	svc, store := newTestPostService(t,
		model.Post{ID: "a", Content: "1"},
		model.Post{ID: "b", Content: "2"},
	)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "a"))

	stored := store.Load(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, "b", stored[0].ID)
}

func TestDelete_NotFound(t *testing.T) {
	svc, store := newTestPostService(t, model.Post{ID: "a", Content: "1"})

	err := svc.Delete(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Equal(t, "not found", err.Error())
	assert.Equal(t, 0, store.Saves)
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestAddComment_Success(t *testing.T) {
	svc, store := newTestPostService(t, model.Post{ID: "a", Content: "1"})
	ctx := context.Background()

	c1, err := svc.AddComment(ctx, "a", "bob", "first!")
	require.NoError(t, err)
	c2, err := svc.AddComment(ctx, "a", "", "second")
	require.NoError(t, err)

	assert.Equal(t, "bob", c1.Author)
	assert.Equal(t, model.DefaultAuthor, c2.Author)
	assert.NotEqual(t, c1.ID, c2.ID)

	stored := store.Load(ctx)
	require.Len(t, stored[0].Comments, 2)
	assert.Equal(t, "first!", stored[0].Comments[0].Content, "insertion order is display order")
	assert.Equal(t, "second", stored[0].Comments[1].Content)
}

func TestAddComment_BlankContent(t *testing.T) {
	svc, _ := newTestPostService(t, model.Post{ID: "a", Content: "1"})

	for _, content := range []string{"", "   "} {
		_, err := svc.AddComment(context.Background(), "a", "bob", content)
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	}
}

func TestAddComment_BlankContentOnUnknownPostIsValidation(t *testing.T) {
	svc, _ := newTestPostService(t)

	_, err := svc.AddComment(context.Background(), "nope", "bob", "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestAddComment_UnknownPost(t *testing.T) {
	svc, _ := newTestPostService(t)

	_, err := svc.AddComment(context.Background(), "nope", "bob", "hi")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// LIKES
// =========================================================================

func TestToggleLike_NamedPairIsIdempotent(t *testing.T) {
	svc, _ := newTestPostService(t, model.Post{ID: "a", Content: "1", LikedBy: []string{"bob"}, AnonymousLikes: 2})
	ctx := context.Background()

	n, err := svc.ToggleLike(ctx, "a", "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = svc.ToggleLike(ctx, "a", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "add then remove leaves the count unchanged")
}

func TestToggleLike_AnonymousOnlyIncrements(t *testing.T) {
	svc, store := newTestPostService(t, model.Post{ID: "a", Content: "1"})
	ctx := context.Background()

	const n = 7
	for i := 1; i <= n; i++ {
		got, err := svc.ToggleLike(ctx, "a", "")
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	assert.Equal(t, n, store.Load(ctx)[0].AnonymousLikes)
	assert.Empty(t, store.Load(ctx)[0].LikedBy)
}

func TestToggleLike_UnknownPost(t *testing.T) {
	svc, _ := newTestPostService(t)

	_, err := svc.ToggleLike(context.Background(), "nope", "alice")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
