package feed

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/portfolio-feed/internal/model"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(id string, minutes int, content string) model.Post {
	return model.Post{ID: id, Content: content, CreatedAt: base.Add(time.Duration(minutes) * time.Minute)}
}

func ids(posts []model.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestMerge_Basic(t *testing.T) {
	local := []model.Post{
		at("local-a", 30, "offline post"),
		at("x", 5, "stale local copy"),
	}
	remote := []model.Post{
		at("x", 5, "server copy"),
		at("y", 20, "another"),
	}

	got := Merge(local, remote)

	assert.Equal(t, []string{"local-a", "y", "x"}, ids(got))
	assert.Equal(t, "server copy", got[2].Content, "remote wins")
}

func TestMerge_EmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.NotNil(t, Merge(nil, nil))

	remote := []model.Post{at("a", 1, ""), at("b", 2, "")}
	assert.Equal(t, []string{"b", "a"}, ids(Merge(nil, remote)))

	local := []model.Post{at("local-1", 1, ""), at("local-2", 2, "")}
	assert.Equal(t, []string{"local-2", "local-1"}, ids(Merge(local, nil)))
}

func TestMerge_DeduplicatesWithinInputs(t *testing.T) {
	local := []model.Post{at("local-1", 3, "first"), at("local-1", 3, "second")}
	remote := []model.Post{at("r", 1, "a"), at("r", 1, "b")}

	got := Merge(local, remote)

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "a", got[1].Content)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	remote := []model.Post{{ID: "r", LikedBy: []string{"bob"}}}

	got := Merge(nil, remote)
	got[0].LikedBy[0] = "mallory"

	assert.Equal(t, "bob", remote[0].LikedBy[0])
}

// TestMerge_Properties checks the merge guarantees over random inputs:
// no duplicate ids, every remote id present with the remote fields, every
// local-only id preserved, and newest-first order.
func TestMerge_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	randomPosts := func(prefix string, n, idSpace int) []model.Post {
		posts := make([]model.Post, n)
		for i := range posts {
			id := fmt.Sprintf("%s%d", prefix, rng.Intn(idSpace))
			posts[i] = at(id, rng.Intn(100), fmt.Sprintf("%s-%d", prefix, i))
		}
		return posts
	}

	for iter := 0; iter < 200; iter++ {
		// Shared prefix "p" so local and remote ids overlap.
		local := randomPosts("p", rng.Intn(8), 10)
		remote := randomPosts("p", rng.Intn(8), 10)

		got := Merge(local, remote)

		seen := map[string]model.Post{}
		for _, p := range got {
			_, dup := seen[p.ID]
			require.False(t, dup, "iter %d: duplicate id %s", iter, p.ID)
			seen[p.ID] = p
		}

		firstRemote := map[string]model.Post{}
		for _, p := range remote {
			if _, ok := firstRemote[p.ID]; !ok {
				firstRemote[p.ID] = p
			}
		}
		for id, want := range firstRemote {
			gotP, ok := seen[id]
			require.True(t, ok, "iter %d: remote id %s missing", iter, id)
			assert.Equal(t, want.Content, gotP.Content, "iter %d: remote fields must win", iter)
		}

		for _, p := range local {
			_, ok := seen[p.ID]
			assert.True(t, ok, "iter %d: local id %s dropped", iter, p.ID)
		}

		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt), "iter %d: not sorted newest first", iter)
		}
	}
}

func TestIsLocalID(t *testing.T) {
	assert.True(t, IsLocalID("local-cq1a2b3c"))
	assert.False(t, IsLocalID("cq1a2b3c"))
	assert.False(t, IsLocalID(""))
}
