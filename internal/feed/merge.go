package feed

import (
	"slices"
	"strings"

	"github.com/sakif/portfolio-feed/internal/model"
)

// Merge combines the pending tier (local) with a confirmed snapshot (remote).
//
// Rules:
//   - a local record whose id also appears in remote is dropped; the remote
//     copy wins field for field
//   - within each input only the first record for an id is kept
//   - every other local record is kept
//   - the result is sorted by CreatedAt, newest first; ties keep input order,
//     local before remote
//
// Neither input is modified.
func Merge(local, remote []model.Post) []model.Post {
	remoteIDs := make(map[string]struct{}, len(remote))
	for _, p := range remote {
		remoteIDs[p.ID] = struct{}{}
	}

	out := make([]model.Post, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))

	for _, p := range local {
		if _, ok := remoteIDs[p.ID]; ok {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p.Clone())
	}
	for _, p := range remote {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p.Clone())
	}

	sortNewestFirst(out)
	return out
}

func sortNewestFirst(posts []model.Post) {
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// IsLocalID reports whether id was minted by the client.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, model.LocalIDPrefix)
}
