// Package repository defines the storage contract for record collections.
//
// WHOLE-COLLECTION SEMANTICS:
// A Collection is read and written as one snapshot. Load returns every record,
// Save replaces every record. There are no partial updates and no locking, so
// two writers that load, modify, and save the same collection concurrently race
// and the later Save wins. The feed is a single-author site and accepts that.
//
// Implementations:
//   - jsonfile: one flat JSON file per collection (default)
//   - sqlite:   one row per collection in an embedded database
//   - memory:   process-local, for tests
package repository

import (
	"context"
)

// Collection names shared by every backend.
const (
	Posts    = "posts"
	Users    = "users"
	Sessions = "sessions"
	Keys     = "keys"
)

// Collection stores an ordered sequence of records of type T.
//
// Load never fails: a missing or unreadable backing store is logged by the
// implementation and reported as an empty collection. Save reports write
// failures to the caller.
type Collection[T any] interface {
	Load(ctx context.Context) []T
	Save(ctx context.Context, records []T) error
}
