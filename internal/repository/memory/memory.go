// Package memory implements repository.Collection in process memory.
//
// Records are stored JSON-encoded, exactly as the file backend would write
// them, so a Load never hands out slices shared with an earlier Save and
// round-trip behavior matches the on-disk backends.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sakif/portfolio-feed/internal/repository"
)

// Collection is an in-memory record collection.
type Collection[T any] struct {
	mu   sync.Mutex
	data []byte

	// SaveErr, when set, is returned by every Save without storing anything.
	SaveErr error
	// Saves counts successful Save calls.
	Saves int
}

// New returns an empty collection, optionally seeded with records.
func New[T any](seed ...T) *Collection[T] {
	c := &Collection[T]{}
	if len(seed) > 0 {
		// Seeding cannot fail for JSON-encodable T.
		_ = c.Save(context.Background(), seed)
		c.Saves = 0
	}
	return c
}

var _ repository.Collection[struct{}] = (*Collection[struct{}])(nil)

func (c *Collection[T]) Load(_ context.Context) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := []T{}
	if len(c.data) == 0 {
		return records
	}
	if err := json.Unmarshal(c.data, &records); err != nil {
		return []T{}
	}
	return records
}

func (c *Collection[T]) Save(_ context.Context, records []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SaveErr != nil {
		return c.SaveErr
	}
	if records == nil {
		records = []T{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("memory: encoding records: %w", err)
	}
	c.data = data
	c.Saves++
	return nil
}
