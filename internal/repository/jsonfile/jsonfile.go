// Package jsonfile implements repository.Collection on top of flat JSON files.
//
// Every collection lives in its own file, e.g. data/posts.json, holding a
// pretty-printed JSON array. Save rewrites the whole file in place. The write
// is not atomic: a reader that loads while a write is in progress can see a
// truncated file, which then loads as an empty collection.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/portfolio-feed/internal/repository"
)

// Collection is a file-backed record collection.
type Collection[T any] struct {
	path   string
	logger *slog.Logger
}

// New returns a collection stored at path. The file does not need to exist;
// it is created on the first Save.
func New[T any](path string, logger *slog.Logger) *Collection[T] {
	return &Collection[T]{path: path, logger: logger}
}

// Open returns the collection called name inside dir, stored as dir/name.json.
func Open[T any](dir, name string, logger *slog.Logger) *Collection[T] {
	return New[T](filepath.Join(dir, name+".json"), logger)
}

var _ repository.Collection[struct{}] = (*Collection[struct{}])(nil)

// Path returns the backing file path.
func (c *Collection[T]) Path() string {
	return c.path
}

// Load reads the whole file. A missing file is an empty collection; any other
// read or decode failure is logged and also treated as empty.
func (c *Collection[T]) Load(_ context.Context) []T {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("collection read failed, using empty collection",
				slog.String("path", c.path),
				slog.String("error", err.Error()),
			)
		}
		return []T{}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.Warn("collection file is corrupt, using empty collection",
			slog.String("path", c.path),
			slog.String("error", err.Error()),
		)
		return []T{}
	}
	if records == nil {
		records = []T{}
	}
	return records
}

// Save overwrites the file with records.
func (c *Collection[T]) Save(_ context.Context, records []T) error {
	if records == nil {
		records = []T{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding %s: %w", c.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("jsonfile: creating directory for %s: %w", c.path, err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("jsonfile: writing %s: %w", c.path, err)
	}
	return nil
}
