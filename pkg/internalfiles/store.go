// Package internalfiles implements the content-addressed-by-ID blob store
// used for problem packages, submission sources, and generated reports.
// Every blob lives at a deterministic path derived from its integer id;
// writes are atomic via a temp-file-then-rename, and deletes tolerate the
// file already being gone.
package internalfiles

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is a local-disk content-addressed file store rooted at Dir.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("internalfiles: create root %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

// PathOf derives the on-disk path for id deterministically, the same way on
// every call; callers never construct this path by hand.
func (s *Store) PathOf(id int64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%d", id))
}

// Write stores the contents of r under id atomically: it writes to a
// sibling temp file and renames over the final path, so a reader never
// observes a partially-written file.
func (s *Store) Write(id int64, r io.Reader) (err error) {
	final := s.PathOf(id)
	tmp, err := os.CreateTemp(s.Dir, fmt.Sprintf(".tmp-%d-*", id))
	if err != nil {
		return fmt.Errorf("internalfiles: create temp for %d: %w", id, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("internalfiles: write %d: %w", id, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("internalfiles: sync %d: %w", id, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("internalfiles: close temp for %d: %w", id, err)
	}
	if err = os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("internalfiles: rename into place for %d: %w", id, err)
	}
	return nil
}

// Open opens id for reading. Callers must Close the result.
func (s *Store) Open(id int64) (*os.File, error) {
	f, err := os.Open(s.PathOf(id))
	if err != nil {
		return nil, fmt.Errorf("internalfiles: open %d: %w", id, err)
	}
	return f, nil
}

// Has reports whether id's blob currently exists.
func (s *Store) Has(id int64) bool {
	_, err := os.Stat(s.PathOf(id))
	return err == nil
}

// Delete removes id's blob. It is idempotent: deleting an id whose blob is
// already gone is not an error, matching DELETE_INTERNAL_FILE's at-least-once
// retry semantics (spec.md §4.F).
func (s *Store) Delete(id int64) error {
	err := os.Remove(s.PathOf(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("internalfiles: delete %d: %w", id, err)
	}
	return nil
}
