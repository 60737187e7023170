// Package storage is the blob half of the system: a flat local directory of
// opaque payloads addressed by generated, collision-resistant names. The
// metadata rows in MySQL reference blobs by the relative path returned from
// Save.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotExist is returned when a referenced blob is absent. Cleanup paths
// treat it as success; the primary delete endpoint uses it to tell "already
// gone" apart from a real I/O failure.
var ErrNotExist = errors.New("blob does not exist")

// Store manages blobs under a single directory.
type Store struct {
	dir string
}

// SaveResult describes a durably stored blob.
type SaveResult struct {
	StoredName string // generated on-disk name
	Path       string // relative path recorded in metadata, "<dir base>/<name>"
	Size       int64  // bytes written
}

// New creates the upload directory when missing and returns a Store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save streams the payload to disk under a fresh name and returns its path
// and size. The name is "<unix-ms>-<uuid fragment>-<original>", so two
// uploads in the same millisecond still land on distinct files. Writes go
// through a temp file, fsync and an atomic rename; a failed write leaves
// nothing behind.
func (s *Store) Save(r io.Reader, originalName string) (SaveResult, error) {
	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), uuid.NewString()[:8], sanitize(originalName))
	full := filepath.Join(s.dir, name)
	tmp := full + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return SaveResult{}, fmt.Errorf("create temp blob: %w", err)
	}
	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("sync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("rename blob: %w", err)
	}

	return SaveResult{
		StoredName: name,
		Path:       path.Join(filepath.Base(s.dir), name),
		Size:       size,
	}, nil
}

// Open returns the blob for reading; the caller closes it.
func (s *Store) Open(relPath string) (*os.File, error) {
	f, err := os.Open(s.FullPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("open blob %s: %w", relPath, err)
	}
	return f, nil
}

// Remove deletes a blob. An already-absent blob yields ErrNotExist so the
// caller can decide whether that counts as success.
func (s *Store) Remove(relPath string) error {
	err := os.Remove(s.FullPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return fmt.Errorf("remove blob %s: %w", relPath, err)
	}
	return nil
}

// FullPath resolves a recorded relative path to an absolute on-disk path.
// The store is flat, so only the final path element matters; this also stops
// a crafted metadata path from escaping the upload directory.
func (s *Store) FullPath(relPath string) string {
	return filepath.Join(s.dir, filepath.Base(filepath.FromSlash(relPath)))
}

// sanitize strips directory components and characters that complicate
// on-disk names from a client-supplied filename.
func sanitize(name string) string {
	name = filepath.Base(filepath.FromSlash(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	return name
}
