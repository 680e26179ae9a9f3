package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/daybook/internal/apperr"
)

const (
	blobExt   = ".json"
	tmpPrefix = ".daybook-tmp-"
)

// FS implements Provider with one JSON file per key under a root directory.
type FS struct {
	root string // absolute path to the data directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a key to a file under the root and rejects any result
// that escapes it.
func (f *FS) safePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("storage: empty key")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute keys not allowed: %s", key)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned+blobExt))
	if err != nil {
		return "", fmt.Errorf("storage: resolve key: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: key escapes data root: %s", key)
	}
	return abs, nil
}

// KeyFor maps an absolute file path under the root back to its key.
// ok is false for paths that are not bucket files.
func (f *FS) KeyFor(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, blobExt) || strings.HasPrefix(base, tmpPrefix) {
		return "", false
	}
	rel, err := filepath.Rel(f.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, blobExt)), true
}

// Get returns the blob stored under key.
func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: get %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return data, nil
}

// Set atomically writes the blob: tmp file → fsync → rename.
func (f *FS) Set(_ context.Context, key string, blob []byte) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(blob); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the blob stored under key.
func (f *FS) Delete(_ context.Context, key string) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Keys walks the root and returns every key starting with prefix, sorted.
func (f *FS) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		key, ok := f.KeyFor(p)
		if ok && strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: keys: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
