package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const recordExt = ".json"

// safeKey matches keys usable directly as file names
var safeKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// FileStore keeps one JSON record per key in a directory. Writes go to a
// temporary file that is renamed into place.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Name implements Store
func (f *FileStore) Name() string { return "file" }

// Dir returns the store directory
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) path(key string) string {
	name := key
	if !safeKey.MatchString(key) {
		sum := blake2b.Sum256([]byte(key))
		name = hex.EncodeToString(sum[:])
	}
	return filepath.Join(f.dir, name+recordExt)
}

// Load implements Store
func (f *FileStore) Load(_ context.Context, key string) (*Entry, error) {
	e, err := readRecord(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if e.Key != key {
		// Hash collision on sanitized names or a foreign file
		return nil, nil
	}
	return e, nil
}

// Save implements Store
func (f *FileStore) Save(_ context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache record: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write cache record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close cache record: %w", err)
	}
	if err := os.Rename(tmpName, f.path(entry.Key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move cache record into place: %w", err)
	}
	return nil
}

// Remove implements Store
func (f *FileStore) Remove(_ context.Context, key string) (bool, error) {
	err := os.Remove(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove cache record: %w", err)
	}
	return true, nil
}

// RemoveAll implements Store
func (f *FileStore) RemoveAll(_ context.Context) (int, error) {
	names, err := f.recordNames()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		if err := os.Remove(filepath.Join(f.dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("failed to remove cache record: %w", err)
		}
		removed++
	}
	return removed, nil
}

// List implements Store. Unreadable records are skipped. Values are omitted.
func (f *FileStore) List(_ context.Context) ([]Entry, error) {
	names, err := f.recordNames()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(names))
	for _, name := range names {
		e, err := readRecord(filepath.Join(f.dir, name))
		if err != nil {
			continue
		}
		e.Value = nil
		out = append(out, *e)
	}
	return out, nil
}

// Close implements Store
func (f *FileStore) Close() error { return nil }

func (f *FileStore) recordNames() ([]string, error) {
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var names []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func readRecord(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache record %s: %w", filepath.Base(path), err)
	}
	return &e, nil
}
