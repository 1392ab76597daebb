package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/colthorp/ordo-cli-go/internal/core"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileStore stores one JSON file per key on disk.
// Directory layout: ~/.ordo/cache/<key>.json
type FileStore struct {
	root      string
	writeLock sync.Mutex
}

// NewFileStore creates a new filesystem-based store.
func NewFileStore(root string) *FileStore {
	if root == "" {
		root = core.CacheRoot()
	}
	return &FileStore{root: root}
}

// Name returns the backend name.
func (s *FileStore) Name() string {
	return core.BackendFile
}

// Path returns the filesystem path for the given key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.root, key+".json")
}

// Get returns the value stored under key.
func (s *FileStore) Get(key string) (string, bool, error) {
	if !validKey.MatchString(key) {
		return "", false, fmt.Errorf("invalid cache key %q", key)
	}

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set persists value atomically using temp file + rename.
func (s *FileStore) Set(key, value string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return err
	}

	path := s.Path(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(value), 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// Remove deletes the file for key.
func (s *FileStore) Remove(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Keys lists the keys of all stored files.
func (s *FileStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
