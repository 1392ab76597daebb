package cache

import (
	"fmt"
	"path/filepath"

	"github.com/colthorp/ordo-cli-go/internal/core"
)

// OpenStore opens the persisted store for backend under dir.
// An empty dir uses core.CacheRoot().
func OpenStore(backend, dir string) (Store, error) {
	if dir == "" {
		dir = core.CacheRoot()
	}

	switch backend {
	case "", core.BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "ordo.db"))
	case core.BackendFile:
		return NewFileStore(dir), nil
	case core.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (expected %s, %s or %s)",
			backend, core.BackendSQLite, core.BackendFile, core.BackendMemory)
	}
}

// storeName returns a store's backend name, if it has one.
func storeName(s Store) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}
