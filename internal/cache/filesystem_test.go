package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore(tmpDir)

	// Test write
	if err := store.Set("liturgical_cache_2024", `{"data":{},"timestamp":1}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Verify file was created
	expectedPath := filepath.Join(tmpDir, "liturgical_cache_2024.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Errorf("Expected file %s to exist", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temp file to be renamed away")
	}

	// Test read
	val, ok, err := store.Get("liturgical_cache_2024")
	if err != nil || !ok {
		t.Fatalf("Expected stored value, got ok=%v err=%v", ok, err)
	}
	if val != `{"data":{},"timestamp":1}` {
		t.Errorf("Unexpected value %q", val)
	}

	// Overwrite
	if err := store.Set("liturgical_cache_2024", `{"data":{},"timestamp":2}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, _, _ = store.Get("liturgical_cache_2024")
	if val != `{"data":{},"timestamp":2}` {
		t.Errorf("Expected overwritten value, got %q", val)
	}
}

func TestFileStoreIgnoresForeignFiles(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore(tmpDir)

	os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(tmpDir, "sub.json"), 0755)
	store.Set("liturgical_cache_years", "[2024]")

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "liturgical_cache_years" {
		t.Errorf("Expected only liturgical_cache_years, got %v", keys)
	}
}

func TestFileStoreRejectsInvalidKeys(t *testing.T) {
	store := NewFileStore(t.TempDir())

	for _, key := range []string{"../escape", "a/b", "", "with space"} {
		if err := store.Set(key, "x"); err == nil {
			t.Errorf("Expected Set(%q) to fail", key)
		}
		if _, _, err := store.Get(key); err == nil {
			t.Errorf("Expected Get(%q) to fail", key)
		}
	}
}

func TestFileStoreMissingRoot(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist"))

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Expected no error for missing root, got %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
	if _, ok, err := store.Get("liturgical_cache_2024"); ok || err != nil {
		t.Errorf("Expected clean miss, got ok=%v err=%v", ok, err)
	}
}
