package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// EntryCategories holds the full category list.
	EntryCategories = "sl_categories"
	// EntryLinks holds the full link list.
	EntryLinks = "sl_links"
)

// KeySpace is a flat persisted map of named entries.
// Get reports ok=false for an entry that was never written.
type KeySpace interface {
	Get(name string) (data []byte, ok bool, err error)
	Set(name string, data []byte) error
}

// FileKeySpace stores each entry as <dir>/<name>.json.
type FileKeySpace struct {
	dir string
}

// NewFileKeySpace creates dir if needed.
func NewFileKeySpace(dir string) (*FileKeySpace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileKeySpace{dir: dir}, nil
}

func (f *FileKeySpace) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f *FileKeySpace) Get(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read entry %s: %w", name, err)
	}
	return data, true, nil
}

// Set replaces the entry through a temp file and rename.
func (f *FileKeySpace) Set(name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp entry %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close entry %s: %w", name, err)
	}
	if err := os.Rename(tmpName, f.path(name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace entry %s: %w", name, err)
	}
	return nil
}

// MemoryKeySpace keeps entries in memory. Useful in tests.
type MemoryKeySpace struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryKeySpace() *MemoryKeySpace {
	return &MemoryKeySpace{entries: make(map[string][]byte)}
}

func (m *MemoryKeySpace) Get(name string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.entries[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *MemoryKeySpace) Set(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[name] = append([]byte(nil), data...)
	return nil
}
