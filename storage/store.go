// Package storage provides the document stores an editor session loads from
// and saves to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when a locator does not name a document.
	ErrNotFound = errors.New("workflow not found")
	// ErrLocked is returned when another process holds the save lock.
	ErrLocked = errors.New("workflow is locked by another process")
	// ErrInvalidLocator is returned for locators the store cannot resolve.
	ErrInvalidLocator = errors.New("invalid workflow location")
)

// MemStore keeps documents in memory. The bridge uses it for scratch
// documents and tests use it in place of the file system.
type MemStore struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string]string)}
}

// Load returns the text saved under locator.
func (m *MemStore) Load(_ context.Context, locator string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.files[locator]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return text, nil
}

// Save stores text under locator.
func (m *MemStore) Save(_ context.Context, locator, text string) error {
	if locator == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidLocator)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[locator] = text
	return nil
}

// Locators lists stored documents in sorted order.
func (m *MemStore) Locators() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for k := range m.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
