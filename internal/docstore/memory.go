package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/halvard/tally/internal/apperr"
)

// Memory is an in-process Provider backed by a map. It is the test double
// for the remote backends and also serves as a throwaway dev driver.
type Memory struct {
	mu   sync.RWMutex
	docs map[Ref]string

	// updates counts successful Update calls, used by tests to assert
	// that idempotent task deliveries skip the write.
	updates int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[Ref]string)}
}

// Seed provisions a document with the given payload, creating it if absent.
func (m *Memory) Seed(ref Ref, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[ref] = data
}

// Get implements Provider.
func (m *Memory) Get(_ context.Context, ref Ref) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[ref]
	if !ok {
		return Document{}, fmt.Errorf("docstore: get %s/%s/%s: %w", ref.Database, ref.Collection, ref.Document, apperr.ErrNotFound)
	}
	return Document{Data: data}, nil
}

// Update implements Provider.
func (m *Memory) Update(_ context.Context, ref Ref, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[ref]; !ok {
		return fmt.Errorf("docstore: update %s/%s/%s: %w", ref.Database, ref.Collection, ref.Document, apperr.ErrNotFound)
	}
	m.docs[ref] = doc.Data
	m.updates++
	return nil
}

// Updates returns the number of successful writes so far.
func (m *Memory) Updates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}

// Verify *Memory satisfies Provider at compile time.
var _ Provider = (*Memory)(nil)
