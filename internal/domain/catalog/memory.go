package catalog

import (
	"context"
	"sync"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
)

// MemoryReader is an in-memory Reader for tests and seeding.
type MemoryReader struct {
	mu    sync.RWMutex
	types map[id.ID]ItemType
}

// NewMemoryReader creates an empty in-memory catalog.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{types: make(map[id.ID]ItemType)}
}

// Put registers or replaces an item type.
func (r *MemoryReader) Put(it ItemType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[it.ID] = it
}

func (r *MemoryReader) GetItemType(ctx context.Context, itemTypeID id.ID) (*ItemType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if it, ok := r.types[itemTypeID]; ok {
		return &it, nil
	}
	return nil, apperror.NewNotFound("item type", itemTypeID)
}

var _ Reader = (*MemoryReader)(nil)
