// Package ficha exposes the worker PPE record (ficha EPI) to the core.
// The ficha aggregate is owned elsewhere; deliveries only reference it
// by id and check that it exists and is active.
package ficha

import (
	"context"
	"sync"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
)

// Status of a worker record.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Record is the slice of the ficha aggregate the core reads.
type Record struct {
	ID         id.ID  `db:"id" json:"id"`
	WorkerName string `db:"worker_name" json:"workerName"`
	Status     Status `db:"status" json:"status"`
}

// Directory answers existence/active checks for worker records.
type Directory interface {
	// GetRecord returns the record or a NOT_FOUND error.
	GetRecord(ctx context.Context, fichaID id.ID) (*Record, error)
}

// MemoryDirectory is an in-memory Directory for tests and seeding.
type MemoryDirectory struct {
	mu      sync.RWMutex
	records map[id.ID]Record
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{records: make(map[id.ID]Record)}
}

// Put registers or replaces a record.
func (d *MemoryDirectory) Put(r Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[r.ID] = r
}

func (d *MemoryDirectory) GetRecord(ctx context.Context, fichaID id.ID) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r, ok := d.records[fichaID]; ok {
		return &r, nil
	}
	return nil, apperror.NewNotFound("ficha", fichaID)
}

var _ Directory = (*MemoryDirectory)(nil)
