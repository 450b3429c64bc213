package ledger

import (
	"context"
	"sync"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
)

// MemoryRepository is an in-memory Repository.
// Used in unit tests across the domain packages and by the seed tool;
// it preserves the append-only entry contract but provides no real
// transaction isolation.
type MemoryRepository struct {
	mu       sync.Mutex
	balances map[string]Balance
	entries  []Entry
}

// NewMemoryRepository creates an empty in-memory ledger store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		balances: make(map[string]Balance),
	}
}

func (r *MemoryRepository) LockBuckets(ctx context.Context, keys []BucketKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if _, ok := r.balances[k.String()]; !ok {
			r.balances[k.String()] = Balance{BucketKey: k}
		}
	}
	return nil
}

func (r *MemoryRepository) GetBalance(ctx context.Context, key BucketKey) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.balances[key.String()]; ok {
		return b, nil
	}
	return Balance{BucketKey: key}, nil
}

func (r *MemoryRepository) ApplyDelta(ctx context.Context, key BucketKey, delta types.Quantity) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.balances[key.String()]
	b.BucketKey = key
	b.Quantity += delta
	now := time.Now().UTC()
	b.LastMovementAt = now
	b.UpdatedAt = now
	r.balances[key.String()] = b
	return b, nil
}

func (r *MemoryRepository) ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Balance
	for _, b := range r.balances {
		if filter.LocationID != nil && b.LocationID != *filter.LocationID {
			continue
		}
		if filter.ItemTypeID != nil && b.ItemTypeID != *filter.ItemTypeID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.ExcludeZero && b.Quantity.IsZero() {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *MemoryRepository) CreateEntry(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *MemoryRepository) GetEntry(ctx context.Context, entryID id.ID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == entryID {
			e := r.entries[i]
			return &e, nil
		}
	}
	return nil, apperror.NewNotFound("ledger entry", entryID)
}

func (r *MemoryRepository) HasReversal(ctx context.Context, originID id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].OriginEntryID != nil && *r.entries[i].OriginEntryID == originID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if filter.NoteID != nil && (e.NoteID == nil || *e.NoteID != *filter.NoteID) {
			continue
		}
		if filter.DeliveryID != nil && (e.DeliveryID == nil || *e.DeliveryID != *filter.DeliveryID) {
			continue
		}
		if filter.ItemTypeID != nil && e.ItemTypeID != *filter.ItemTypeID {
			continue
		}
		if filter.Kind != nil && e.Kind != *filter.Kind {
			continue
		}
		if filter.FromDate != nil && e.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && !e.CreatedAt.Before(*filter.ToDate) {
			continue
		}
		out = append(out, e)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Entries returns a snapshot of every entry ever created (tests).
func (r *MemoryRepository) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

var _ Repository = (*MemoryRepository)(nil)
