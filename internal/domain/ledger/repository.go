package ledger

import (
	"context"
	"time"

	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
)

// Repository defines storage operations for the ledger.
//
// Mutating methods are expected to run inside a transaction opened by
// the caller; LockBuckets pins the touched balance rows for the rest of
// that transaction.
type Repository interface {
	// Balance operations

	// LockBuckets acquires row locks on the given buckets in the given
	// order, creating zero-quantity rows for buckets that do not exist
	// yet. Callers must pass keys in canonical order (SortKeys).
	LockBuckets(ctx context.Context, keys []BucketKey) error

	// GetBalance returns the current balance for a bucket, or a
	// zero-quantity balance if the bucket was never moved into.
	GetBalance(ctx context.Context, key BucketKey) (Balance, error)

	// ApplyDelta atomically shifts a bucket's quantity by delta and
	// returns the resulting balance. The new quantity is computed by
	// the store (quantity = quantity + delta), never read-then-written
	// by the application.
	ApplyDelta(ctx context.Context, key BucketKey, delta types.Quantity) (Balance, error)

	// ListBalances returns balances matching the filter.
	ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error)

	// Entry operations

	// CreateEntry appends an immutable ledger entry.
	CreateEntry(ctx context.Context, entry *Entry) error

	// GetEntry retrieves one entry by id.
	GetEntry(ctx context.Context, entryID id.ID) (*Entry, error)

	// HasReversal reports whether an entry referencing originID as its
	// origin already exists.
	HasReversal(ctx context.Context, originID id.ID) (bool, error)

	// ListEntries returns entries matching the filter, oldest first.
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
}

// BalanceFilter for balance queries.
type BalanceFilter struct {
	LocationID  *id.ID
	ItemTypeID  *id.ID
	Status      *StockStatus
	ExcludeZero bool
}

// EntryFilter for entry queries.
type EntryFilter struct {
	NoteID     *id.ID
	DeliveryID *id.ID
	ItemTypeID *id.ID
	Kind       *EntryKind
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}

// SortKeys returns a deduplicated copy of keys in canonical lock order.
// Two transactions transferring in opposite directions between the same
// buckets then acquire locks in the same order and cannot deadlock.
func SortKeys(keys []BucketKey) []BucketKey {
	out := make([]BucketKey, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s := k.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, k)
	}
	// Insertion sort: batches touch a handful of buckets at most.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
