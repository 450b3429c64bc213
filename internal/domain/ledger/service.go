package ledger

import (
	"context"
	"fmt"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/settings"
	"epitrack/pkg/logger"
)

// Service records balance-changing events through the ledger.
// Transactions are managed by the caller: every mutating method expects
// to execute inside one atomic unit of work.
type Service struct {
	repo  Repository
	flags settings.Provider
}

// NewService creates a new ledger service.
func NewService(repo Repository, flags settings.Provider) *Service {
	return &Service{
		repo:  repo,
		flags: flags,
	}
}

// Apply records a single movement. See ApplyBatch.
func (s *Service) Apply(ctx context.Context, req MovementRequest) (*Entry, error) {
	entries, err := s.ApplyBatch(ctx, []MovementRequest{req})
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// ApplyBatch records a set of movements as one ordered step: all
// touched buckets are locked in canonical key order, then each request
// is applied in the order given. Either every movement lands or the
// caller's transaction rolls the whole batch back.
func (s *Service) ApplyBatch(ctx context.Context, reqs []MovementRequest) ([]*Entry, error) {
	if len(reqs) == 0 {
		return nil, apperror.NewValidation("no movements to apply")
	}

	for i := range reqs {
		if err := s.normalize(&reqs[i], i); err != nil {
			return nil, err
		}
	}

	// Switch is read once at the start of the operation, never cached
	// across operations.
	allowNegative := s.flags.IsEnabled(ctx, settings.SwitchAllowNegativeStock)

	keys := make([]BucketKey, len(reqs))
	for i, req := range reqs {
		keys[i] = req.Bucket
	}
	if err := s.repo.LockBuckets(ctx, SortKeys(keys)); err != nil {
		return nil, fmt.Errorf("lock buckets: %w", err)
	}

	entries := make([]*Entry, 0, len(reqs))
	for _, req := range reqs {
		entry, err := s.applyLocked(ctx, req, allowNegative)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	logger.Info(ctx, "recorded ledger movements",
		"count", len(entries),
		"actor_id", reqs[0].ActorID,
	)

	return entries, nil
}

// Reverse creates a counter entry for a prior entry and returns it.
// The original is never touched; a second reversal of the same entry
// fails with ALREADY_REVERSED. Reversing a reversal restores the
// pre-reversal balance.
func (s *Service) Reverse(ctx context.Context, entryID id.ID, actorID string) (*Entry, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor_id is required")
	}

	orig, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	reversed, err := s.repo.HasReversal(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("check reversal: %w", err)
	}
	if reversed {
		return nil, apperror.NewAlreadyReversed(entryID)
	}

	direction := orig.Direction.Opposite()
	kind := KindReversalDebit
	if direction == DirectionCredit {
		kind = KindReversalCredit
	}

	links := orig.Links
	links.OriginEntryID = &orig.ID

	entry, err := s.Apply(ctx, MovementRequest{
		Bucket:    orig.BucketKey,
		Kind:      kind,
		Quantity:  orig.Quantity,
		ActorID:   actorID,
		Links:     links,
		Direction: direction,
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "reversed ledger entry",
		"origin_entry_id", orig.ID,
		"reversal_entry_id", entry.ID,
	)

	return entry, nil
}

// LockBucket pins one bucket's balance row for the rest of the
// caller's transaction. Adjustment reads the balance before deciding
// the corrective delta and needs the row held across both steps.
func (s *Service) LockBucket(ctx context.Context, key BucketKey) error {
	return s.repo.LockBuckets(ctx, []BucketKey{key})
}

// GetBalance returns the current balance for a bucket.
// Untouched buckets read as zero.
func (s *Service) GetBalance(ctx context.Context, key BucketKey) (Balance, error) {
	return s.repo.GetBalance(ctx, key)
}

// ListBalances returns balances matching the filter.
func (s *Service) ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	return s.repo.ListBalances(ctx, filter)
}

// ListEntries returns the audit trail matching the filter.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	return s.repo.ListEntries(ctx, filter)
}

func (s *Service) normalize(req *MovementRequest, i int) error {
	if !req.Quantity.IsPositive() {
		return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must be positive", i))
	}
	if req.ActorID == "" {
		return apperror.NewValidation(fmt.Sprintf("movement %d: actor_id is required", i))
	}
	if !ValidEntryKind(req.Kind) {
		return apperror.NewValidation(fmt.Sprintf("movement %d: unknown kind %q", i, req.Kind))
	}
	if !ValidStockStatus(req.Bucket.Status) {
		return apperror.NewValidation(fmt.Sprintf("movement %d: unknown stock status %q", i, req.Bucket.Status))
	}

	if fixed, ok := req.Kind.FixedDirection(); ok {
		req.Direction = fixed
	} else if req.Direction != DirectionCredit && req.Direction != DirectionDebit {
		return apperror.NewValidation(fmt.Sprintf("movement %d: adjustment requires a direction", i))
	}

	// Counted adjustments override the book balance and are never
	// subject to stock validation.
	if req.Kind == KindAdjustment {
		req.SkipStockCheck = true
	}

	return nil
}

// applyLocked performs one movement against an already locked bucket.
func (s *Service) applyLocked(ctx context.Context, req MovementRequest, allowNegative bool) (*Entry, error) {
	delta := req.Quantity
	if req.Direction == DirectionDebit {
		delta = delta.Neg()

		if !req.SkipStockCheck && !allowNegative {
			balance, err := s.repo.GetBalance(ctx, req.Bucket)
			if err != nil {
				return nil, fmt.Errorf("get balance: %w", err)
			}
			if balance.Quantity < req.Quantity {
				return nil, apperror.NewInsufficientStock(
					req.Bucket.ItemTypeID.String(),
					req.Quantity.Int64(),
					balance.Quantity.Int64(),
				).WithDetail("location_id", req.Bucket.LocationID.String()).
					WithDetail("status", string(req.Bucket.Status))
			}
		}
	}

	// The store computes the new quantity; before is derived from the
	// returned value so entry and balance can never disagree.
	after, err := s.repo.ApplyDelta(ctx, req.Bucket, delta)
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}

	entry := &Entry{
		ID:            id.New(),
		BucketKey:     req.Bucket,
		Kind:          req.Kind,
		Direction:     req.Direction,
		Quantity:      req.Quantity,
		BalanceBefore: after.Quantity - delta,
		BalanceAfter:  after.Quantity,
		ActorID:       req.ActorID,
		Reason:        req.Reason,
		Links:         req.Links,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	return entry, nil
}
