package adjustment

import (
	"context"
	"testing"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/settings"
	"epitrack/internal/core/tx"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/catalog"
	"epitrack/internal/domain/ledger"
)

var (
	locMain    = id.MustParse("018f0000-0000-7000-8000-000000000010")
	typeHelmet = id.MustParse("018f0000-0000-7000-8000-000000000011")
	typeBoot   = id.MustParse("018f0000-0000-7000-8000-000000000012")
)

type fixture struct {
	svc       *Service
	ledgerSvc *ledger.Service
	flags     *settings.InMemory
}

func newFixture() *fixture {
	repo := ledger.NewMemoryRepository()
	flags := settings.NewInMemory()
	flags.Set(settings.SwitchAllowForcedAdjustments, true)
	ledgerSvc := ledger.NewService(repo, flags)

	cat := catalog.NewMemoryReader()
	cat.Put(catalog.ItemType{ID: typeHelmet, Code: "HELM", Name: "Helmet", UnitCost: types.MustMoney("25.50"), Active: true})
	cat.Put(catalog.ItemType{ID: typeBoot, Code: "BOOT", Name: "Boot", UnitCost: types.MustMoney("80.00"), Active: true})

	return &fixture{
		svc:       NewService(ledgerSvc, cat, flags, tx.NewNopManager()),
		ledgerSvc: ledgerSvc,
		flags:     flags,
	}
}

func bucketFor(itemType id.ID) ledger.BucketKey {
	return ledger.BucketKey{LocationID: locMain, ItemTypeID: itemType, Status: ledger.StatusAvailable}
}

func (f *fixture) seed(t *testing.T, itemType id.ID, qty types.Quantity) {
	t.Helper()
	if _, err := f.ledgerSvc.Apply(context.Background(), ledger.MovementRequest{
		Bucket: bucketFor(itemType), Kind: ledger.KindIntake, Quantity: qty, ActorID: "seed",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestAdjustDirect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 50)

	entry, err := f.svc.AdjustDirect(ctx, bucketFor(typeHelmet), 42, "carol", "annual count")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if entry.Kind != ledger.KindAdjustment {
		t.Errorf("kind = %s, want ADJUSTMENT", entry.Kind)
	}
	if entry.Quantity != 8 || entry.Direction != ledger.DirectionDebit {
		t.Errorf("entry = %d %s, want 8 debit", entry.Quantity, entry.Direction)
	}
	if entry.BalanceAfter != 42 {
		t.Errorf("balance after = %d, want 42", entry.BalanceAfter)
	}

	b, _ := f.ledgerSvc.GetBalance(ctx, bucketFor(typeHelmet))
	if b.Quantity != 42 {
		t.Errorf("balance = %d, want 42", b.Quantity)
	}
}

func TestAdjustDirect_NoAdjustmentNeeded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 50)

	_, err := f.svc.AdjustDirect(ctx, bucketFor(typeHelmet), 50, "carol", "annual count")
	if !apperror.IsCode(err, apperror.CodeNoAdjustmentNeeded) {
		t.Fatalf("err = %v, want NO_ADJUSTMENT_NEEDED", err)
	}

	entries, _ := f.ledgerSvc.ListEntries(ctx, ledger.EntryFilter{ItemTypeID: &typeHelmet})
	if len(entries) != 1 { // the seed intake only
		t.Errorf("entries = %d, want 1 (no adjustment entry)", len(entries))
	}
}

func TestAdjustDirect_Gates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := bucketFor(typeHelmet)

	if _, err := f.svc.AdjustDirect(ctx, key, 1, "", "count"); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("missing actor err = %v, want VALIDATION_ERROR", err)
	}
	if _, err := f.svc.AdjustDirect(ctx, key, 1, "carol", ""); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("missing reason err = %v, want VALIDATION_ERROR", err)
	}
	if _, err := f.svc.AdjustDirect(ctx, key, -1, "carol", "count"); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("negative quantity err = %v, want VALIDATION_ERROR", err)
	}

	f.flags.Set(settings.SwitchAllowForcedAdjustments, false)
	if _, err := f.svc.AdjustDirect(ctx, key, 1, "carol", "count"); !apperror.IsCode(err, apperror.CodePermissionDenied) {
		t.Errorf("disabled switch err = %v, want PERMISSION_DENIED", err)
	}
	// Actor absence rejected regardless of the switch.
	if _, err := f.svc.AdjustDirect(ctx, key, 1, "", "count"); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("missing actor with switch off err = %v, want VALIDATION_ERROR", err)
	}
}

func TestReconcile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 10) // counted 12: +2
	f.seed(t, typeBoot, 10)   // counted 7: -3

	result, err := f.svc.Reconcile(ctx, []Count{
		{Bucket: bucketFor(typeHelmet), Quantity: 12},
		{Bucket: bucketFor(typeBoot), Quantity: 7},
		{Bucket: ledger.BucketKey{LocationID: locMain, ItemTypeID: typeHelmet, Status: ledger.StatusAwaitingInspection}, Quantity: 0},
	}, "carol", "cycle count")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if result.PositiveAdjustments != 1 || result.NegativeAdjustments != 1 {
		t.Errorf("adjustments = +%d/-%d, want +1/-1", result.PositiveAdjustments, result.NegativeAdjustments)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if result.TotalVariance != 5 {
		t.Errorf("total variance = %d, want 5", result.TotalVariance)
	}
	// 2 helmets at 25.50 + 3 boots at 80.00 = 291.00
	if want := types.MustMoney("291.00"); !result.VarianceValue.Equal(want) {
		t.Errorf("variance value = %s, want %s", result.VarianceValue, want)
	}

	helm, _ := f.ledgerSvc.GetBalance(ctx, bucketFor(typeHelmet))
	boot, _ := f.ledgerSvc.GetBalance(ctx, bucketFor(typeBoot))
	if helm.Quantity != 12 || boot.Quantity != 7 {
		t.Errorf("balances = %d/%d, want 12/7", helm.Quantity, boot.Quantity)
	}
}
