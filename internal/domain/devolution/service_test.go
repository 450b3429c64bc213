package devolution

import (
	"context"
	"testing"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/settings"
	"epitrack/internal/core/tx"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/catalog"
	"epitrack/internal/domain/delivery"
	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/ledger"
)

var (
	locDepot   = id.MustParse("018f0000-0000-7000-8000-000000000030")
	typeVest   = id.MustParse("018f0000-0000-7000-8000-000000000031")
	fichaMaria = id.MustParse("018f0000-0000-7000-8000-000000000032")
)

type fixture struct {
	svc          *Service
	deliverySvc  *delivery.Service
	deliveryRepo *delivery.MemoryRepository
	ledgerSvc    *ledger.Service
}

func newFixture() *fixture {
	ledgerRepo := ledger.NewMemoryRepository()
	ledgerSvc := ledger.NewService(ledgerRepo, settings.NewInMemory())

	cat := catalog.NewMemoryReader()
	cat.Put(catalog.ItemType{ID: typeVest, Code: "VEST", Name: "Safety vest", Active: true})

	dir := ficha.NewMemoryDirectory()
	dir.Put(ficha.Record{ID: fichaMaria, WorkerName: "Maria", Status: ficha.StatusActive})

	deliveryRepo := delivery.NewMemoryRepository()
	nop := tx.NewNopManager()
	return &fixture{
		svc:          NewService(deliveryRepo, ledgerSvc, nop),
		deliverySvc:  delivery.NewService(deliveryRepo, ledgerSvc, cat, dir, nop),
		deliveryRepo: deliveryRepo,
		ledgerSvc:    ledgerSvc,
	}
}

// deliverSigned seeds stock, delivers units of the vest type and signs
// the delivery, returning it with its units loaded.
func (f *fixture) deliverSigned(t *testing.T, units int, stock types.Quantity) *delivery.Delivery {
	t.Helper()
	ctx := context.Background()
	if _, err := f.ledgerSvc.Apply(ctx, ledger.MovementRequest{
		Bucket:   ledger.BucketKey{LocationID: locDepot, ItemTypeID: typeVest, Status: ledger.StatusAvailable},
		Kind:     ledger.KindIntake,
		Quantity: stock,
		ActorID:  "seed",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	d, err := f.deliverySvc.Create(ctx, delivery.CreateInput{
		FichaID:            fichaMaria,
		LocationID:         locDepot,
		ResponsibleActorID: "dave",
		Lines:              []delivery.CreateLine{{ItemTypeID: typeVest, Quantity: types.Quantity(units)}},
	})
	if err != nil {
		t.Fatalf("create delivery: %v", err)
	}
	d, err = f.deliverySvc.Sign(ctx, d.ID, "maria")
	if err != nil {
		t.Fatalf("sign delivery: %v", err)
	}
	return d
}

func (f *fixture) balance(t *testing.T, status ledger.StockStatus) types.Quantity {
	t.Helper()
	b, err := f.ledgerSvc.GetBalance(context.Background(), ledger.BucketKey{
		LocationID: locDepot, ItemTypeID: typeVest, Status: status,
	})
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b.Quantity
}

func TestProcess_ConditionsRouteStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 3, 10) // 7 left on shelf

	entries, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
		{UnitID: d.Units[1].ID, Condition: delivery.ConditionDamaged, Reason: "torn strap"},
		{UnitID: d.Units[2].ID, Condition: delivery.ConditionLost, Reason: "left on site"},
	}, "dave")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	// GOOD and DAMAGED credit stock, LOST does not.
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Kind != ledger.KindReturn {
			t.Errorf("entry kind = %s, want RETURN", e.Kind)
		}
		if e.Quantity != 1 {
			t.Errorf("entry quantity = %d, want 1", e.Quantity)
		}
		if e.DeliveryID == nil || *e.DeliveryID != d.ID {
			t.Error("entry missing delivery link")
		}
	}
	if got := f.balance(t, ledger.StatusAvailable); got != 8 {
		t.Errorf("available = %d, want 8", got)
	}
	if got := f.balance(t, ledger.StatusAwaitingInspection); got != 1 {
		t.Errorf("awaiting inspection = %d, want 1", got)
	}

	reloaded, err := f.deliveryRepo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	for i, u := range reloaded.Units {
		if u.Status != delivery.UnitReturned {
			t.Errorf("unit %d status = %s, want RETURNED", i, u.Status)
		}
		if u.ReturnedAt == nil || u.ReturnCondition == nil {
			t.Errorf("unit %d missing return audit fields", i)
		}
	}
	lost := reloaded.UnitByID(d.Units[2].ID)
	if lost.ReturnEntryID != nil {
		t.Error("lost unit should have no credit entry")
	}
	good := reloaded.UnitByID(d.Units[0].ID)
	if good.ReturnEntryID == nil {
		t.Error("good unit missing credit entry link")
	}
}

func TestProcess_RequiresSignature(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.ledgerSvc.Apply(ctx, ledger.MovementRequest{
		Bucket:   ledger.BucketKey{LocationID: locDepot, ItemTypeID: typeVest, Status: ledger.StatusAvailable},
		Kind:     ledger.KindIntake,
		Quantity: 5,
		ActorID:  "seed",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	d, err := f.deliverySvc.Create(ctx, delivery.CreateInput{
		FichaID:            fichaMaria,
		LocationID:         locDepot,
		ResponsibleActorID: "dave",
		Lines:              []delivery.CreateLine{{ItemTypeID: typeVest, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create delivery: %v", err)
	}

	// Unsigned deliveries never accept returns, whatever the items.
	_, err = f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
	}, "dave")
	if !apperror.IsCode(err, apperror.CodeDeliveryNotSigned) {
		t.Fatalf("err = %v, want DELIVERY_NOT_SIGNED", err)
	}
}

func TestProcess_AbortsOnItemFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 2, 5) // 3 left

	// Unit 1 is already returned; including it fails the whole call.
	if _, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[1].ID, Condition: delivery.ConditionGood},
	}, "dave"); err != nil {
		t.Fatalf("first return: %v", err)
	}

	_, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[1].ID, Condition: delivery.ConditionGood},
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
	}, "dave")
	if !apperror.IsCode(err, apperror.CodeInvalidItemState) {
		t.Fatalf("err = %v, want INVALID_ITEM_STATE", err)
	}

	reloaded, _ := f.deliveryRepo.GetByID(ctx, d.ID)
	if got := reloaded.UnitByID(d.Units[0].ID).Status; got != delivery.UnitWithWorker {
		t.Errorf("unit 0 status = %s, want WITH_WORKER after aborted call", got)
	}
	if got := f.balance(t, ledger.StatusAvailable); got != 4 {
		t.Errorf("available = %d, want 4", got)
	}
}

func TestProcess_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 2, 5)

	tests := []struct {
		name  string
		items []Item
		actor string
	}{
		{"no actor", []Item{{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood}}, ""},
		{"no items", nil, "dave"},
		{"unknown condition", []Item{{UnitID: d.Units[0].ID, Condition: "SHREDDED"}}, "dave"},
		{"duplicate unit", []Item{
			{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
			{UnitID: d.Units[0].ID, Condition: delivery.ConditionDamaged},
		}, "dave"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Process(ctx, d.ID, tc.items, tc.actor)
			if !apperror.IsCode(err, apperror.CodeValidation) {
				t.Errorf("err = %v, want VALIDATION", err)
			}
		})
	}
}

func TestProcessBatch_ContinuesPastFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 3, 10) // 7 left

	// Burn unit 1 so it fails inside the batch.
	if _, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[1].ID, Condition: delivery.ConditionGood},
	}, "dave"); err != nil {
		t.Fatalf("pre-return: %v", err)
	}

	result, err := f.svc.ProcessBatch(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
		{UnitID: d.Units[1].ID, Condition: delivery.ConditionGood},
		{UnitID: d.Units[2].ID, Condition: delivery.ConditionDamaged, Reason: "cracked"},
	}, "dave")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if len(result.Processed) != 2 {
		t.Errorf("processed = %d, want 2", len(result.Processed))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].UnitID != d.Units[1].ID {
		t.Errorf("failed unit = %s, want %s", result.Errors[0].UnitID, d.Units[1].ID)
	}
	if !apperror.IsCode(result.Errors[0].Err, apperror.CodeInvalidItemState) {
		t.Errorf("item err = %v, want INVALID_ITEM_STATE", result.Errors[0].Err)
	}

	if got := f.balance(t, ledger.StatusAvailable); got != 9 {
		t.Errorf("available = %d, want 9", got)
	}
	if got := f.balance(t, ledger.StatusAwaitingInspection); got != 1 {
		t.Errorf("awaiting inspection = %d, want 1", got)
	}
}

func TestCancelReturn_RestoresUnitAndStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 1, 5) // 4 left

	if _, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
	}, "dave"); err != nil {
		t.Fatalf("return: %v", err)
	}
	if got := f.balance(t, ledger.StatusAvailable); got != 5 {
		t.Fatalf("available after return = %d, want 5", got)
	}

	if err := f.svc.CancelReturn(ctx, d.ID, []id.ID{d.Units[0].ID}, "clerk error", "dave"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := f.balance(t, ledger.StatusAvailable); got != 4 {
		t.Errorf("available after cancel = %d, want 4", got)
	}
	reloaded, _ := f.deliveryRepo.GetByID(ctx, d.ID)
	u := reloaded.UnitByID(d.Units[0].ID)
	if u.Status != delivery.UnitWithWorker {
		t.Errorf("unit status = %s, want WITH_WORKER", u.Status)
	}
	if u.ReturnedAt != nil || u.ReturnCondition != nil || u.ReturnEntryID != nil {
		t.Error("return audit fields not cleared")
	}

	// The unit is live again, so it can be returned once more.
	if _, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionDamaged, Reason: "actually torn"},
	}, "dave"); err != nil {
		t.Fatalf("second return: %v", err)
	}
	if got := f.balance(t, ledger.StatusAwaitingInspection); got != 1 {
		t.Errorf("awaiting inspection = %d, want 1", got)
	}
}

func TestCancelReturn_LostHasNoLedgerEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 1, 5) // 4 left

	if _, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionLost, Reason: "missing"},
	}, "dave"); err != nil {
		t.Fatalf("return: %v", err)
	}

	if err := f.svc.CancelReturn(ctx, d.ID, []id.ID{d.Units[0].ID}, "found it", "dave"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// No credit existed, so balances are untouched either way.
	if got := f.balance(t, ledger.StatusAvailable); got != 4 {
		t.Errorf("available = %d, want 4", got)
	}
	reloaded, _ := f.deliveryRepo.GetByID(ctx, d.ID)
	if got := reloaded.UnitByID(d.Units[0].ID).Status; got != delivery.UnitWithWorker {
		t.Errorf("unit status = %s, want WITH_WORKER", got)
	}
}

func TestCancelReturn_WindowExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 1, 5)

	if _, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
	}, "dave"); err != nil {
		t.Fatalf("return: %v", err)
	}

	// Backdate the return past the window.
	reloaded, _ := f.deliveryRepo.GetByID(ctx, d.ID)
	u := reloaded.UnitByID(d.Units[0].ID)
	stale := time.Now().UTC().Add(-CancellationWindow - time.Hour)
	u.ReturnedAt = &stale
	if err := f.deliveryRepo.UpdateUnit(ctx, u); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	err := f.svc.CancelReturn(ctx, d.ID, []id.ID{d.Units[0].ID}, "too late", "dave")
	if !apperror.IsCode(err, apperror.CodeCancellationWindow) {
		t.Fatalf("err = %v, want CANCELLATION_WINDOW_EXPIRED", err)
	}

	// Nothing rolled back: the credit stands and the unit stays RETURNED.
	if got := f.balance(t, ledger.StatusAvailable); got != 5 {
		t.Errorf("available = %d, want 5", got)
	}
}

// Stock is conserved across the whole lifecycle: what sits in buckets
// plus what workers hold equals everything taken in, minus what was
// disposed of, minus what was lost.
func TestLifecycle_ConservesStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 4, 10) // intake 10, 6 left on shelf

	if _, err := f.svc.Process(ctx, d.ID, []Item{
		{UnitID: d.Units[0].ID, Condition: delivery.ConditionGood},
		{UnitID: d.Units[1].ID, Condition: delivery.ConditionDamaged, Reason: "frayed"},
		{UnitID: d.Units[2].ID, Condition: delivery.ConditionLost, Reason: "gone"},
	}, "dave"); err != nil {
		t.Fatalf("returns: %v", err)
	}

	if _, err := f.ledgerSvc.Apply(ctx, ledger.MovementRequest{
		Bucket:   ledger.BucketKey{LocationID: locDepot, ItemTypeID: typeVest, Status: ledger.StatusAvailable},
		Kind:     ledger.KindDisposal,
		Quantity: 2,
		ActorID:  "dave",
		Reason:   "expired",
	}); err != nil {
		t.Fatalf("disposal: %v", err)
	}

	balances, err := f.ledgerSvc.ListBalances(ctx, ledger.BalanceFilter{})
	if err != nil {
		t.Fatalf("list balances: %v", err)
	}
	var inBuckets types.Quantity
	for _, b := range balances {
		inBuckets += b.Quantity
	}

	reloaded, err := f.deliveryRepo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	summary := reloaded.Summarize()

	const intakes, disposals = 10, 2
	want := types.Quantity(intakes - disposals - summary.Lost)
	if got := inBuckets + types.Quantity(summary.WithWorker); got != want {
		t.Errorf("buckets %d + with-worker %d = %d, want %d",
			inBuckets, summary.WithWorker, got, want)
	}
	// Pin the components so a compensating pair of bugs cannot hide.
	if got := f.balance(t, ledger.StatusAvailable); got != 5 {
		t.Errorf("available = %d, want 5", got)
	}
	if got := f.balance(t, ledger.StatusAwaitingInspection); got != 1 {
		t.Errorf("awaiting inspection = %d, want 1", got)
	}
	if summary.WithWorker != 1 || summary.Lost != 1 {
		t.Errorf("summary = %+v, want 1 with worker and 1 lost", summary)
	}
}

func TestCancelReturn_GuardsState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.deliverSigned(t, 1, 5)

	// Unit is still with the worker; there is nothing to cancel.
	err := f.svc.CancelReturn(ctx, d.ID, []id.ID{d.Units[0].ID}, "oops", "dave")
	if !apperror.IsCode(err, apperror.CodeInvalidItemState) {
		t.Fatalf("err = %v, want INVALID_ITEM_STATE", err)
	}

	err = f.svc.CancelReturn(ctx, d.ID, []id.ID{id.New()}, "oops", "dave")
	if !apperror.IsNotFound(err) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}
