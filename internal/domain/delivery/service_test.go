package delivery

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
	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/ledger"
)

var (
	locWarehouse = id.MustParse("018f0000-0000-7000-8000-000000000020")
	typeHelmet   = id.MustParse("018f0000-0000-7000-8000-000000000021")
	typeGoggles  = id.MustParse("018f0000-0000-7000-8000-000000000022")
	typeRetired  = id.MustParse("018f0000-0000-7000-8000-000000000023")
	fichaActive  = id.MustParse("018f0000-0000-7000-8000-000000000024")
	fichaFrozen  = id.MustParse("018f0000-0000-7000-8000-000000000025")
)

type fixture struct {
	svc        *Service
	ledgerSvc  *ledger.Service
	ledgerRepo *ledger.MemoryRepository
}

func newFixture() *fixture {
	ledgerRepo := ledger.NewMemoryRepository()
	flags := settings.NewInMemory()
	ledgerSvc := ledger.NewService(ledgerRepo, flags)

	shelfLife := 30
	cat := catalog.NewMemoryReader()
	cat.Put(catalog.ItemType{ID: typeHelmet, Code: "HELM", Name: "Helmet", ShelfLifeDays: &shelfLife, Active: true})
	cat.Put(catalog.ItemType{ID: typeGoggles, Code: "GOGL", Name: "Goggles", Active: true})
	cat.Put(catalog.ItemType{ID: typeRetired, Code: "OLD", Name: "Retired model", Active: false})

	dir := ficha.NewMemoryDirectory()
	dir.Put(ficha.Record{ID: fichaActive, WorkerName: "Jo", Status: ficha.StatusActive})
	dir.Put(ficha.Record{ID: fichaFrozen, WorkerName: "Sam", Status: ficha.StatusInactive})

	return &fixture{
		svc:        NewService(NewMemoryRepository(), ledgerSvc, cat, dir, tx.NewNopManager()),
		ledgerSvc:  ledgerSvc,
		ledgerRepo: ledgerRepo,
	}
}

func (f *fixture) seed(t *testing.T, itemType id.ID, qty types.Quantity) {
	t.Helper()
	if _, err := f.ledgerSvc.Apply(context.Background(), ledger.MovementRequest{
		Bucket:   ledger.BucketKey{LocationID: locWarehouse, ItemTypeID: itemType, Status: ledger.StatusAvailable},
		Kind:     ledger.KindIntake,
		Quantity: qty,
		ActorID:  "seed",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, itemType id.ID) types.Quantity {
	t.Helper()
	b, err := f.ledgerSvc.GetBalance(context.Background(), ledger.BucketKey{
		LocationID: locWarehouse, ItemTypeID: itemType, Status: ledger.StatusAvailable,
	})
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b.Quantity
}

func TestCreate_ExpandsToUnits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 10)

	d, err := f.svc.Create(ctx, CreateInput{
		FichaID:            fichaActive,
		LocationID:         locWarehouse,
		ResponsibleActorID: "dave",
		Lines:              []CreateLine{{ItemTypeID: typeHelmet, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if d.Status != StatusPendingSignature {
		t.Errorf("status = %s, want PENDING_SIGNATURE", d.Status)
	}
	if len(d.Units) != 3 {
		t.Fatalf("units = %d, want 3", len(d.Units))
	}
	for _, u := range d.Units {
		if u.Quantity != 1 {
			t.Errorf("unit quantity = %d, want 1", u.Quantity)
		}
		if u.Status != UnitWithWorker {
			t.Errorf("unit status = %s, want WITH_WORKER", u.Status)
		}
		if id.IsNil(u.IssueEntryID) {
			t.Error("unit missing issue entry link")
		}
		if u.ReturnDeadline == nil {
			t.Error("helmet unit missing return deadline")
		} else if want := d.DeliveryDate.AddDate(0, 0, 30); !u.ReturnDeadline.Equal(want) {
			t.Errorf("deadline = %v, want %v", u.ReturnDeadline, want)
		}
	}

	if got := f.balance(t, typeHelmet); got != 7 {
		t.Errorf("balance = %d, want 7", got)
	}

	issueKind := ledger.KindIssue
	entries, _ := f.ledgerSvc.ListEntries(ctx, ledger.EntryFilter{DeliveryID: &d.ID, Kind: &issueKind})
	if len(entries) != 3 {
		t.Errorf("issue entries = %d, want 3 (one per unit)", len(entries))
	}
	for _, e := range entries {
		if e.Quantity != 1 {
			t.Errorf("entry quantity = %d, want 1", e.Quantity)
		}
		if e.DeliveryUnitID == nil {
			t.Error("issue entry not linked to a unit")
		}
	}
}

func TestCreate_NoShelfLifeMeansNoDeadline(t *testing.T) {
	f := newFixture()
	f.seed(t, typeGoggles, 5)

	d, err := f.svc.Create(context.Background(), CreateInput{
		FichaID:            fichaActive,
		LocationID:         locWarehouse,
		ResponsibleActorID: "dave",
		Lines:              []CreateLine{{ItemTypeID: typeGoggles, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Units[0].ReturnDeadline != nil {
		t.Error("goggles have no shelf life, deadline must be nil")
	}
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 2)

	tests := []struct {
		name     string
		input    CreateInput
		wantCode string
	}{
		{
			"insufficient stock",
			CreateInput{FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave",
				Lines: []CreateLine{{ItemTypeID: typeHelmet, Quantity: 5}}},
			apperror.CodeInsufficientStock,
		},
		{
			"unknown ficha",
			CreateInput{FichaID: id.New(), LocationID: locWarehouse, ResponsibleActorID: "dave",
				Lines: []CreateLine{{ItemTypeID: typeHelmet, Quantity: 1}}},
			apperror.CodeNotFound,
		},
		{
			"inactive ficha",
			CreateInput{FichaID: fichaFrozen, LocationID: locWarehouse, ResponsibleActorID: "dave",
				Lines: []CreateLine{{ItemTypeID: typeHelmet, Quantity: 1}}},
			apperror.CodeInvalidState,
		},
		{
			"discontinued item type",
			CreateInput{FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave",
				Lines: []CreateLine{{ItemTypeID: typeRetired, Quantity: 1}}},
			apperror.CodeValidation,
		},
		{
			"no lines",
			CreateInput{FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave"},
			apperror.CodeValidation,
		},
		{
			"zero quantity",
			CreateInput{FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave",
				Lines: []CreateLine{{ItemTypeID: typeHelmet, Quantity: 0}}},
			apperror.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, tt.input); !apperror.IsCode(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}

	if got := f.balance(t, typeHelmet); got != 2 {
		t.Errorf("balance = %d, want 2 (no rejected delivery debited stock)", got)
	}
}

func TestSign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 5)

	d, err := f.svc.Create(ctx, CreateInput{
		FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave",
		Lines: []CreateLine{{ItemTypeID: typeHelmet, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	signed, err := f.svc.Sign(ctx, d.ID, "worker-jo")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.Status != StatusSigned || signed.SignedAt == nil || signed.SignedBy != "worker-jo" {
		t.Errorf("signed = %+v, want SIGNED with signer", signed)
	}

	if _, err := f.svc.Sign(ctx, d.ID, "worker-jo"); !apperror.IsCode(err, apperror.CodeInvalidState) {
		t.Errorf("second sign err = %v, want INVALID_STATE", err)
	}
}

func TestCancelPending_ReversesIssues(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 5)

	d, err := f.svc.Create(ctx, CreateInput{
		FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave",
		Lines: []CreateLine{{ItemTypeID: typeHelmet, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.balance(t, typeHelmet); got != 3 {
		t.Fatalf("balance = %d, want 3", got)
	}

	cancelled, err := f.svc.CancelPending(ctx, d.ID, "dave")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}
	if got := f.balance(t, typeHelmet); got != 5 {
		t.Errorf("balance = %d, want 5 (issues reversed)", got)
	}

	// Signed deliveries cannot be cancelled.
	d2, _ := f.svc.Create(ctx, CreateInput{
		FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave",
		Lines: []CreateLine{{ItemTypeID: typeHelmet, Quantity: 1}},
	})
	if _, err := f.svc.Sign(ctx, d2.ID, "worker-jo"); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := f.svc.CancelPending(ctx, d2.ID, "dave"); !apperror.IsCode(err, apperror.CodeInvalidState) {
		t.Errorf("cancel signed err = %v, want INVALID_STATE", err)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, typeHelmet, 5)

	d, err := f.svc.Create(ctx, CreateInput{
		FichaID: fichaActive, LocationID: locWarehouse, ResponsibleActorID: "dave",
		DeliveryDate: time.Now().UTC(),
		Lines:        []CreateLine{{ItemTypeID: typeHelmet, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s, err := f.svc.Summary(ctx, d.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.WithWorker != 3 || s.Returned != 0 || s.PartiallyReturned || s.FullyReturned {
		t.Errorf("summary = %+v, want 3 with worker, nothing returned", s)
	}
}

func TestMemoryRepository_ListSnapshotsAndBounds(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	d := &Delivery{
		ID:                 id.New(),
		FichaID:            fichaActive,
		LocationID:         locWarehouse,
		ResponsibleActorID: "dave",
		DeliveryDate:       day,
		Status:             StatusPendingSignature,
		CreatedAt:          day,
		UpdatedAt:          day,
		Version:            1,
	}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	unit := Unit{ID: id.New(), DeliveryID: d.ID, ItemTypeID: typeHelmet,
		SourceLocationID: locWarehouse, Quantity: 1, Status: UnitWithWorker, IssueEntryID: id.New()}
	if err := repo.SaveUnits(ctx, d.ID, []Unit{unit}); err != nil {
		t.Fatalf("save units: %v", err)
	}

	// Mutating a listed delivery must not leak into the store.
	listed, err := repo.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || len(listed[0].Units) != 1 {
		t.Fatalf("listed %d deliveries, want 1 with 1 unit", len(listed))
	}
	listed[0].Units[0].Status = UnitReturned

	stored, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Units[0].Status != UnitWithWorker {
		t.Errorf("stored unit status = %s, caller mutation leaked into store", stored.Units[0].Status)
	}

	// Date range is [from, to): a delivery dated exactly at the upper
	// bound is excluded, matching the SQL repository.
	from, to := day, day
	if out, _ := repo.List(ctx, ListFilter{FromDate: &from, ToDate: &to}); len(out) != 0 {
		t.Errorf("delivery at upper bound listed, want excluded")
	}
	later := day.Add(24 * time.Hour)
	if out, _ := repo.List(ctx, ListFilter{FromDate: &from, ToDate: &later}); len(out) != 1 {
		t.Errorf("delivery inside range not listed")
	}
}
