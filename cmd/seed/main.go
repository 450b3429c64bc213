// Package main provides a CLI tool for creating the schema and seeding
// the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"

	"epitrack/internal/core/id"
	"epitrack/internal/core/settings"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/infrastructure/storage/postgres"
	"epitrack/pkg/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stock_balances (
		location_id      uuid        NOT NULL,
		item_type_id     uuid        NOT NULL,
		status           text        NOT NULL,
		quantity         bigint      NOT NULL DEFAULT 0,
		last_movement_at timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (location_id, item_type_id, status)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id               uuid        PRIMARY KEY,
		location_id      uuid        NOT NULL,
		item_type_id     uuid        NOT NULL,
		status           text        NOT NULL,
		kind             text        NOT NULL,
		direction        text        NOT NULL,
		quantity         bigint      NOT NULL,
		balance_before   bigint      NOT NULL,
		balance_after    bigint      NOT NULL,
		actor_id         text        NOT NULL,
		reason           text        NOT NULL DEFAULT '',
		note_id          uuid,
		delivery_id      uuid,
		delivery_unit_id uuid,
		origin_entry_id  uuid REFERENCES ledger_entries (id),
		created_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_bucket
		ON ledger_entries (location_id, item_type_id, status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_origin
		ON ledger_entries (origin_entry_id) WHERE origin_entry_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_note
		ON ledger_entries (note_id) WHERE note_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_delivery
		ON ledger_entries (delivery_id) WHERE delivery_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS movement_notes (
		id                 uuid        PRIMARY KEY,
		type               text        NOT NULL,
		status             text        NOT NULL,
		source_location_id uuid,
		dest_location_id   uuid,
		comment            text        NOT NULL DEFAULT '',
		created_at         timestamptz NOT NULL,
		updated_at         timestamptz NOT NULL,
		created_by         text        NOT NULL DEFAULT '',
		concluded_at       timestamptz,
		concluded_by       text        NOT NULL DEFAULT '',
		version            int         NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS movement_note_lines (
		note_id            uuid   NOT NULL REFERENCES movement_notes (id) ON DELETE CASCADE,
		line_id            uuid   NOT NULL,
		line_no            int    NOT NULL,
		item_type_id       uuid   NOT NULL,
		stock_status       text   NOT NULL,
		requested_quantity bigint NOT NULL,
		processed_quantity bigint NOT NULL DEFAULT 0,
		direction          text   NOT NULL DEFAULT '',
		PRIMARY KEY (note_id, line_id)
	)`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id                   uuid        PRIMARY KEY,
		ficha_id             uuid        NOT NULL,
		location_id          uuid        NOT NULL,
		responsible_actor_id text        NOT NULL,
		delivery_date        timestamptz NOT NULL,
		status               text        NOT NULL,
		signed_at            timestamptz,
		signed_by            text        NOT NULL DEFAULT '',
		created_at           timestamptz NOT NULL,
		updated_at           timestamptz NOT NULL,
		version              int         NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_units (
		id                 uuid   PRIMARY KEY,
		delivery_id        uuid   NOT NULL REFERENCES deliveries (id) ON DELETE CASCADE,
		item_type_id       uuid   NOT NULL,
		source_location_id uuid   NOT NULL,
		quantity           bigint NOT NULL DEFAULT 1,
		status             text   NOT NULL,
		return_deadline    timestamptz,
		issue_entry_id     uuid   NOT NULL,
		returned_at        timestamptz,
		return_condition   text,
		return_reason      text   NOT NULL DEFAULT '',
		return_entry_id    uuid
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_units_delivery
		ON delivery_units (delivery_id)`,
	`CREATE TABLE IF NOT EXISTS item_types (
		id              uuid           PRIMARY KEY,
		code            text           NOT NULL UNIQUE,
		name            text           NOT NULL,
		shelf_life_days int,
		unit_cost       numeric(12, 2) NOT NULL DEFAULT 0,
		active          bool           NOT NULL DEFAULT true
	)`,
	`CREATE TABLE IF NOT EXISTS fichas (
		id          uuid PRIMARY KEY,
		worker_name text NOT NULL,
		status      text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS operational_settings (
		name       text        PRIMARY KEY,
		enabled    bool        NOT NULL DEFAULT false,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := applySchema(ctx, pool); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}
	log.Info("schema applied")

	if err := seedSettings(ctx, pool); err != nil {
		log.Fatalw("failed to seed settings", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func applySchema(ctx context.Context, pool *postgres.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}

// seedSettings registers the operational switches disabled, which is
// their restrictive default.
func seedSettings(ctx context.Context, pool *postgres.Pool) error {
	for _, name := range []string{
		settings.SwitchAllowNegativeStock,
		settings.SwitchAllowForcedAdjustments,
	} {
		_, err := pool.Exec(ctx, `
			INSERT INTO operational_settings (name, enabled) VALUES ($1, false)
			ON CONFLICT (name) DO NOTHING
		`, name)
		if err != nil {
			return fmt.Errorf("seed setting %s: %w", name, err)
		}
	}
	return nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	warehouseID := id.MustParse("018f7d00-0000-7000-8000-000000000001")

	itemTypes := []struct {
		code      string
		name      string
		shelfLife *int
		unitCost  string
	}{
		{"HELMET", "Capacete de seguranca classe B", intPtr(365), "42.50"},
		{"GLOVE-NITRIL", "Luva nitrilica cano medio", intPtr(90), "8.90"},
		{"BOOT-PVC", "Bota PVC cano longo", intPtr(180), "55.00"},
		{"GOGGLES", "Oculos de protecao incolor", nil, "12.30"},
	}

	txm := postgres.NewTxManager(pool)
	ledgerRepo := postgres.NewLedgerRepo(txm)
	flags := settings.NewInMemory()
	ledgerSvc := ledger.NewService(ledgerRepo, flags)

	for _, it := range itemTypes {
		itemTypeID := id.New()
		tag, err := pool.Exec(ctx, `
			INSERT INTO item_types (id, code, name, shelf_life_days, unit_cost, active)
			VALUES ($1, $2, $3, $4, $5, true)
			ON CONFLICT (code) DO NOTHING
		`, itemTypeID, it.code, it.name, it.shelfLife, it.unitCost)
		if err != nil {
			return fmt.Errorf("seed item type %s: %w", it.code, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		// Opening stock for fresh item types.
		err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := ledgerSvc.Apply(ctx, ledger.MovementRequest{
				Bucket: ledger.BucketKey{
					LocationID: warehouseID,
					ItemTypeID: itemTypeID,
					Status:     ledger.StatusAvailable,
				},
				Kind:     ledger.KindIntake,
				Quantity: types.Quantity(100),
				ActorID:  "seed",
				Reason:   "opening stock",
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("seed stock for %s: %w", it.code, err)
		}
		log.Infow("seeded item type", "code", it.code, "id", itemTypeID)
	}

	workers := []string{"Maria Souza", "Joao Pereira", "Ana Lima"}
	for _, name := range workers {
		_, err := pool.Exec(ctx, `
			INSERT INTO fichas (id, worker_name, status)
			SELECT $1, $2, 'ACTIVE'
			WHERE NOT EXISTS (SELECT 1 FROM fichas WHERE worker_name = $2)
		`, id.New(), name)
		if err != nil {
			return fmt.Errorf("seed ficha %s: %w", name, err)
		}
	}

	log.Infow("demo data seeded", "warehouse_id", warehouseID)
	return nil
}

func intPtr(v int) *int {
	return &v
}
