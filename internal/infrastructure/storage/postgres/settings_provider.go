package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/settings"
	"epitrack/pkg/logger"
)

const settingsTable = "operational_settings"

// Compile-time check that SettingsProvider implements settings.Provider.
var _ settings.Provider = (*SettingsProvider)(nil)

// SettingsProvider reads operational switches from the database with a
// short TTL cache. Switches change rarely, but each mutating operation
// re-reads them, so lookups must not hit the database every time.
//
// A disabled or unknown switch reads as false; read failures also read
// as false, keeping the restrictive default under database trouble.
type SettingsProvider struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
	ttl     time.Duration

	mu       sync.RWMutex
	flags    map[string]bool
	loadedAt time.Time
}

type settingRow struct {
	Name    string `db:"name"`
	Enabled bool   `db:"enabled"`
}

// NewSettingsProvider creates a provider with the given cache TTL.
func NewSettingsProvider(txm *TxManager, ttl time.Duration) *SettingsProvider {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SettingsProvider{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		ttl:     ttl,
		flags:   make(map[string]bool),
	}
}

// IsEnabled reports whether the named switch is on.
func (p *SettingsProvider) IsEnabled(ctx context.Context, name string) bool {
	p.mu.RLock()
	fresh := time.Since(p.loadedAt) < p.ttl
	enabled, ok := p.flags[name]
	p.mu.RUnlock()

	if fresh {
		return ok && enabled
	}

	if err := p.refresh(ctx); err != nil {
		logger.Warn(ctx, "settings refresh failed, using stale values", "error", err)
		return ok && enabled
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flags[name]
}

// SetEnabled upserts one switch and invalidates the cache.
func (p *SettingsProvider) SetEnabled(ctx context.Context, name string, enabled bool) error {
	querier := p.txm.GetQuerier(ctx)
	_, err := querier.Exec(ctx, `
		INSERT INTO operational_settings (name, enabled, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()
	`, name, enabled)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}

	p.mu.Lock()
	p.loadedAt = time.Time{}
	p.mu.Unlock()
	return nil
}

func (p *SettingsProvider) refresh(ctx context.Context) error {
	q := p.builder.Select("name", "enabled").From(settingsTable)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []settingRow
	querier := p.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return fmt.Errorf("select settings: %w", err)
	}

	flags := make(map[string]bool, len(rows))
	for _, row := range rows {
		flags[row.Name] = row.Enabled
	}

	p.mu.Lock()
	p.flags = flags
	p.loadedAt = time.Now()
	p.mu.Unlock()
	return nil
}
