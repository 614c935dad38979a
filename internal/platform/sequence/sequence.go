// Package sequence issues gap-free counters for human-readable identifiers:
// queue tokens, visit numbers and MRNs.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
)

// Generator returns the next value of the counter named scope, starting at 1.
// When ctx carries a transaction the increment is part of it.
type Generator interface {
	Next(ctx context.Context, scope string) (int64, error)
}

// DailyScope names a counter that restarts every calendar day.
func DailyScope(kind, key string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", kind, key, day.Format("20060102"))
}

type pgGenerator struct {
	pool *pgxpool.Pool
}

// NewPG stores counters in the sequence_counters table.
func NewPG(pool *pgxpool.Pool) Generator {
	return &pgGenerator{pool: pool}
}

func (g *pgGenerator) Next(ctx context.Context, scope string) (int64, error) {
	var v int64
	err := db.QuerierFrom(ctx, g.pool).QueryRow(ctx, `
		INSERT INTO sequence_counters (scope, value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value`, scope).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next value for %s: %w", scope, err)
	}
	return v, nil
}

type memGenerator struct {
	counters *memstore.Table[string, int64]
}

// NewMemory keeps counters in store, rolling back with its transactions.
func NewMemory(store *memstore.Store) Generator {
	return &memGenerator{counters: memstore.NewTable[string, int64](store, nil)}
}

func (g *memGenerator) Next(ctx context.Context, scope string) (int64, error) {
	return g.counters.Upsert(ctx, scope, func(cur int64, _ bool) int64 { return cur + 1 }), nil
}
