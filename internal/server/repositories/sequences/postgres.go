// Package sequences mints monotonic per-key counters used for
// human-readable record numbers.
package sequences

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Next increments the counter of key and returns the new value. The upsert
// is a single statement, so concurrent callers never receive the same value.
func (r *PostgresRepository) Next(ctx context.Context, key string) (int64, error) {
	query :=
		`INSERT INTO sequences (key, value) VALUES ($1, 1)
		 ON CONFLICT (key) DO UPDATE SET value = sequences.value + 1
		 RETURNING value
		 `

	var value int64
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return value, nil
}
