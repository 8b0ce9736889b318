// Package waivers stores effectiveness-check waivers, at most one per record.
package waivers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert records the waiver, replacing an earlier one of the same record.
func (r *PostgresRepository) Upsert(ctx context.Context, w *models.Waiver) error {
	query := `
		INSERT INTO waivers (entity_id, justification, actor_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id) DO UPDATE
		SET justification = EXCLUDED.justification, actor_id = EXCLUDED.actor_id, created_at = EXCLUDED.created_at`

	if _, err := r.db.ExecContext(ctx, query, w.EntityID, w.Justification, w.ActorID, w.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, entityID string) (*models.Waiver, error) {
	query := `SELECT entity_id, justification, actor_id, created_at FROM waivers WHERE entity_id = $1`

	w := &models.Waiver{}
	err := r.db.QueryRowContext(ctx, query, entityID).Scan(&w.EntityID, &w.Justification, &w.ActorID, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}
