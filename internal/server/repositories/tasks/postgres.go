// Package tasks stores child work items of records.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO tasks (id, entity_id, kind, title, completed, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query, t.ID, t.EntityID, t.Kind, t.Title, t.Completed, t.CompletedAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Complete marks an open task of the record as completed. A missing or
// already completed task yields common.ErrorNotFound.
func (r *PostgresRepository) Complete(ctx context.Context, entityID, taskID string, at time.Time) error {
	query := `
		UPDATE tasks SET completed = TRUE, completed_at = $3
		WHERE id = $1 AND entity_id = $2 AND completed = FALSE`

	res, err := r.db.ExecContext(ctx, query, taskID, entityID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorNotFound
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.Task, error) {
	query := `
		SELECT id, entity_id, kind, title, completed, completed_at, created_at
		FROM tasks
		WHERE entity_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		t := &models.Task{}
		if err := rows.Scan(&t.ID, &t.EntityID, &t.Kind, &t.Title, &t.Completed, &t.CompletedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
