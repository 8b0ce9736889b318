// Package history stores the append-only audit trail of every record.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.HistoryEntry) error {
	query := `
		INSERT INTO history (id, entity_type, entity_id, action, from_state, to_state, actor_id, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var details any
	if len(e.Details) > 0 {
		details = []byte(e.Details)
	}

	_, err := r.db.ExecContext(ctx, query, e.ID, e.EntityType, e.EntityID, e.Action, e.FromState, e.ToState,
		e.ActorID, e.Reason, details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail of a record, oldest first.
func (r *PostgresRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, from_state, to_state, actor_id, reason, details, created_at
		FROM history
		WHERE entity_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select history: %w", err)
	}
	defer rows.Close()

	var result []*models.HistoryEntry
	for rows.Next() {
		e := &models.HistoryEntry{}
		var details []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.FromState, &e.ToState,
			&e.ActorID, &e.Reason, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
