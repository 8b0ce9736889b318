// Package attachments stores the metadata of files registered against
// records. The bytes live in object storage.
package attachments

import (
	"context"
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

func (r *PostgresRepository) Create(ctx context.Context, a *models.Attachment) error {
	query := `
		INSERT INTO attachments (id, entity_id, kind, file_name, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query, a.ID, a.EntityID, a.Kind, a.FileName, a.StorageKey, a.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.Attachment, error) {
	query := `
		SELECT id, entity_id, kind, file_name, storage_key, created_at
		FROM attachments
		WHERE entity_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.Attachment
	for rows.Next() {
		a := &models.Attachment{}
		if err := rows.Scan(&a.ID, &a.EntityID, &a.Kind, &a.FileName, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
