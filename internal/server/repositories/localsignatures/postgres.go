package localsignatures

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

func (r *PostgresRepository) Create(ctx context.Context, s *models.LocalSignature) error {
	query := `
		INSERT INTO local_signatures (id, entity_type, entity_id, signer_id, meaning, prior_state, target_state,
			signed_at, record_hash_at_signing, signature_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query, s.ID, s.EntityType, s.EntityID, s.SignerID, s.Meaning, s.PriorState,
		s.TargetState, s.SignedAt, s.RecordHashAtSigning, s.SignatureHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByEntity returns the record's e-signatures in signing order.
func (r *PostgresRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.LocalSignature, error) {
	query := `
		SELECT id, entity_type, entity_id, signer_id, meaning, prior_state, target_state,
			signed_at, record_hash_at_signing, signature_hash
		FROM local_signatures
		WHERE entity_id = $1
		ORDER BY signed_at`

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select local signatures: %w", err)
	}
	defer rows.Close()

	var result []*models.LocalSignature
	for rows.Next() {
		s := &models.LocalSignature{}
		if err := rows.Scan(&s.ID, &s.EntityType, &s.EntityID, &s.SignerID, &s.Meaning, &s.PriorState,
			&s.TargetState, &s.SignedAt, &s.RecordHashAtSigning, &s.SignatureHash); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
