// Package artifacts stores externally produced signature artifacts and the
// cached result of their latest verification.
package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

const columns = `id, entity_type, entity_id, record_version, qms_hash, signature, signed_at, request_id, submitted_by,
	verification_status, verification_reason, verified_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.SignatureArtifact, error) {
	a := &models.SignatureArtifact{}
	err := row.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.RecordVersion, &a.QMSHash, &a.Signature, &a.SignedAt,
		&a.RequestID, &a.SubmittedBy, &a.VerificationStatus, &a.VerificationReason, &a.VerifiedAt, &a.CreatedAt)
	return a, err
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.SignatureArtifact) error {
	query := `
		INSERT INTO signature_artifacts (id, entity_type, entity_id, record_version, qms_hash, signature, signed_at,
			request_id, submitted_by, verification_status, verification_reason, verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query, a.ID, a.EntityType, a.EntityID, a.RecordVersion, a.QMSHash, a.Signature,
		a.SignedAt, a.RequestID, a.SubmittedBy, a.VerificationStatus, a.VerificationReason, a.VerifiedAt, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.SignatureArtifact, error) {
	a, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SignatureArtifact, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM signature_artifacts WHERE id = $1`, id)
}

// GetLatest returns the artifact with the newest signed_at, which is the
// authoritative one for the record's approval status.
func (r *PostgresRepository) GetLatest(ctx context.Context, entityID string) (*models.SignatureArtifact, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM signature_artifacts
		WHERE entity_id = $1
		ORDER BY signed_at DESC, created_at DESC
		LIMIT 1`, entityID)
}

// ListByEntity returns every artifact of the record, newest first.
func (r *PostgresRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.SignatureArtifact, error) {
	query := `SELECT ` + columns + ` FROM signature_artifacts
		WHERE entity_id = $1
		ORDER BY signed_at DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select artifacts: %w", err)
	}
	defer rows.Close()

	var result []*models.SignatureArtifact
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateVerification caches a verification result. The row is written only
// when the status or reason differs from what is stored; the returned bool
// reports whether a write happened.
func (r *PostgresRepository) UpdateVerification(ctx context.Context, id, status, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE signature_artifacts
		SET verification_status = $2, verification_reason = NULLIF($3, ''), verified_at = $4
		WHERE id = $1
		  AND (verification_status IS DISTINCT FROM $2 OR verification_reason IS DISTINCT FROM NULLIF($3, ''))`

	res, err := r.db.ExecContext(ctx, query, id, status, reason, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}
