// Package signaturerequests stores requests for an external signature over a
// record hash.
package signaturerequests

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

const columns = `id, entity_type, entity_id, record_version, expected_hash, status, requested_at, requested_by,
	correlation_id, notes, artifact_id, signed_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.SignatureRequest, error) {
	r := &models.SignatureRequest{}
	err := row.Scan(&r.ID, &r.EntityType, &r.EntityID, &r.RecordVersion, &r.ExpectedHash, &r.Status,
		&r.RequestedAt, &r.RequestedBy, &r.CorrelationID, &r.Notes, &r.ArtifactID, &r.SignedAt)
	return r, err
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.SignatureRequest) error {
	query := `
		INSERT INTO signature_requests (id, entity_type, entity_id, record_version, expected_hash, status,
			requested_at, requested_by, correlation_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query, req.ID, req.EntityType, req.EntityID, req.RecordVersion,
		req.ExpectedHash, req.Status, req.RequestedAt, req.RequestedBy, req.CorrelationID, req.Notes)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.SignatureRequest, error) {
	req, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SignatureRequest, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM signature_requests WHERE id = $1`, id)
}

// FindByCorrelation looks a request up by the opaque id its requester chose.
func (r *PostgresRepository) FindByCorrelation(ctx context.Context, entityID, correlationID string) (*models.SignatureRequest, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM signature_requests WHERE entity_id = $1 AND correlation_id = $2`,
		entityID, correlationID)
}

// ListPending returns the entity's PENDING requests, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context, entityID string) ([]*models.SignatureRequest, error) {
	query := `SELECT ` + columns + ` FROM signature_requests
		WHERE entity_id = $1 AND status = 'PENDING'
		ORDER BY requested_at`

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select signature requests: %w", err)
	}
	defer rows.Close()

	var result []*models.SignatureRequest
	for rows.Next() {
		req, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSigned moves a PENDING request to SIGNED. It never reverses: a request
// that is not PENDING yields common.ErrAlreadySigned.
func (r *PostgresRepository) MarkSigned(ctx context.Context, id, artifactID string, at time.Time) error {
	query := `
		UPDATE signature_requests
		SET status = 'SIGNED', artifact_id = $2, signed_at = $3
		WHERE id = $1 AND status = 'PENDING'`

	res, err := r.db.ExecContext(ctx, query, id, artifactID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrAlreadySigned
		}
		return fmt.Errorf("rows affected error: %w", err)
	}
	return nil
}
