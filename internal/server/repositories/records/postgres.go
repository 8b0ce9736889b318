// Package records provides the PostgreSQL repository of the records table
// shared by every entity type.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
)

const columns = `id, entity_type, record_number, state, fields, record_version, closed_at, finalized_at, created_by, created_at, updated_at`

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	rec := &models.Record{}
	var fields []byte
	if err := row.Scan(&rec.ID, &rec.EntityType, &rec.RecordNumber, &rec.State, &fields, &rec.RecordVersion,
		&rec.ClosedAt, &rec.FinalizedAt, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Fields = json.RawMessage(fields)
	return rec, nil
}

// one maps a single-row result, turning sql.ErrNoRows into notFound.
func one(row *sql.Row, notFound error) (*models.Record, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Create inserts rec and returns it with its generated id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	query := `
		INSERT INTO records (entity_type, record_number, state, fields, record_version, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + columns

	row := r.db.QueryRowContext(ctx, query,
		rec.EntityType, rec.RecordNumber, rec.State, []byte(rec.Fields), rec.RecordVersion, rec.CreatedBy, rec.CreatedAt)
	return one(row, common.ErrorInternal)
}

// GetByID returns the record or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT ` + columns + ` FROM records WHERE id = $1`
	return one(r.db.QueryRowContext(ctx, query, id), common.ErrorNotFound)
}

// List returns records of entityType, optionally filtered by state, newest first.
func (r *PostgresRepository) List(ctx context.Context, entityType string, state string) ([]*models.Record, error) {
	query := `SELECT ` + columns + ` FROM records
		WHERE entity_type = $1 AND ($2 = '' OR state = $2)
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, entityType, state)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateFields replaces the authoritative fields if the row is still at
// expectedVersion, bumping record_version. A concurrent change yields
// common.ErrVersionConflict.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, fields json.RawMessage, expectedVersion int64, at time.Time) (*models.Record, error) {
	query := `
		UPDATE records
		SET fields = $2, record_version = record_version + 1, updated_at = $3
		WHERE id = $1 AND record_version = $4
		RETURNING ` + columns

	return one(r.db.QueryRowContext(ctx, query, id, []byte(fields), at, expectedVersion), common.ErrVersionConflict)
}

// UpdateState moves the row from ch.From to ch.To, bumping record_version and
// applying the closure/finalization timestamps. If the row is no longer in
// ch.From nothing is written and common.ErrVersionConflict is returned.
func (r *PostgresRepository) UpdateState(ctx context.Context, ch models.StateChange) (*models.Record, error) {
	query := `
		UPDATE records
		SET state = $3,
			record_version = record_version + 1,
			updated_at = $4,
			closed_at = CASE WHEN $5 THEN $4 ELSE closed_at END,
			finalized_at = CASE WHEN $6 THEN $4 ELSE finalized_at END
		WHERE id = $1 AND state = $2
		RETURNING ` + columns

	row := r.db.QueryRowContext(ctx, query, ch.ID, ch.From, ch.To, ch.At, ch.SetClosedAt, ch.SetFinalizedAt)
	return one(row, common.ErrVersionConflict)
}
