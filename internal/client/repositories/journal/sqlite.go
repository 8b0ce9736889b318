package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/client/models"
	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
)

// SQLiteRepository implements Repository on a DBTX. Timestamps are stored
// as RFC 3339 text in UTC.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, entity_type, entity_id, record_version, qms_hash, signature, signed_at,
	key_fingerprint, correlation_id, status, artifact_id, verification, last_error, submitted_at FROM journal`

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *SQLiteRepository) Add(ctx context.Context, e *models.JournalEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO journal (id, entity_type, entity_id, record_version, qms_hash, signature, signed_at, key_fingerprint, correlation_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EntityType, e.EntityID, e.RecordVersion, e.QMSHash, e.Signature,
		formatTime(e.SignedAt), e.KeyFingerprint, e.CorrelationID, models.JournalPending)
	if err != nil {
		return fmt.Errorf("failed to add journal entry: %w", err)
	}
	e.Status = models.JournalPending
	return nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]*models.JournalEntry, error) {
	return r.query(ctx, selectColumns+` WHERE status = ? ORDER BY signed_at, id`, models.JournalPending)
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*models.JournalEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, selectColumns+` ORDER BY signed_at DESC, id DESC LIMIT ?`, limit)
}

func (r *SQLiteRepository) MarkSubmitted(ctx context.Context, id, artifactID, verification string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE journal SET status = ?, artifact_id = ?, verification = ?, submitted_at = ?, last_error = NULL
		WHERE id = ? AND status = ?`,
		models.JournalSubmitted, artifactID, verification, formatTime(at), id, models.JournalPending)
	return r.expectOne(res, err, id)
}

func (r *SQLiteRepository) MarkRejected(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE journal SET status = ?, last_error = ? WHERE id = ? AND status = ?`,
		models.JournalRejected, reason, id, models.JournalPending)
	return r.expectOne(res, err, id)
}

func (r *SQLiteRepository) RecordError(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE journal SET last_error = ? WHERE id = ? AND status = ?`,
		reason, id, models.JournalPending)
	return r.expectOne(res, err, id)
}

func (r *SQLiteRepository) expectOne(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("failed to update journal entry %s: %w", id, err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		return fmt.Errorf("pending journal entry %s: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]*models.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select journal: %w", err)
	}
	defer rows.Close()

	var result []*models.JournalEntry
	for rows.Next() {
		var (
			e                    models.JournalEntry
			signedAt             string
			artifactID, verif    sql.NullString
			correlationID        sql.NullString
			lastError, submitted sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.RecordVersion, &e.QMSHash, &e.Signature, &signedAt,
			&e.KeyFingerprint, &correlationID, &e.Status, &artifactID, &verif, &lastError, &submitted); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		if e.SignedAt, err = time.Parse(time.RFC3339Nano, signedAt); err != nil {
			return nil, fmt.Errorf("journal entry %s: signed_at: %w", e.ID, err)
		}
		e.CorrelationID = nullable(correlationID)
		e.ArtifactID = nullable(artifactID)
		e.Verification = nullable(verif)
		e.LastError = nullable(lastError)
		if submitted.Valid {
			t, err := time.Parse(time.RFC3339Nano, submitted.String)
			if err != nil {
				return nil, fmt.Errorf("journal entry %s: submitted_at: %w", e.ID, err)
			}
			e.SubmittedAt = &t
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal rows: %w", err)
	}
	return result, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
