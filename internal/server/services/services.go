// Package services contains the server-side business logic. Every service
// holds the *sql.DB and a RepositoryManager, and runs multi-row changes inside
// a single dbx.WithTx so that a state change never commits without its
// signature and history rows.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/records"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// EvidenceStore is the object storage holding attachment bytes.
type EvidenceStore interface {
	Enabled() bool
	PresignPut(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

// loaded is a persisted record together with its signable view.
type loaded struct {
	row      *models.Record
	entity   records.EntityType
	signable records.SignableRecord
}

func envelope(rec *models.Record) records.Envelope {
	return records.Envelope{
		Type:          records.EntityType(rec.EntityType),
		ID:            rec.ID,
		RecordNumber:  rec.RecordNumber,
		State:         rec.State,
		Fields:        rec.Fields,
		RecordVersion: rec.RecordVersion,
		FinalizedAt:   rec.FinalizedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// loadRecord reads a record and checks that it is of the expected type. A
// record of another type is reported as not found.
func loadRecord(ctx context.Context, rm repomanager.RepositoryManager, db dbx.DBTX, entityType, id string) (*loaded, error) {
	t, err := records.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("record %q: %w", id, common.ErrorNotFound)
	}

	row, err := rm.Records(db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.EntityType != string(t) {
		return nil, fmt.Errorf("%s %s: %w", t, id, common.ErrorNotFound)
	}

	signable, err := records.Decode(envelope(row))
	if err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", t, id, err)
	}
	return &loaded{row: row, entity: t, signable: signable}, nil
}

func newHistory(l *loaded, action, actorID, reason string, at time.Time) *models.HistoryEntry {
	return &models.HistoryEntry{
		ID:         uuid.NewString(),
		EntityType: string(l.entity),
		EntityID:   l.row.ID,
		Action:     action,
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  at,
	}
}

// details marshals v for the history details column.
func details(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
