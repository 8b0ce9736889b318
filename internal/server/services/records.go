package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/records"
	"github.com/dmitrijs2005/gophqms/internal/server/evidence"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophqms/internal/workflow"
	"github.com/google/uuid"
)

type CreateRecordInput struct {
	EntityType string
	Fields     json.RawMessage
	ActorID    string
}

// UpdateRecordInput patches authoritative fields. ExpectedVersion is the
// record_version the caller last read; zero skips the check.
type UpdateRecordInput struct {
	EntityType      string
	EntityID        string
	Fields          json.RawMessage
	ExpectedVersion int64
	ActorID         string
}

type AddTaskInput struct {
	EntityType string
	EntityID   string
	Kind       string
	Title      string
	ActorID    string
}

type AddAttachmentInput struct {
	EntityType string
	EntityID   string
	Kind       string
	FileName   string
	ActorID    string
}

// RecordService creates and edits records and their child rows. Every
// change appends a history row in the same transaction.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validator   *workflow.Validator
	evidence    EvidenceStore
	log         logging.Logger
	now         Clock
}

func NewRecordService(db *sql.DB, rm repomanager.RepositoryManager, v *workflow.Validator, ev EvidenceStore, log logging.Logger) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: rm,
		validator:   v,
		evidence:    ev,
		log:         log.With("module", "records"),
		now:         time.Now,
	}
}

// SequenceKey is the counter a record number is minted from, e.g. CAPA-2026.
func SequenceKey(t records.EntityType, year int) string {
	return fmt.Sprintf("%s-%d", t.NumberPrefix(), year)
}

// RecordNumber formats the n-th number of a sequence, e.g. CAPA-2026-0007.
func RecordNumber(t records.EntityType, year int, n int64) string {
	return fmt.Sprintf("%s-%04d", SequenceKey(t, year), n)
}

// Create stores a new record in its type's initial state under a freshly
// minted record number.
func (s *RecordService) Create(ctx context.Context, in CreateRecordInput) (*models.Record, error) {
	t, err := records.ParseEntityType(in.EntityType)
	if err != nil {
		return nil, err
	}
	if in.ActorID == "" {
		return nil, common.NewValidationError("actorId", "is required")
	}
	fields, err := records.MergeFields(t, nil, in.Fields)
	if err != nil {
		return nil, err
	}
	initial, err := s.validator.InitialState(t)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var out *models.Record
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Sequences(tx).Next(ctx, SequenceKey(t, now.Year()))
		if err != nil {
			return err
		}

		rec, err := s.repomanager.Records(tx).Create(ctx, &models.Record{
			EntityType:    string(t),
			RecordNumber:  RecordNumber(t, now.Year(), n),
			State:         initial,
			Fields:        fields,
			RecordVersion: 1,
			CreatedBy:     in.ActorID,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}

		l := &loaded{row: rec, entity: t}
		h := newHistory(l, models.ActionCreated, in.ActorID, "", now)
		h.ToState = &initial
		h.Details = details(map[string]any{"recordNumber": rec.RecordNumber})
		if err := s.repomanager.History(tx).Append(ctx, h); err != nil {
			return err
		}

		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "record created", "entity_type", out.EntityType, "entity", out.ID, "number", out.RecordNumber)
	return out, nil
}

func (s *RecordService) Get(ctx context.Context, entityType, entityID string) (*models.Record, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return l.row, nil
}

// List returns the records of a type, optionally only those in state.
func (s *RecordService) List(ctx context.Context, entityType, state string) ([]*models.Record, error) {
	t, err := records.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Records(s.db).List(ctx, string(t), strings.ToUpper(strings.TrimSpace(state)))
}

// Update merges a field patch into the record. Editing a signed record is
// allowed; it is what makes earlier signatures stale.
func (s *RecordService) Update(ctx context.Context, in UpdateRecordInput) (*models.Record, error) {
	if in.ActorID == "" {
		return nil, common.NewValidationError("actorId", "is required")
	}
	keys, err := patchKeys(in.Fields)
	if err != nil {
		return nil, err
	}

	var out *models.Record
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}

		merged, err := records.MergeFields(l.entity, l.row.Fields, in.Fields)
		if err != nil {
			return err
		}
		if err := checkVersionOrder(l, merged); err != nil {
			return err
		}
		expected := in.ExpectedVersion
		if expected == 0 {
			expected = l.row.RecordVersion
		}
		if expected != l.row.RecordVersion {
			return fmt.Errorf("%s %s is at version %d, not %d: %w",
				l.entity, l.row.ID, l.row.RecordVersion, expected, common.ErrVersionConflict)
		}

		now := s.now().UTC()
		rec, err := s.repomanager.Records(tx).UpdateFields(ctx, l.row.ID, merged, expected, now)
		if err != nil {
			return err
		}

		h := newHistory(l, models.ActionUpdated, in.ActorID, "", now)
		h.Details = details(map[string]any{"fields": keys, "recordVersion": rec.RecordVersion})
		if err := s.repomanager.History(tx).Append(ctx, h); err != nil {
			return err
		}

		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkVersionOrder refuses a patch that would lower the version an external
// signer sees, such as a document revision going from 3.2 back to 1.0.
func checkVersionOrder(l *loaded, merged json.RawMessage) error {
	env := envelope(l.row)
	env.Fields = merged
	next, err := records.Decode(env)
	if err != nil {
		return err
	}
	if before, after := l.signable.RecordVersion(), next.RecordVersion(); after < before {
		return common.NewValidationError("fields",
			fmt.Sprintf("would lower the record version from %d to %d", before, after))
	}
	return nil
}

func patchKeys(patch json.RawMessage) ([]string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(patch, &m); err != nil || len(m) == 0 {
		return nil, common.NewValidationError("fields", "must be a non-empty JSON object")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// History returns the audit trail of the record, oldest first.
func (s *RecordService) History(ctx context.Context, entityType, entityID string) ([]*models.HistoryEntry, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.History(s.db).ListByEntity(ctx, l.row.ID)
}

func (s *RecordService) AddTask(ctx context.Context, in AddTaskInput) (*models.Task, error) {
	kind, err := workflow.ParseTaskKind(in.Kind)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, common.NewValidationError("title", "is required")
	}

	var out *models.Task
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		task := &models.Task{ID: uuid.NewString(), EntityID: l.row.ID, Kind: string(kind), Title: title, CreatedAt: now}
		if err := s.repomanager.Tasks(tx).Create(ctx, task); err != nil {
			return err
		}

		h := newHistory(l, models.ActionTaskAdded, in.ActorID, "", now)
		h.Details = details(map[string]any{"taskId": task.ID, "kind": task.Kind, "title": task.Title})
		if err := s.repomanager.History(tx).Append(ctx, h); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteTask marks an open task done. Completing it twice is NotFound.
func (s *RecordService) CompleteTask(ctx context.Context, entityType, entityID, taskID, actorID string) error {
	if _, err := uuid.Parse(taskID); err != nil {
		return fmt.Errorf("task %q: %w", taskID, common.ErrorNotFound)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, entityType, entityID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.repomanager.Tasks(tx).Complete(ctx, l.row.ID, taskID, now); err != nil {
			return err
		}

		h := newHistory(l, models.ActionTaskCompleted, actorID, "", now)
		h.Details = details(map[string]any{"taskId": taskID})
		return s.repomanager.History(tx).Append(ctx, h)
	})
}

func (s *RecordService) Tasks(ctx context.Context, entityType, entityID string) ([]*models.Task, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Tasks(s.db).ListByEntity(ctx, l.row.ID)
}

// RecordWaiver stores the justification for skipping a CAPA effectiveness
// check, replacing any earlier one.
func (s *RecordService) RecordWaiver(ctx context.Context, entityType, entityID, justification, actorID string) (*models.Waiver, error) {
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return nil, common.NewValidationError("justification", "is required")
	}

	var out *models.Waiver
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, entityType, entityID)
		if err != nil {
			return err
		}
		if l.entity != records.TypeCorrectiveAction {
			return common.NewValidationError("entityType", fmt.Sprintf("%s records take no effectiveness waiver", l.entity))
		}

		now := s.now().UTC()
		w := &models.Waiver{EntityID: l.row.ID, Justification: justification, ActorID: actorID, CreatedAt: now}
		if err := s.repomanager.Waivers(tx).Upsert(ctx, w); err != nil {
			return err
		}

		h := newHistory(l, models.ActionWaiverRecorded, actorID, justification, now)
		if err := s.repomanager.History(tx).Append(ctx, h); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddAttachment registers a file against the record. When object storage is
// configured the returned URL accepts the upload with a PUT.
func (s *RecordService) AddAttachment(ctx context.Context, in AddAttachmentInput) (*models.Attachment, string, error) {
	kind := strings.ToUpper(strings.TrimSpace(in.Kind))
	if kind == "" {
		return nil, "", common.NewValidationError("kind", "is required")
	}
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return nil, "", common.NewValidationError("fileName", "is required")
	}

	var out *models.Attachment
	var uploadURL string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		a := &models.Attachment{
			ID:         uuid.NewString(),
			EntityID:   l.row.ID,
			Kind:       kind,
			FileName:   name,
			StorageKey: evidence.NewStorageKey(l.row.ID, now),
			CreatedAt:  now,
		}
		if s.evidence != nil && s.evidence.Enabled() {
			if uploadURL, err = s.evidence.PresignPut(ctx, a.StorageKey); err != nil {
				return fmt.Errorf("presign upload: %w", err)
			}
		}
		if err := s.repomanager.Attachments(tx).Create(ctx, a); err != nil {
			return err
		}

		h := newHistory(l, models.ActionAttachmentAdded, in.ActorID, "", now)
		h.Details = details(map[string]any{"attachmentId": a.ID, "kind": a.Kind, "fileName": a.FileName})
		if err := s.repomanager.History(tx).Append(ctx, h); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, uploadURL, nil
}

func (s *RecordService) Attachments(ctx context.Context, entityType, entityID string) ([]*models.Attachment, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Attachments(s.db).ListByEntity(ctx, l.row.ID)
}
