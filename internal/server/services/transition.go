package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophqms/internal/workflow"
)

// transitioner holds what plain and e-signed transitions share: building the
// precondition context and committing the conditional state update.
type transitioner struct {
	repomanager repomanager.RepositoryManager
	validator   *workflow.Validator
	evidence    EvidenceStore
}

// preconditionContext loads the record's own child rows. Evidence objects are
// confirmed in object storage until the first one is found; without a
// configured store a registered attachment counts as present.
func (t *transitioner) preconditionContext(ctx context.Context, db dbx.DBTX, l *loaded) (*workflow.Context, error) {
	wctx := &workflow.Context{Record: l.signable}

	taskRows, err := t.repomanager.Tasks(db).ListByEntity(ctx, l.row.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range taskRows {
		wctx.Tasks = append(wctx.Tasks, workflow.Task{ID: r.ID, Kind: workflow.TaskKind(r.Kind), Completed: r.Completed})
	}

	w, err := t.repomanager.Waivers(db).Get(ctx, l.row.ID)
	switch {
	case err == nil:
		wctx.Waiver = &workflow.Waiver{Justification: w.Justification}
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	attRows, err := t.repomanager.Attachments(db).ListByEntity(ctx, l.row.ID)
	if err != nil {
		return nil, err
	}
	check := t.evidence != nil && t.evidence.Enabled()
	found := false
	for _, r := range attRows {
		a := workflow.Attachment{ID: r.ID, Kind: r.Kind, Present: !check}
		if check && !found && r.Kind == workflow.AttachmentEvidence {
			ok, err := t.evidence.Exists(ctx, r.StorageKey)
			if err != nil {
				return nil, fmt.Errorf("check evidence %s: %w", r.ID, err)
			}
			a.Present, found = ok, ok
		}
		wctx.Attachments = append(wctx.Attachments, a)
	}
	return wctx, nil
}

// commit moves the record out of the state it was loaded in and appends h.
// If another writer moved it first, the update matches no row and the
// caller gets an IllegalTransitionError built from the state that won.
func (t *transitioner) commit(ctx context.Context, db dbx.DBTX, l *loaded, to string, at time.Time, h *models.HistoryEntry) (*models.Record, error) {
	eff := t.validator.Effects(l.entity, to)
	repo := t.repomanager.Records(db)

	rec, err := repo.UpdateState(ctx, models.StateChange{
		ID:             l.row.ID,
		From:           l.row.State,
		To:             to,
		At:             at,
		SetClosedAt:    eff.SetClosedAt,
		SetFinalizedAt: eff.SetFinalizedAt,
	})
	if err != nil {
		if !errors.Is(err, common.ErrVersionConflict) {
			return nil, err
		}
		current, getErr := repo.GetByID(ctx, l.row.ID)
		if getErr != nil {
			return nil, getErr
		}
		allowed, _ := t.validator.AllowedTargets(l.entity, current.State)
		return nil, &workflow.IllegalTransitionError{Entity: l.entity, From: current.State, To: to, Allowed: allowed}
	}

	from := l.row.State
	h.FromState, h.ToState = &from, &to
	if err := t.repomanager.History(db).Append(ctx, h); err != nil {
		return nil, err
	}
	return rec, nil
}

// TransitionInput is a plain (not e-signed) workflow move. Reason is
// mandatory for the audit trail.
type TransitionInput struct {
	EntityType string
	EntityID   string
	To         string
	Reason     string
	ActorID    string
}

// WorkflowService applies plain workflow transitions.
type WorkflowService struct {
	db *sql.DB
	transitioner
	log logging.Logger
	now Clock
}

func NewWorkflowService(db *sql.DB, rm repomanager.RepositoryManager, v *workflow.Validator, ev EvidenceStore, log logging.Logger) *WorkflowService {
	return &WorkflowService{
		db:           db,
		transitioner: transitioner{repomanager: rm, validator: v, evidence: ev},
		log:          log.With("module", "workflow"),
		now:          time.Now,
	}
}

// Transition validates and commits one move. The state update and its
// history row commit together or not at all.
func (s *WorkflowService) Transition(ctx context.Context, in TransitionInput) (*models.Record, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, common.NewValidationError("reason", "is required")
	}
	to := strings.ToUpper(strings.TrimSpace(in.To))
	if to == "" {
		return nil, common.NewValidationError("to", "is required")
	}
	if in.ActorID == "" {
		return nil, common.NewValidationError("actorId", "is required")
	}

	var out *models.Record
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}
		if err := s.validator.CheckTransition(l.entity, l.row.State, to); err != nil {
			return err
		}

		wctx, err := s.preconditionContext(ctx, tx, l)
		if err != nil {
			return err
		}
		if err := s.validator.ValidatePlain(l.entity, l.row.State, to, wctx); err != nil {
			return err
		}

		at := s.now().UTC()
		h := newHistory(l, models.ActionTransitioned, in.ActorID, strings.TrimSpace(in.Reason), at)
		out, err = s.commit(ctx, tx, l, to, at, h)
		return err
	})
	if err != nil {
		if isStateConflict(err) {
			s.log.Info(ctx, "transition rejected", "entity_type", in.EntityType, "entity", in.EntityID, "to", to, "error", err)
		}
		return nil, err
	}

	s.log.Info(ctx, "transition committed", "entity_type", out.EntityType, "entity", out.ID, "state", out.State)
	return out, nil
}

// AllowedTargets lists the legal next states of the record as it is now.
func (s *WorkflowService) AllowedTargets(ctx context.Context, entityType, entityID string) ([]string, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.validator.AllowedTargets(l.entity, l.row.State)
}

func isStateConflict(err error) bool {
	return errors.Is(err, common.ErrIllegalTransition) ||
		errors.Is(err, common.ErrPreconditionNotMet) ||
		errors.Is(err, common.ErrAlreadyInTargetState)
}
