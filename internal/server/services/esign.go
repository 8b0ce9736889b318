package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/cryptox"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/digest"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/records"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophqms/internal/workflow"
	"github.com/google/uuid"
)

// EsignInput is a gated action: the actor re-enters their password to sign
// the record with the given meaning.
type EsignInput struct {
	EntityType string
	EntityID   string
	Meaning    string
	ActorID    string
	Password   []byte
	Reason     string
}

// EsignResult is the local signature and the record after its transition.
type EsignResult struct {
	Signature *models.LocalSignature
	Record    *models.Record
}

// EsignService performs e-signed transitions.
type EsignService struct {
	db *sql.DB
	transitioner
	log logging.Logger
	now Clock
}

func NewEsignService(db *sql.DB, rm repomanager.RepositoryManager, v *workflow.Validator, ev EvidenceStore, log logging.Logger) *EsignService {
	return &EsignService{
		db:           db,
		transitioner: transitioner{repomanager: rm, validator: v, evidence: ev},
		log:          log.With("module", "esign"),
		now:          time.Now,
	}
}

// SigningHashes returns recordHashAtSigning and signatureHash for a signature
// taken at signedAt over a record whose content hash is contentHash.
func SigningHashes(sig *models.LocalSignature, contentHash string) (string, string, error) {
	recordHash, _, err := digest.SumObject(map[string]any{
		"entityId":    sig.EntityID,
		"entityType":  sig.EntityType,
		"priorState":  sig.PriorState,
		"targetState": sig.TargetState,
		"action":      sig.Meaning,
		"timestamp":   sig.SignedAt,
		"contentHash": contentHash,
	})
	if err != nil {
		return "", "", err
	}
	sigHash, _, err := digest.SumObject(map[string]any{
		"signerId":            sig.SignerID,
		"meaning":             sig.Meaning,
		"recordHashAtSigning": recordHash,
		"signedAt":            sig.SignedAt,
	})
	if err != nil {
		return "", "", err
	}
	return recordHash, sigHash, nil
}

// Sign re-verifies the actor's password and, in one transaction, writes the
// local signature, moves the record along the gated edge and appends
// history. Any failure leaves none of the three behind.
func (s *EsignService) Sign(ctx context.Context, in EsignInput) (*EsignResult, error) {
	defer common.WipeByteArray(in.Password)

	meaning, err := workflow.ParseMeaning(in.Meaning)
	if err != nil {
		return nil, err
	}

	// cheap checks first so a wrong state never costs a key derivation
	l, err := loadRecord(ctx, s.repomanager, s.db, in.EntityType, in.EntityID)
	if err != nil {
		return nil, err
	}
	if _, err := s.validator.ResolveGate(l.entity, l.row.State, meaning); err != nil {
		return nil, err
	}

	if err := s.checkCredential(ctx, in.ActorID, in.Password); err != nil {
		return nil, err
	}

	var out *EsignResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}
		edge, err := s.validator.ResolveGate(l.entity, l.row.State, meaning)
		if err != nil {
			return err
		}

		wctx, err := s.preconditionContext(ctx, tx, l)
		if err != nil {
			return err
		}
		if err := s.validator.AssertEdgePrecondition(l.entity, edge, wctx); err != nil {
			return err
		}

		contentHash, _, err := records.Sum(l.signable)
		if err != nil {
			return fmt.Errorf("canonicalize %s %s: %w", l.entity, l.row.ID, err)
		}

		at := s.now().UTC().Truncate(time.Millisecond)
		sig := &models.LocalSignature{
			ID:          uuid.NewString(),
			EntityType:  string(l.entity),
			EntityID:    l.row.ID,
			SignerID:    in.ActorID,
			Meaning:     string(meaning),
			PriorState:  edge.From,
			TargetState: edge.To,
			SignedAt:    at,
		}
		if sig.RecordHashAtSigning, sig.SignatureHash, err = SigningHashes(sig, contentHash); err != nil {
			return err
		}
		if err := s.repomanager.LocalSignatures(tx).Create(ctx, sig); err != nil {
			return err
		}

		h := newHistory(l, models.ActionESigned, in.ActorID, strings.TrimSpace(in.Reason), at)
		h.Details = details(map[string]any{
			"signatureId":         sig.ID,
			"meaning":             sig.Meaning,
			"recordHashAtSigning": sig.RecordHashAtSigning,
		})
		rec, err := s.commit(ctx, tx, l, edge.To, at, h)
		if err != nil {
			return err
		}

		out = &EsignResult{Signature: sig, Record: rec}
		return nil
	})
	if err != nil {
		if isStateConflict(err) {
			s.log.Info(ctx, "e-sign rejected", "entity_type", in.EntityType, "entity", in.EntityID, "meaning", meaning, "error", err)
		}
		return nil, err
	}

	s.log.Info(ctx, "e-sign committed",
		"entity_type", out.Record.EntityType,
		"entity", out.Record.ID,
		"meaning", meaning,
		"state", out.Record.State,
		"signature", out.Signature.ID,
	)
	return out, nil
}

// checkCredential fails closed: an unknown actor, an empty password or a
// credential that cannot be checked are all rejections.
func (s *EsignService) checkCredential(ctx context.Context, actorID string, password []byte) error {
	if len(password) == 0 {
		return fmt.Errorf("%w: password is required", common.ErrCredentialRejected)
	}
	if _, err := uuid.Parse(actorID); err != nil {
		return common.ErrCredentialRejected
	}

	actor, err := s.repomanager.Actors(s.db).GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrCredentialRejected
		}
		s.log.Error(ctx, "actor lookup failed", "actor", actorID, "error", err)
		return fmt.Errorf("%w: credential could not be checked", common.ErrCredentialRejected)
	}

	ok, err := cryptox.Check(cryptox.Credential{
		Scheme:   cryptox.Scheme(actor.Scheme),
		Salt:     actor.Salt,
		Verifier: actor.Verifier,
	}, password)
	if err != nil {
		s.log.Error(ctx, "credential check failed", "actor", actorID, "error", err)
		return fmt.Errorf("%w: credential could not be checked", common.ErrCredentialRejected)
	}
	if !ok {
		s.log.Info(ctx, "e-sign credential rejected", "actor", actorID)
		return common.ErrCredentialRejected
	}
	return nil
}

// ListSignatures returns the record's local signatures in signing order.
func (s *EsignService) ListSignatures(ctx context.Context, entityType, entityID string) ([]*models.LocalSignature, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.LocalSignatures(s.db).ListByEntity(ctx, l.row.ID)
}
