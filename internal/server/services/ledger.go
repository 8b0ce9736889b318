package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/dbx"
	"github.com/dmitrijs2005/gophqms/internal/digest"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/records"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// CreateRequestInput asks governance to sign a record. RecordVersion and
// ExpectedHash are computed from the live record when left empty.
type CreateRequestInput struct {
	EntityType    string
	EntityID      string
	RecordVersion *int64
	ExpectedHash  string
	CorrelationID string
	Notes         string
	RequestedBy   string
}

// LedgerService keeps the signature request ledger.
type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         Clock
}

func NewLedgerService(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *LedgerService {
	return &LedgerService{db: db, repomanager: rm, log: log.With("module", "ledger"), now: time.Now}
}

func validHash(h string) bool {
	if len(h) != 2*digest.Size {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// CreateRequest records a PENDING request for the record's current (or the
// explicitly given) hash.
func (s *LedgerService) CreateRequest(ctx context.Context, in CreateRequestInput) (*models.SignatureRequest, error) {
	if in.RequestedBy == "" {
		return nil, common.NewValidationError("requestedBy", "is required")
	}
	expected := strings.ToLower(strings.TrimSpace(in.ExpectedHash))
	if expected != "" && !validHash(expected) {
		return nil, common.NewValidationError("expectedHash", "must be a hex sha-256 digest")
	}
	if in.RecordVersion != nil && *in.RecordVersion < 0 {
		return nil, common.NewValidationError("recordVersion", "must not be negative")
	}

	var out *models.SignatureRequest
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}

		repo := s.repomanager.SignatureRequests(tx)
		if in.CorrelationID != "" {
			_, err := repo.FindByCorrelation(ctx, l.row.ID, in.CorrelationID)
			if err == nil {
				return common.NewValidationError("correlationId", fmt.Sprintf("%q is already used for this record", in.CorrelationID))
			}
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
		}

		if expected == "" {
			if expected, _, err = records.Sum(l.signable); err != nil {
				return fmt.Errorf("canonicalize %s %s: %w", l.entity, l.row.ID, err)
			}
		}
		version := l.signable.RecordVersion()
		if in.RecordVersion != nil {
			version = *in.RecordVersion
		}

		req := &models.SignatureRequest{
			ID:            uuid.NewString(),
			EntityType:    string(l.entity),
			EntityID:      l.row.ID,
			RecordVersion: version,
			ExpectedHash:  expected,
			Status:        models.RequestPending,
			RequestedAt:   s.now().UTC(),
			RequestedBy:   in.RequestedBy,
			CorrelationID: strPtr(in.CorrelationID),
			Notes:         strPtr(in.Notes),
		}
		if err := repo.Create(ctx, req); err != nil {
			return err
		}

		h := newHistory(l, models.ActionSignatureRequest, in.RequestedBy, in.Notes, req.RequestedAt)
		h.Details = details(map[string]any{"requestId": req.ID, "expectedHash": req.ExpectedHash, "recordVersion": version})
		if err := s.repomanager.History(tx).Append(ctx, h); err != nil {
			return err
		}

		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "signature requested", "entity_type", out.EntityType, "entity", out.EntityID, "request", out.ID)
	return out, nil
}

// MarkSigned moves a PENDING request to SIGNED once an artifact of the same
// record exists. There is no way back; a second call fails with
// common.ErrAlreadySigned.
func (s *LedgerService) MarkSigned(ctx context.Context, requestID, artifactID string) error {
	if _, err := uuid.Parse(requestID); err != nil {
		return fmt.Errorf("signature request %q: %w", requestID, common.ErrorNotFound)
	}
	if _, err := uuid.Parse(artifactID); err != nil {
		return fmt.Errorf("artifact %q: %w", artifactID, common.ErrorNotFound)
	}

	repo := s.repomanager.SignatureRequests(s.db)
	req, err := repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status == models.RequestSigned {
		return common.ErrAlreadySigned
	}

	a, err := s.repomanager.Artifacts(s.db).GetByID(ctx, artifactID)
	if err != nil {
		return err
	}
	if a.EntityID != req.EntityID {
		return common.NewValidationError("artifactId", "artifact belongs to another record")
	}

	// conditional on PENDING, so a concurrent signer gets ErrAlreadySigned
	if err := repo.MarkSigned(ctx, req.ID, a.ID, s.now().UTC()); err != nil {
		return err
	}
	s.log.Info(ctx, "signature request signed", "request", req.ID, "artifact", a.ID)
	return nil
}

// ListPending returns the record's PENDING requests, oldest first.
func (s *LedgerService) ListPending(ctx context.Context, entityType, entityID string) ([]*models.SignatureRequest, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.SignatureRequests(s.db).ListPending(ctx, l.row.ID)
}
