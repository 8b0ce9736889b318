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
	"github.com/dmitrijs2005/gophqms/internal/digest"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/records"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophqms/internal/signature"
	"github.com/google/uuid"
)

// CanonicalPayload is what an external signer signs.
type CanonicalPayload struct {
	EntityType    records.EntityType
	EntityID      string
	RecordVersion int64
	Hash          string
	Canonical     []byte
}

// SubmitArtifactInput is an externally produced signature over a record hash.
type SubmitArtifactInput struct {
	EntityType    string
	EntityID      string
	RecordVersion int64
	QMSHash       string
	Signature     []byte
	SignedAt      time.Time
	CorrelationID string
	SubmittedBy   string
}

// ArtifactResult is a stored artifact with the verification just derived for it.
type ArtifactResult struct {
	Artifact     *models.SignatureArtifact
	Verification signature.Result
}

// ApprovalStatus is the latest artifact of a record, re-verified against the
// record as it is now. Artifact and Verification are nil when nothing was
// ever submitted.
type ApprovalStatus struct {
	EntityType   records.EntityType
	EntityID     string
	CurrentHash  string
	Artifact     *models.SignatureArtifact
	Verification *signature.Result
}

// IntegrityService serves canonical payloads and accepts and re-verifies
// external signature artifacts.
type IntegrityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	verifier    *signature.Verifier
	log         logging.Logger
	now         Clock
}

func NewIntegrityService(db *sql.DB, rm repomanager.RepositoryManager, v *signature.Verifier, log logging.Logger) *IntegrityService {
	return &IntegrityService{
		db:          db,
		repomanager: rm,
		verifier:    v,
		log:         log.With("module", "integrity"),
		now:         time.Now,
	}
}

// CanonicalPayload returns the canonical bytes and hash of the live record.
func (s *IntegrityService) CanonicalPayload(ctx context.Context, entityType, entityID string) (*CanonicalPayload, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	hash, canonical, err := records.Sum(l.signable)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s %s: %w", l.entity, l.row.ID, err)
	}
	return &CanonicalPayload{
		EntityType:    l.entity,
		EntityID:      l.row.ID,
		RecordVersion: l.signable.RecordVersion(),
		Hash:          hash,
		Canonical:     canonical,
	}, nil
}

func validateArtifact(in SubmitArtifactInput) error {
	if strings.TrimSpace(in.QMSHash) == "" {
		return common.NewValidationError("qmsHash", "is required")
	}
	if len(in.Signature) == 0 {
		return common.NewValidationError("signature", "is required")
	}
	if in.SignedAt.IsZero() {
		return common.NewValidationError("signedAt", "is required")
	}
	if in.RecordVersion < 0 {
		return common.NewValidationError("recordVersion", "must not be negative")
	}
	if in.SubmittedBy == "" {
		return common.NewValidationError("submittedBy", "is required")
	}
	return nil
}

// SubmitArtifact stores an external signature, verifies it immediately and
// caches the result on the artifact. When a correlation id is given the
// artifact is linked to that request, and the request is marked SIGNED in
// the same transaction only if the claimed hash equals its expected hash.
// A request answered with another hash stays PENDING.
func (s *IntegrityService) SubmitArtifact(ctx context.Context, in SubmitArtifactInput) (*ArtifactResult, error) {
	if err := validateArtifact(in); err != nil {
		return nil, err
	}

	var out *ArtifactResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		l, err := loadRecord(ctx, s.repomanager, tx, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}

		claimed := strings.ToLower(strings.TrimSpace(in.QMSHash))
		res, err := s.verifier.Verify(signature.Artifact{QMSHash: claimed, Signature: in.Signature}, l.signable)
		if err != nil {
			return fmt.Errorf("verify %s %s: %w", l.entity, l.row.ID, err)
		}

		version := in.RecordVersion
		if version == 0 {
			version = l.signable.RecordVersion()
		}

		status := string(res.Status)
		verifiedAt := res.VerifiedAt
		a := &models.SignatureArtifact{
			ID:                 uuid.NewString(),
			EntityType:         string(l.entity),
			EntityID:           l.row.ID,
			RecordVersion:      version,
			QMSHash:            claimed,
			Signature:          in.Signature,
			SignedAt:           in.SignedAt.UTC(),
			SubmittedBy:        in.SubmittedBy,
			VerificationStatus: &status,
			VerificationReason: strPtr(res.Reason),
			VerifiedAt:         &verifiedAt,
			CreatedAt:          s.now().UTC(),
		}

		var req *models.SignatureRequest
		if in.CorrelationID != "" {
			req, err = s.repomanager.SignatureRequests(tx).FindByCorrelation(ctx, l.row.ID, in.CorrelationID)
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return fmt.Errorf("signature request %q: %w", in.CorrelationID, common.ErrorNotFound)
				}
				return err
			}
			a.RequestID = &req.ID
		}

		if err := s.repomanager.Artifacts(tx).Create(ctx, a); err != nil {
			return err
		}
		requestSigned := false
		if req != nil {
			if digest.Equal(claimed, req.ExpectedHash) {
				if err := s.repomanager.SignatureRequests(tx).MarkSigned(ctx, req.ID, a.ID, a.CreatedAt); err != nil {
					return err
				}
				requestSigned = true
			} else {
				s.log.Warn(ctx, "artifact hash differs from signature request, request left pending",
					"request", req.ID, "artifact", a.ID, "expected", req.ExpectedHash, "claimed", claimed)
			}
		}

		h := newHistory(l, models.ActionArtifactSubmitted, in.SubmittedBy, "", a.CreatedAt)
		h.Details = details(map[string]any{
			"artifactId":         a.ID,
			"qmsHash":            a.QMSHash,
			"verificationStatus": status,
			"correlationId":      in.CorrelationID,
			"requestSigned":      requestSigned,
		})
		if err := s.repomanager.History(tx).Append(ctx, h); err != nil {
			return err
		}

		out = &ArtifactResult{Artifact: a, Verification: res}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logFinding(ctx, out.Artifact, out.Verification)
	return out, nil
}

// ApprovalStatus re-verifies the most recent artifact against the live
// record. The stored status is rewritten only when the fresh one differs.
func (s *IntegrityService) ApprovalStatus(ctx context.Context, entityType, entityID string) (*ApprovalStatus, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	hash, _, err := records.Sum(l.signable)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s %s: %w", l.entity, l.row.ID, err)
	}

	out := &ApprovalStatus{EntityType: l.entity, EntityID: l.row.ID, CurrentHash: hash}

	a, err := s.repomanager.Artifacts(s.db).GetLatest(ctx, l.row.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return out, nil
		}
		return nil, err
	}

	res, err := s.verifier.Verify(signature.Artifact{QMSHash: a.QMSHash, Signature: a.Signature}, l.signable)
	if err != nil {
		return nil, fmt.Errorf("verify %s %s: %w", l.entity, l.row.ID, err)
	}

	if stored := a.VerificationStatus; stored == nil || *stored != string(res.Status) || reasonOf(a) != res.Reason {
		changed, err := s.repomanager.Artifacts(s.db).UpdateVerification(ctx, a.ID, string(res.Status), res.Reason, res.VerifiedAt)
		if err != nil {
			s.log.Error(ctx, "failed to cache verification result", "artifact", a.ID, "error", err)
			return nil, err
		}
		if changed {
			s.log.Info(ctx, "verification status changed", "artifact", a.ID, "from", derefOr(stored, ""), "to", res.Status)
			status, verifiedAt := string(res.Status), res.VerifiedAt
			a.VerificationStatus, a.VerificationReason, a.VerifiedAt = &status, strPtr(res.Reason), &verifiedAt
		}
	}

	s.logFinding(ctx, a, res)
	out.Artifact = a
	out.Verification = &res
	return out, nil
}

// ListArtifacts returns every artifact of a record, newest first.
func (s *IntegrityService) ListArtifacts(ctx context.Context, entityType, entityID string) ([]*models.SignatureArtifact, error) {
	l, err := loadRecord(ctx, s.repomanager, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Artifacts(s.db).ListByEntity(ctx, l.row.ID)
}

func (s *IntegrityService) logFinding(ctx context.Context, a *models.SignatureArtifact, res signature.Result) {
	if res.Status == signature.StatusVerified {
		return
	}
	s.log.Warn(ctx, "signature artifact did not verify",
		"entity_type", a.EntityType,
		"entity", a.EntityID,
		"artifact", a.ID,
		"status", res.Status,
		"reason", res.Reason,
	)
}

func reasonOf(a *models.SignatureArtifact) string {
	return derefOr(a.VerificationReason, "")
}

func derefOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
