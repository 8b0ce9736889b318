// Package services contains the qmsctl application services: signing record
// payloads into the local journal, pushing the journal to the server, the
// login session and evidence uploads.
package services

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/client/client"
	"github.com/dmitrijs2005/gophqms/internal/client/models"
	"github.com/dmitrijs2005/gophqms/internal/client/repositories/journal"
	"github.com/dmitrijs2005/gophqms/internal/digest"
	"github.com/dmitrijs2005/gophqms/internal/signature"
	"github.com/google/uuid"
)

// ErrPayloadHashMismatch means the canonical bytes served for a record do not
// hash to the digest served with them. Nothing is signed in that case.
var ErrPayloadHashMismatch = errors.New("canonical payload does not match its hash")

// SignerService signs canonical record payloads with a local private key and
// keeps the signatures in the journal until Submit delivers them.
type SignerService struct {
	client  client.Client
	journal journal.Repository
	now     func() time.Time
}

func NewSignerService(c client.Client, j journal.Repository) *SignerService {
	return &SignerService{client: c, journal: j, now: time.Now}
}

// Sign fetches the record's canonical payload and journals a signature over
// it. correlationID names the signature request being answered and may be
// empty.
func (s *SignerService) Sign(ctx context.Context, entityType, entityID, correlationID string, key crypto.Signer) (*models.JournalEntry, error) {
	p, err := s.client.Canonical(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.SignPayload(ctx, p, correlationID, key)
}

// SignPayload journals a signature over an already fetched payload. The hash
// is recomputed first so a corrupted payload is never signed.
func (s *SignerService) SignPayload(ctx context.Context, p *client.CanonicalPayload, correlationID string, key crypto.Signer) (*models.JournalEntry, error) {
	canonical := []byte(p.Canonical)
	hash := digest.Digest(canonical)
	if !digest.Equal(hash, strings.ToLower(strings.TrimSpace(p.Hash))) {
		return nil, fmt.Errorf("%w: %s/%s", ErrPayloadHashMismatch, p.EntityType, p.EntityID)
	}

	sig, err := signature.Sign(key, canonical)
	if err != nil {
		return nil, err
	}
	kc, err := signature.KeyConfigFromPublicKey(key.Public())
	if err != nil {
		return nil, err
	}

	e := &models.JournalEntry{
		ID:             uuid.NewString(),
		EntityType:     p.EntityType,
		EntityID:       p.EntityID,
		RecordVersion:  p.RecordVersion,
		QMSHash:        hash,
		Signature:      sig,
		SignedAt:       s.now().UTC(),
		KeyFingerprint: kc.Fingerprint(),
	}
	if correlationID = strings.TrimSpace(correlationID); correlationID != "" {
		e.CorrelationID = &correlationID
	}
	if err := s.journal.Add(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SubmitReport summarizes one Submit pass.
type SubmitReport struct {
	Submitted []*models.JournalEntry
	Rejected  []*models.JournalEntry
	Remaining int
}

// Submit pushes PENDING journal entries to the server, oldest first.
// Entries the server refuses for good are marked REJECTED and skipped.
// Any other failure is remembered on the entry and stops the pass, leaving
// it and everything after it PENDING.
func (s *SignerService) Submit(ctx context.Context) (*SubmitReport, error) {
	pending, err := s.journal.Pending(ctx)
	if err != nil {
		return nil, err
	}

	report := &SubmitReport{}
	for i, e := range pending {
		res, err := s.client.SubmitArtifact(ctx, e.EntityType, e.EntityID, client.ArtifactSubmission{
			RecordVersion: e.RecordVersion,
			QMSHash:       e.QMSHash,
			Signature:     base64.StdEncoding.EncodeToString(e.Signature),
			SignedAt:      e.SignedAt,
			CorrelationID: derefString(e.CorrelationID),
		})
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Permanent() {
				reason := apiErr.Error()
				if err := s.journal.MarkRejected(ctx, e.ID, reason); err != nil {
					return report, err
				}
				e.Status, e.LastError = models.JournalRejected, &reason
				report.Rejected = append(report.Rejected, e)
				continue
			}

			report.Remaining = len(pending) - i
			if ctx.Err() == nil {
				if rerr := s.journal.RecordError(ctx, e.ID, err.Error()); rerr != nil {
					return report, errors.Join(err, rerr)
				}
			}
			return report, err
		}

		at := s.now().UTC()
		if err := s.journal.MarkSubmitted(ctx, e.ID, res.Artifact.ID, res.Verification.Status, at); err != nil {
			return report, err
		}
		artifactID, verification := res.Artifact.ID, res.Verification.Status
		e.Status, e.ArtifactID, e.Verification, e.SubmittedAt = models.JournalSubmitted, &artifactID, &verification, &at
		report.Submitted = append(report.Submitted, e)
	}
	return report, nil
}

// Journal lists the newest journal entries.
func (s *SignerService) Journal(ctx context.Context, limit int) ([]*models.JournalEntry, error) {
	return s.journal.List(ctx, limit)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
