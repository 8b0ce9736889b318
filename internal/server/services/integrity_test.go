package services

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/digest"
	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/signature"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPayload(t *testing.T) {
	e := newTestEnv(t)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)

	p, err := svc.CanonicalPayload(context.Background(), "capa", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, digest.Digest(p.Canonical), p.Hash)
	assert.Equal(t, rec.UpdatedAt.UnixMilli(), p.RecordVersion)
	assert.Contains(t, string(p.Canonical), `"title":"Burr on housing"`)

	again, err := svc.CanonicalPayload(context.Background(), "CAPA", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Hash, again.Hash)
	assert.Equal(t, p.Canonical, again.Canonical)
}

func TestCanonicalPayload_Lookups(t *testing.T) {
	e := newTestEnv(t)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)

	_, err := svc.CanonicalPayload(context.Background(), "INVOICE", rec.ID)
	assert.ErrorIs(t, err, common.ErrUnknownEntityType)

	_, err = svc.CanonicalPayload(context.Background(), "CAPA", uuid.NewString())
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.CanonicalPayload(context.Background(), "CAPA", "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.CanonicalPayload(context.Background(), "DOCUMENT", rec.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

// signCurrent signs the record's current canonical payload.
func signCurrent(t *testing.T, e *testEnv, svc *IntegrityService, entityType, id string) (string, []byte) {
	t.Helper()
	p, err := svc.CanonicalPayload(context.Background(), entityType, id)
	require.NoError(t, err)
	return p.Hash, ed25519.Sign(e.priv, p.Canonical)
}

func TestSubmitArtifact_VerifiesAndSignsRequest(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 2, 0)
	rec := e.s.addRecord("CAPA", "PLAN_APPROVAL", capaFields)
	svc := e.integrity(e.keys)

	req, err := e.ledger().CreateRequest(context.Background(), CreateRequestInput{
		EntityType: "CAPA", EntityID: rec.ID, CorrelationID: "gov-7", RequestedBy: "qa",
	})
	require.NoError(t, err)

	hash, sig := signCurrent(t, e, svc, "CAPA", rec.ID)
	assert.Equal(t, req.ExpectedHash, hash)

	res, err := svc.SubmitArtifact(context.Background(), SubmitArtifactInput{
		EntityType:    "CAPA",
		EntityID:      rec.ID,
		QMSHash:       strings.ToUpper(hash),
		Signature:     sig,
		SignedAt:      testNow,
		CorrelationID: "gov-7",
		SubmittedBy:   "governance",
	})
	require.NoError(t, err)
	assert.Equal(t, signature.StatusVerified, res.Verification.Status)
	assert.Equal(t, hash, res.Artifact.QMSHash)
	require.NotNil(t, res.Artifact.RequestID)
	assert.Equal(t, req.ID, *res.Artifact.RequestID)
	assert.Equal(t, rec.UpdatedAt.UnixMilli(), res.Artifact.RecordVersion)
	require.NotNil(t, res.Artifact.VerificationStatus)
	assert.Equal(t, "VERIFIED", *res.Artifact.VerificationStatus)

	stored, err := e.rm.SignatureRequests(nil).GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestSigned, stored.Status)
	require.NotNil(t, stored.ArtifactID)
	assert.Equal(t, res.Artifact.ID, *stored.ArtifactID)

	assert.Equal(t, []string{models.ActionSignatureRequest, models.ActionArtifactSubmitted}, e.s.actions(rec.ID))
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestSubmitArtifact_HashMismatchLeavesRequestPending(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 2, 0)
	rec := e.s.addRecord("CAPA", "PLAN_APPROVAL", capaFields)
	svc := e.integrity(e.keys)

	req, err := e.ledger().CreateRequest(context.Background(), CreateRequestInput{
		EntityType: "CAPA", EntityID: rec.ID, CorrelationID: "gov-8", RequestedBy: "qa",
	})
	require.NoError(t, err)

	res, err := svc.SubmitArtifact(context.Background(), SubmitArtifactInput{
		EntityType: "CAPA", EntityID: rec.ID, QMSHash: strings.Repeat("0", 64),
		Signature: []byte("sig"), SignedAt: testNow, CorrelationID: "gov-8", SubmittedBy: "governance",
	})
	require.NoError(t, err)
	assert.Equal(t, signature.StatusStale, res.Verification.Status)
	require.NotNil(t, res.Artifact.RequestID)
	assert.Equal(t, req.ID, *res.Artifact.RequestID)

	stored, err := e.rm.SignatureRequests(nil).GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
	assert.Nil(t, stored.ArtifactID)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestSubmitArtifact_RequiredFields(t *testing.T) {
	e := newTestEnv(t)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)

	tests := []struct {
		name  string
		edit  func(in *SubmitArtifactInput)
		field string
	}{
		{"hash", func(in *SubmitArtifactInput) { in.QMSHash = " " }, "qmsHash"},
		{"signature", func(in *SubmitArtifactInput) { in.Signature = nil }, "signature"},
		{"signed at", func(in *SubmitArtifactInput) { in.SignedAt = time.Time{} }, "signedAt"},
		{"submitter", func(in *SubmitArtifactInput) { in.SubmittedBy = "" }, "submittedBy"},
		{"negative version", func(in *SubmitArtifactInput) { in.RecordVersion = -1 }, "recordVersion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := SubmitArtifactInput{
				EntityType:  "CAPA",
				EntityID:    rec.ID,
				QMSHash:     strings.Repeat("a", 64),
				Signature:   []byte{1},
				SignedAt:    testNow,
				SubmittedBy: "governance",
			}
			tt.edit(&in)

			_, err := svc.SubmitArtifact(context.Background(), in)
			var ve *common.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, e.s.artifacts)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestSubmitArtifact_UnknownCorrelation(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 0, 1)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)
	hash, sig := signCurrent(t, e, svc, "CAPA", rec.ID)

	_, err := svc.SubmitArtifact(context.Background(), SubmitArtifactInput{
		EntityType: "CAPA", EntityID: rec.ID, QMSHash: hash, Signature: sig,
		SignedAt: testNow, CorrelationID: "nope", SubmittedBy: "governance",
	})
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, e.s.artifacts)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestSubmitArtifact_StoresNonVerifiedOutcome(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 1, 0)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)

	res, err := svc.SubmitArtifact(context.Background(), SubmitArtifactInput{
		EntityType: "CAPA", EntityID: rec.ID, QMSHash: strings.Repeat("0", 64),
		Signature: []byte("sig"), SignedAt: testNow, SubmittedBy: "governance",
	})
	require.NoError(t, err)
	assert.Equal(t, signature.StatusStale, res.Verification.Status)
	assert.Equal(t, signature.ReasonHashMismatch, res.Verification.Reason)
	require.Len(t, e.s.artifacts, 1)
	assert.Equal(t, "STALE", *e.s.artifacts[0].VerificationStatus)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestApprovalStatus_NoArtifact(t *testing.T) {
	e := newTestEnv(t)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)

	st, err := svc.ApprovalStatus(context.Background(), "CAPA", rec.ID)
	require.NoError(t, err)
	assert.Nil(t, st.Artifact)
	assert.Nil(t, st.Verification)
	assert.Len(t, st.CurrentHash, 64)
}

func TestApprovalStatus_StaleAfterEditAndBackAfterRestore(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 3, 0)
	rec := e.s.addRecord("CAPA", "PLAN_APPROVAL", capaFields)
	svc := e.integrity(e.keys)
	ctx := context.Background()

	hash, sig := signCurrent(t, e, svc, "CAPA", rec.ID)
	_, err := svc.SubmitArtifact(ctx, SubmitArtifactInput{
		EntityType: "CAPA", EntityID: rec.ID, QMSHash: hash, Signature: sig,
		SignedAt: testNow, SubmittedBy: "governance",
	})
	require.NoError(t, err)

	st, err := svc.ApprovalStatus(ctx, "CAPA", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, signature.StatusVerified, st.Verification.Status)
	assert.Equal(t, 0, e.s.verifyRuns)

	_, err = e.records().Update(ctx, UpdateRecordInput{
		EntityType: "CAPA", EntityID: rec.ID, ActorID: "qa",
		Fields: json.RawMessage(`{"title":"Burr on housing, rev B"}`),
	})
	require.NoError(t, err)

	st, err = svc.ApprovalStatus(ctx, "CAPA", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, signature.StatusStale, st.Verification.Status)
	assert.NotEqual(t, hash, st.CurrentHash)
	assert.Equal(t, "STALE", *st.Artifact.VerificationStatus)
	assert.Equal(t, 1, e.s.verifyRuns)

	_, err = e.records().Update(ctx, UpdateRecordInput{
		EntityType: "CAPA", EntityID: rec.ID, ActorID: "qa",
		Fields: json.RawMessage(`{"title":"Burr on housing"}`),
	})
	require.NoError(t, err)

	st, err = svc.ApprovalStatus(ctx, "CAPA", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, signature.StatusVerified, st.Verification.Status)
	assert.Equal(t, hash, st.CurrentHash)
	assert.Equal(t, 2, e.s.verifyRuns)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestApprovalStatus_RepeatedReadsDoNotRewrite(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 1, 0)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)
	hash, sig := signCurrent(t, e, svc, "CAPA", rec.ID)

	_, err := svc.SubmitArtifact(context.Background(), SubmitArtifactInput{
		EntityType: "CAPA", EntityID: rec.ID, QMSHash: hash, Signature: sig,
		SignedAt: testNow, SubmittedBy: "governance",
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		st, err := svc.ApprovalStatus(context.Background(), "CAPA", rec.ID)
		require.NoError(t, err)
		assert.Equal(t, signature.StatusVerified, st.Verification.Status)
	}
	assert.Equal(t, 0, e.s.verifyRuns)
}

func TestApprovalStatus_NoKeyFailsClosed(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 1, 0)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	signer := e.integrity(e.keys)
	hash, sig := signCurrent(t, e, signer, "CAPA", rec.ID)

	svc := e.integrity(signature.NoKey())
	res, err := svc.SubmitArtifact(context.Background(), SubmitArtifactInput{
		EntityType: "CAPA", EntityID: rec.ID, QMSHash: hash, Signature: sig,
		SignedAt: testNow, SubmittedBy: "governance",
	})
	require.NoError(t, err)
	assert.Equal(t, signature.StatusInvalid, res.Verification.Status)
	assert.Equal(t, signature.ReasonNoKey, res.Verification.Reason)

	st, err := svc.ApprovalStatus(context.Background(), "CAPA", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, signature.StatusInvalid, st.Verification.Status)
	assert.Equal(t, 0, e.s.verifyRuns)
}

func TestListArtifacts_NewestFirst(t *testing.T) {
	e := newTestEnv(t)
	expectTx(e.mock, 2, 0)
	rec := e.s.addRecord("CAPA", "OPEN", capaFields)
	svc := e.integrity(e.keys)
	hash, sig := signCurrent(t, e, svc, "CAPA", rec.ID)

	for _, at := range []time.Time{testNow.Add(-time.Hour), testNow} {
		_, err := svc.SubmitArtifact(context.Background(), SubmitArtifactInput{
			EntityType: "CAPA", EntityID: rec.ID, QMSHash: hash, Signature: sig,
			SignedAt: at, SubmittedBy: "governance",
		})
		require.NoError(t, err)
	}

	list, err := svc.ListArtifacts(context.Background(), "CAPA", rec.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].SignedAt.Equal(testNow))
}
