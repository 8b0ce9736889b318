package httpapi

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/services"
	"github.com/dmitrijs2005/gophqms/internal/signature"
)

type recordDTO struct {
	ID            string          `json:"id"`
	EntityType    string          `json:"entityType"`
	RecordNumber  string          `json:"recordNumber"`
	State         string          `json:"state"`
	Fields        json.RawMessage `json:"fields"`
	RecordVersion int64           `json:"recordVersion"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty"`
	FinalizedAt   *time.Time      `json:"finalizedAt,omitempty"`
	CreatedBy     string          `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toRecord(r *models.Record) recordDTO {
	return recordDTO{
		ID:            r.ID,
		EntityType:    r.EntityType,
		RecordNumber:  r.RecordNumber,
		State:         r.State,
		Fields:        r.Fields,
		RecordVersion: r.RecordVersion,
		ClosedAt:      r.ClosedAt,
		FinalizedAt:   r.FinalizedAt,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type historyDTO struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	FromState *string         `json:"fromState,omitempty"`
	ToState   *string         `json:"toState,omitempty"`
	ActorID   string          `json:"actorId"`
	Reason    string          `json:"reason,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toHistory(h *models.HistoryEntry) historyDTO {
	return historyDTO{
		ID:        h.ID,
		Action:    h.Action,
		FromState: h.FromState,
		ToState:   h.ToState,
		ActorID:   h.ActorID,
		Reason:    h.Reason,
		Details:   h.Details,
		CreatedAt: h.CreatedAt,
	}
}

type canonicalDTO struct {
	EntityType    string `json:"entityType"`
	EntityID      string `json:"entityId"`
	RecordVersion int64  `json:"recordVersion"`
	Hash          string `json:"hash"`
	Canonical     string `json:"canonical"`
}

type submitArtifactRequest struct {
	RecordVersion int64     `json:"recordVersion"`
	QMSHash       string    `json:"qmsHash"`
	Signature     string    `json:"signature"`
	SignedAt      time.Time `json:"signedAt"`
	CorrelationID string    `json:"correlationId"`
}

type artifactDTO struct {
	ID                 string     `json:"id"`
	EntityType         string     `json:"entityType"`
	EntityID           string     `json:"entityId"`
	RecordVersion      int64      `json:"recordVersion"`
	QMSHash            string     `json:"qmsHash"`
	Signature          []byte     `json:"signature"`
	SignedAt           time.Time  `json:"signedAt"`
	RequestID          *string    `json:"requestId,omitempty"`
	SubmittedBy        string     `json:"submittedBy"`
	VerificationStatus *string    `json:"verificationStatus,omitempty"`
	VerificationReason *string    `json:"verificationReason,omitempty"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func toArtifact(a *models.SignatureArtifact) *artifactDTO {
	if a == nil {
		return nil
	}
	return &artifactDTO{
		ID:                 a.ID,
		EntityType:         a.EntityType,
		EntityID:           a.EntityID,
		RecordVersion:      a.RecordVersion,
		QMSHash:            a.QMSHash,
		Signature:          a.Signature,
		SignedAt:           a.SignedAt,
		RequestID:          a.RequestID,
		SubmittedBy:        a.SubmittedBy,
		VerificationStatus: a.VerificationStatus,
		VerificationReason: a.VerificationReason,
		VerifiedAt:         a.VerifiedAt,
		CreatedAt:          a.CreatedAt,
	}
}

type verificationDTO struct {
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	VerifiedAt  time.Time `json:"verifiedAt"`
	CurrentHash string    `json:"currentHash,omitempty"`
}

func toVerification(r *signature.Result) *verificationDTO {
	if r == nil {
		return nil
	}
	return &verificationDTO{Status: string(r.Status), Reason: r.Reason, VerifiedAt: r.VerifiedAt, CurrentHash: r.CurrentHash}
}

type artifactResultDTO struct {
	Artifact     *artifactDTO     `json:"artifact"`
	Verification *verificationDTO `json:"verification"`
}

type approvalStatusDTO struct {
	EntityType   string           `json:"entityType"`
	EntityID     string           `json:"entityId"`
	CurrentHash  string           `json:"currentHash"`
	Artifact     *artifactDTO     `json:"artifact"`
	Verification *verificationDTO `json:"verification"`
}

func toApprovalStatus(st *services.ApprovalStatus) approvalStatusDTO {
	return approvalStatusDTO{
		EntityType:   string(st.EntityType),
		EntityID:     st.EntityID,
		CurrentHash:  st.CurrentHash,
		Artifact:     toArtifact(st.Artifact),
		Verification: toVerification(st.Verification),
	}
}

type createRequestRequest struct {
	RecordVersion *int64 `json:"recordVersion"`
	ExpectedHash  string `json:"expectedHash"`
	CorrelationID string `json:"correlationId"`
	Notes         string `json:"notes"`
}

type markSignedRequest struct {
	ArtifactID string `json:"artifactId"`
}

type signatureRequestDTO struct {
	ID            string     `json:"id"`
	EntityType    string     `json:"entityType"`
	EntityID      string     `json:"entityId"`
	RecordVersion int64      `json:"recordVersion"`
	ExpectedHash  string     `json:"expectedHash"`
	Status        string     `json:"status"`
	RequestedAt   time.Time  `json:"requestedAt"`
	RequestedBy   string     `json:"requestedBy"`
	CorrelationID *string    `json:"correlationId,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	ArtifactID    *string    `json:"artifactId,omitempty"`
	SignedAt      *time.Time `json:"signedAt,omitempty"`
}

func toSignatureRequest(r *models.SignatureRequest) signatureRequestDTO {
	return signatureRequestDTO{
		ID:            r.ID,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		RecordVersion: r.RecordVersion,
		ExpectedHash:  r.ExpectedHash,
		Status:        r.Status,
		RequestedAt:   r.RequestedAt,
		RequestedBy:   r.RequestedBy,
		CorrelationID: r.CorrelationID,
		Notes:         r.Notes,
		ArtifactID:    r.ArtifactID,
		SignedAt:      r.SignedAt,
	}
}

type transitionRequest struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type esignRequest struct {
	Meaning  string `json:"meaning"`
	Password string `json:"password"`
	Reason   string `json:"reason"`
}

type localSignatureDTO struct {
	ID                  string    `json:"id"`
	EntityType          string    `json:"entityType"`
	EntityID            string    `json:"entityId"`
	SignerID            string    `json:"signerId"`
	Meaning             string    `json:"meaning"`
	PriorState          string    `json:"priorState"`
	TargetState         string    `json:"targetState"`
	SignedAt            time.Time `json:"signedAt"`
	RecordHashAtSigning string    `json:"recordHashAtSigning"`
	SignatureHash       string    `json:"signatureHash"`
}

func toLocalSignature(s *models.LocalSignature) localSignatureDTO {
	return localSignatureDTO{
		ID:                  s.ID,
		EntityType:          s.EntityType,
		EntityID:            s.EntityID,
		SignerID:            s.SignerID,
		Meaning:             s.Meaning,
		PriorState:          s.PriorState,
		TargetState:         s.TargetState,
		SignedAt:            s.SignedAt,
		RecordHashAtSigning: s.RecordHashAtSigning,
		SignatureHash:       s.SignatureHash,
	}
}

type esignResponse struct {
	Signature localSignatureDTO `json:"signature"`
	Record    recordDTO         `json:"record"`
}

type recordFieldsRequest struct {
	Fields          json.RawMessage `json:"fields"`
	ExpectedVersion int64           `json:"expectedVersion"`
}

type taskRequest struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

type waiverRequest struct {
	Justification string `json:"justification"`
}

type attachmentRequest struct {
	Kind     string `json:"kind"`
	FileName string `json:"fileName"`
}

type attachmentDTO struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	FileName   string    `json:"fileName"`
	StorageKey string    `json:"storageKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toAttachment(a *models.Attachment) attachmentDTO {
	return attachmentDTO{ID: a.ID, Kind: a.Kind, FileName: a.FileName, StorageKey: a.StorageKey, CreatedAt: a.CreatedAt}
}

type attachmentResponse struct {
	Attachment attachmentDTO `json:"attachment"`
	UploadURL  string        `json:"uploadUrl,omitempty"`
}

type taskDTO struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toTask(t *models.Task) taskDTO {
	return taskDTO{ID: t.ID, Kind: t.Kind, Title: t.Title, Completed: t.Completed, CompletedAt: t.CompletedAt, CreatedAt: t.CreatedAt}
}

type waiverDTO struct {
	Justification string    `json:"justification"`
	ActorID       string    `json:"actorId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

func mapSlice[T any, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
