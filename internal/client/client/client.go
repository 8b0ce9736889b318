package client

import (
	"context"
	"time"
)

// Client is the part of the QMS HTTP API qmsctl talks to.
type Client interface {
	SetAccessToken(token string)
	Login(ctx context.Context, userName string, password []byte) (string, error)
	Canonical(ctx context.Context, entityType, entityID string) (*CanonicalPayload, error)
	SubmitArtifact(ctx context.Context, entityType, entityID string, in ArtifactSubmission) (*SubmitResult, error)
	ApprovalStatus(ctx context.Context, entityType, entityID string) (*ApprovalStatus, error)
	Esign(ctx context.Context, entityType, entityID string, in EsignRequest) (*EsignResult, error)
	AddAttachment(ctx context.Context, entityType, entityID, kind, fileName string) (*Attachment, error)
}

type CanonicalPayload struct {
	EntityType    string `json:"entityType"`
	EntityID      string `json:"entityId"`
	RecordVersion int64  `json:"recordVersion"`
	Hash          string `json:"hash"`
	Canonical     string `json:"canonical"`
}

type ArtifactSubmission struct {
	RecordVersion int64     `json:"recordVersion"`
	QMSHash       string    `json:"qmsHash"`
	Signature     string    `json:"signature"`
	SignedAt      time.Time `json:"signedAt"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

type Artifact struct {
	ID                 string  `json:"id"`
	QMSHash            string  `json:"qmsHash"`
	VerificationStatus *string `json:"verificationStatus,omitempty"`
}

type Verification struct {
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	VerifiedAt  time.Time `json:"verifiedAt"`
	CurrentHash string    `json:"currentHash,omitempty"`
}

type SubmitResult struct {
	Artifact     Artifact     `json:"artifact"`
	Verification Verification `json:"verification"`
}

type ApprovalStatus struct {
	EntityType   string        `json:"entityType"`
	EntityID     string        `json:"entityId"`
	CurrentHash  string        `json:"currentHash"`
	Artifact     *Artifact     `json:"artifact"`
	Verification *Verification `json:"verification"`
}

type EsignRequest struct {
	Meaning  string `json:"meaning"`
	Password string `json:"password"`
	Reason   string `json:"reason"`
}

type Record struct {
	ID            string `json:"id"`
	EntityType    string `json:"entityType"`
	RecordNumber  string `json:"recordNumber"`
	State         string `json:"state"`
	RecordVersion int64  `json:"recordVersion"`
}

type EsignResult struct {
	Signature struct {
		ID            string    `json:"id"`
		Meaning       string    `json:"meaning"`
		PriorState    string    `json:"priorState"`
		TargetState   string    `json:"targetState"`
		SignedAt      time.Time `json:"signedAt"`
		SignatureHash string    `json:"signatureHash"`
	} `json:"signature"`
	Record Record `json:"record"`
}

type Attachment struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	FileName   string `json:"fileName"`
	StorageKey string `json:"storageKey"`
	UploadURL  string `json:"-"`
}
