package models

import "time"

const (
	RequestPending = "PENDING"
	RequestSigned  = "SIGNED"
)

// SignatureRequest asks the external signing authority to sign a hash.
type SignatureRequest struct {
	ID            string
	EntityType    string
	EntityID      string
	RecordVersion int64
	ExpectedHash  string
	Status        string
	RequestedAt   time.Time
	RequestedBy   string
	CorrelationID *string
	Notes         *string
	ArtifactID    *string
	SignedAt      *time.Time
}

// SignatureArtifact is a submitted external signature. Only the verification
// columns change after insert.
type SignatureArtifact struct {
	ID                 string
	EntityType         string
	EntityID           string
	RecordVersion      int64
	QMSHash            string
	Signature          []byte
	SignedAt           time.Time
	RequestID          *string
	SubmittedBy        string
	VerificationStatus *string
	VerificationReason *string
	VerifiedAt         *time.Time
	CreatedAt          time.Time
}

// LocalSignature is an e-sign gate signature. Never updated or deleted.
type LocalSignature struct {
	ID                  string
	EntityType          string
	EntityID            string
	SignerID            string
	Meaning             string
	PriorState          string
	TargetState         string
	SignedAt            time.Time
	RecordHashAtSigning string
	SignatureHash       string
}
