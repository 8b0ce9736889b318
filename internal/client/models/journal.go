// Package models defines the records qmsctl keeps in its local journal.
package models

import "time"

// Journal entry states. An entry is PENDING until the server has stored the
// artifact; REJECTED entries were refused and will not be retried.
const (
	JournalPending   = "PENDING"
	JournalSubmitted = "SUBMITTED"
	JournalRejected  = "REJECTED"
)

// JournalEntry is a signature produced offline over a record's canonical
// payload, kept until it has been handed to the server.
type JournalEntry struct {
	ID             string
	EntityType     string
	EntityID       string
	RecordVersion  int64
	QMSHash        string
	Signature      []byte
	SignedAt       time.Time
	KeyFingerprint string
	Status         string

	// CorrelationID ties the signature to a signature request, if any.
	CorrelationID *string

	// Set once the server answered.
	ArtifactID   *string
	Verification *string
	LastError    *string
	SubmittedAt  *time.Time
}
