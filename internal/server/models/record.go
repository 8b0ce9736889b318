package models

import (
	"encoding/json"
	"time"
)

// Record is a row of the records table shared by every entity type.
// Fields holds the type-specific authoritative fields as a JSON object.
type Record struct {
	ID            string
	EntityType    string
	RecordNumber  string
	State         string
	Fields        json.RawMessage
	RecordVersion int64
	ClosedAt      *time.Time
	FinalizedAt   *time.Time
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StateChange is a conditional state update: it only applies while the row
// is still in From.
type StateChange struct {
	ID             string
	From           string
	To             string
	At             time.Time
	SetClosedAt    bool
	SetFinalizedAt bool
}
