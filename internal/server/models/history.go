package models

import (
	"encoding/json"
	"time"
)

// History actions.
const (
	ActionCreated           = "CREATED"
	ActionUpdated           = "UPDATED"
	ActionTransitioned      = "TRANSITIONED"
	ActionESigned           = "ESIGNED"
	ActionSignatureRequest  = "SIGNATURE_REQUESTED"
	ActionArtifactSubmitted = "ARTIFACT_SUBMITTED"
	ActionTaskAdded         = "TASK_ADDED"
	ActionTaskCompleted     = "TASK_COMPLETED"
	ActionWaiverRecorded    = "WAIVER_RECORDED"
	ActionAttachmentAdded   = "ATTACHMENT_ADDED"
)

// HistoryEntry is one append-only audit trail row.
type HistoryEntry struct {
	ID         string
	EntityType string
	EntityID   string
	Action     string
	FromState  *string
	ToState    *string
	ActorID    string
	Reason     string
	Details    json.RawMessage
	CreatedAt  time.Time
}
