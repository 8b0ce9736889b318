package models

import "time"

// Task is a child work item of a record (corrective, effectiveness, ...).
type Task struct {
	ID          string
	EntityID    string
	Kind        string
	Title       string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Waiver justifies skipping the effectiveness check of a CAPA.
type Waiver struct {
	EntityID      string
	Justification string
	ActorID       string
	CreatedAt     time.Time
}

// Attachment is a file registered against a record. The bytes live in object
// storage under StorageKey.
type Attachment struct {
	ID         string
	EntityID   string
	Kind       string
	FileName   string
	StorageKey string
	CreatedAt  time.Time
}
