package workflow

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/records"
)

// Meaning labels what a local e-signature attests to.
type Meaning string

const (
	MeaningPlanApproval Meaning = "PLAN_APPROVAL"
	MeaningApproval     Meaning = "APPROVAL"
	MeaningClosure      Meaning = "CLOSURE"
	MeaningFinalization Meaning = "FINALIZATION"
)

// ParseMeaning accepts the canonical names case-insensitively.
func ParseMeaning(s string) (Meaning, error) {
	m := Meaning(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MeaningPlanApproval, MeaningApproval, MeaningClosure, MeaningFinalization:
		return m, nil
	}
	return "", common.NewValidationError("meaning", fmt.Sprintf("unknown meaning %q", s))
}

type TaskKind string

const (
	TaskCorrective     TaskKind = "CORRECTIVE"
	TaskPreventive     TaskKind = "PREVENTIVE"
	TaskEffectiveness  TaskKind = "EFFECTIVENESS"
	TaskImplementation TaskKind = "IMPLEMENTATION"
)

// ParseTaskKind accepts the canonical names case-insensitively.
func ParseTaskKind(s string) (TaskKind, error) {
	k := TaskKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case TaskCorrective, TaskPreventive, TaskEffectiveness, TaskImplementation:
		return k, nil
	}
	return "", common.NewValidationError("kind", fmt.Sprintf("unknown task kind %q", s))
}

// Task is the part of a child task that preconditions look at.
type Task struct {
	ID        string
	Kind      TaskKind
	Completed bool
}

// Waiver documents why an effectiveness check was skipped.
type Waiver struct {
	Justification string
}

const AttachmentEvidence = "EVIDENCE"

// Attachment is a file registered against a record. Present reports whether
// its stored object was confirmed to exist.
type Attachment struct {
	ID      string
	Kind    string
	Present bool
}

// Context is everything a precondition may inspect: the record itself and
// its own child rows. It never reaches other records.
type Context struct {
	Record      records.SignableRecord
	Tasks       []Task
	Waiver      *Waiver
	Attachments []Attachment
}

func (c *Context) completed(kind TaskKind) int {
	n := 0
	for _, t := range c.Tasks {
		if t.Kind == kind && t.Completed {
			n++
		}
	}
	return n
}

func (c *Context) open(kind TaskKind) int {
	n := 0
	for _, t := range c.Tasks {
		if t.Kind == kind && !t.Completed {
			n++
		}
	}
	return n
}

func (c *Context) hasWaiver() bool {
	return c.Waiver != nil && strings.TrimSpace(c.Waiver.Justification) != ""
}

func (c *Context) presentAttachments(kind string) int {
	n := 0
	for _, a := range c.Attachments {
		if a.Kind == kind && a.Present {
			n++
		}
	}
	return n
}
