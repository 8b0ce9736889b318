package workflow

import (
	"github.com/dmitrijs2005/gophqms/internal/records"
)

// FormState is a form-record lifecycle state.
type FormState string

const (
	FormDraft      FormState = "DRAFT"
	FormInProgress FormState = "IN_PROGRESS"
	FormSubmitted  FormState = "SUBMITTED"
	FormFinalized  FormState = "FINALIZED"
	FormVoid       FormState = "VOID"
	FormArchived   FormState = "ARCHIVED"
)

// NewFormRecordMachine returns the form-record lifecycle.
func NewFormRecordMachine() *Machine[FormState] {
	return &Machine[FormState]{
		entity:   records.TypeFormRecord,
		initial:  FormDraft,
		states:   []FormState{FormDraft, FormInProgress, FormSubmitted, FormFinalized, FormVoid, FormArchived},
		terminal: map[FormState]bool{FormVoid: true, FormArchived: true},
		next: map[FormState][]FormState{
			FormDraft:      {FormInProgress, FormVoid},
			FormInProgress: {FormSubmitted, FormDraft, FormVoid},
			FormSubmitted:  {FormFinalized, FormInProgress},
			FormFinalized:  {FormArchived},
		},
		gates: map[edge[FormState]]Meaning{
			{FormSubmitted, FormFinalized}: MeaningFinalization,
		},
		check: checkFormRecord,
		effects: func(to FormState) Effects {
			return Effects{SetFinalizedAt: to == FormFinalized}
		},
	}
}

func checkFormRecord(to FormState, c *Context) error {
	if to != FormSubmitted && to != FormFinalized {
		return nil
	}
	form, ok := c.Record.(*records.FormRecord)
	if !ok || len(form.Payload) == 0 {
		return preconditionFailed(records.TypeFormRecord, string(to), ReasonEmptyPayload, "form payload is empty")
	}
	return nil
}
