package workflow

import (
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/records"
)

// ChangeState is a change-control lifecycle state.
type ChangeState string

const (
	ChangeDraft            ChangeState = "DRAFT"
	ChangeSubmitted        ChangeState = "SUBMITTED"
	ChangeImpactAssessment ChangeState = "IMPACT_ASSESSMENT"
	ChangeApproval         ChangeState = "APPROVAL"
	ChangeImplementation   ChangeState = "IMPLEMENTATION"
	ChangeVerification     ChangeState = "VERIFICATION"
	ChangePendingClosure   ChangeState = "PENDING_CLOSURE"
	ChangeClosed           ChangeState = "CLOSED"
	ChangeCancelled        ChangeState = "CANCELLED"
	ChangeRejected         ChangeState = "REJECTED"
)

// NewChangeRequestMachine returns the change-control lifecycle.
func NewChangeRequestMachine() *Machine[ChangeState] {
	return &Machine[ChangeState]{
		entity:  records.TypeChangeRequest,
		initial: ChangeDraft,
		states: []ChangeState{
			ChangeDraft, ChangeSubmitted, ChangeImpactAssessment, ChangeApproval, ChangeImplementation,
			ChangeVerification, ChangePendingClosure, ChangeClosed, ChangeCancelled, ChangeRejected,
		},
		terminal: map[ChangeState]bool{ChangeClosed: true, ChangeCancelled: true, ChangeRejected: true},
		next: map[ChangeState][]ChangeState{
			ChangeDraft:            {ChangeSubmitted, ChangeCancelled},
			ChangeSubmitted:        {ChangeImpactAssessment, ChangeDraft, ChangeCancelled},
			ChangeImpactAssessment: {ChangeApproval, ChangeSubmitted, ChangeCancelled},
			ChangeApproval:         {ChangeImplementation, ChangeImpactAssessment, ChangeRejected},
			ChangeImplementation:   {ChangeVerification, ChangeApproval},
			ChangeVerification:     {ChangePendingClosure, ChangeImplementation},
			ChangePendingClosure:   {ChangeClosed, ChangeVerification},
		},
		gates: map[edge[ChangeState]]Meaning{
			{ChangeApproval, ChangeImplementation}: MeaningApproval,
			{ChangePendingClosure, ChangeClosed}:   MeaningClosure,
		},
		check: checkChangeRequest,
		effects: func(to ChangeState) Effects {
			return Effects{SetClosedAt: to == ChangeClosed}
		},
	}
}

// checkChangeRequest: closing needs stored evidence and no open
// implementation task. Unlike CAPA it does not look at effectiveness.
func checkChangeRequest(to ChangeState, c *Context) error {
	if to != ChangeClosed {
		return nil
	}
	if c.presentAttachments(AttachmentEvidence) == 0 {
		return preconditionFailed(records.TypeChangeRequest, string(to), ReasonEvidenceMissing,
			"at least one evidence attachment must be stored")
	}
	if n := c.open(TaskImplementation); n > 0 {
		return preconditionFailed(records.TypeChangeRequest, string(to), ReasonImplementationIncomplete,
			fmt.Sprintf("%d implementation task(s) still open", n))
	}
	return nil
}
