package workflow

import (
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/records"
)

// CAPAState is a corrective-action lifecycle state.
type CAPAState string

const (
	CAPADraft              CAPAState = "DRAFT"
	CAPAOpen               CAPAState = "OPEN"
	CAPAContainment        CAPAState = "CONTAINMENT"
	CAPAInvestigation      CAPAState = "INVESTIGATION"
	CAPARCAComplete        CAPAState = "RCA_COMPLETE"
	CAPAPlanApproval       CAPAState = "PLAN_APPROVAL"
	CAPAImplementation     CAPAState = "IMPLEMENTATION"
	CAPAEffectivenessCheck CAPAState = "EFFECTIVENESS_CHECK"
	CAPAPendingClosure     CAPAState = "PENDING_CLOSURE"
	CAPAClosed             CAPAState = "CLOSED"
	CAPACancelled          CAPAState = "CANCELLED"
	CAPAArchived           CAPAState = "ARCHIVED"
)

// NewCAPAMachine returns the corrective-action lifecycle.
// ARCHIVED is terminal and only reached by records imported in that state.
func NewCAPAMachine() *Machine[CAPAState] {
	return &Machine[CAPAState]{
		entity:  records.TypeCorrectiveAction,
		initial: CAPADraft,
		states: []CAPAState{
			CAPADraft, CAPAOpen, CAPAContainment, CAPAInvestigation, CAPARCAComplete, CAPAPlanApproval,
			CAPAImplementation, CAPAEffectivenessCheck, CAPAPendingClosure, CAPAClosed, CAPACancelled, CAPAArchived,
		},
		terminal: map[CAPAState]bool{CAPAClosed: true, CAPACancelled: true, CAPAArchived: true},
		next: map[CAPAState][]CAPAState{
			CAPADraft:              {CAPAOpen, CAPACancelled},
			CAPAOpen:               {CAPAContainment, CAPAInvestigation, CAPACancelled},
			CAPAContainment:        {CAPAInvestigation, CAPAOpen, CAPACancelled},
			CAPAInvestigation:      {CAPARCAComplete, CAPAContainment, CAPACancelled},
			CAPARCAComplete:        {CAPAPlanApproval, CAPAInvestigation, CAPACancelled},
			CAPAPlanApproval:       {CAPAImplementation, CAPARCAComplete, CAPACancelled},
			CAPAImplementation:     {CAPAEffectivenessCheck, CAPAPlanApproval, CAPACancelled},
			CAPAEffectivenessCheck: {CAPAPendingClosure, CAPAImplementation},
			CAPAPendingClosure:     {CAPAClosed, CAPAEffectivenessCheck},
		},
		gates: map[edge[CAPAState]]Meaning{
			{CAPAPlanApproval, CAPAImplementation}: MeaningPlanApproval,
			{CAPAPendingClosure, CAPAClosed}:       MeaningClosure,
		},
		check: checkCAPA,
		effects: func(to CAPAState) Effects {
			return Effects{SetClosedAt: to == CAPAClosed}
		},
	}
}

// checkCAPA: closing needs a completed corrective task and either a completed
// effectiveness check or a justified waiver.
func checkCAPA(to CAPAState, c *Context) error {
	if to != CAPAClosed {
		return nil
	}
	if c.completed(TaskCorrective) == 0 {
		return preconditionFailed(records.TypeCorrectiveAction, string(to), ReasonNoCompletedCorrectiveTask,
			"at least one corrective task must be completed")
	}
	if c.completed(TaskEffectiveness) == 0 && !c.hasWaiver() {
		return preconditionFailed(records.TypeCorrectiveAction, string(to), ReasonEffectivenessNotVerified,
			fmt.Sprintf("complete an %s task or record a waiver with justification", TaskEffectiveness))
	}
	return nil
}
