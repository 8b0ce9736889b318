package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/records"
)

// ReasonCode is the machine-readable cause of a failed precondition.
type ReasonCode string

const (
	ReasonNoCompletedCorrectiveTask ReasonCode = "NO_COMPLETED_CORRECTIVE_TASK"
	ReasonEffectivenessNotVerified  ReasonCode = "EFFECTIVENESS_NOT_VERIFIED"
	ReasonEvidenceMissing           ReasonCode = "EVIDENCE_MISSING"
	ReasonImplementationIncomplete  ReasonCode = "IMPLEMENTATION_INCOMPLETE"
	ReasonEmptyBody                 ReasonCode = "EMPTY_BODY"
	ReasonEmptyPayload              ReasonCode = "EMPTY_PAYLOAD"
	ReasonEsignRequired             ReasonCode = "ESIGN_REQUIRED"
	ReasonWrongStateForMeaning      ReasonCode = "WRONG_STATE_FOR_MEANING"
)

// IllegalTransitionError is returned for a move the graph does not allow.
// Allowed holds every legal target from the current state.
type IllegalTransitionError struct {
	Entity  records.EntityType
	From    string
	To      string
	Allowed []string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for %s: %s -> %s (allowed: [%s])",
		e.Entity, e.From, e.To, strings.Join(e.Allowed, ", "))
}

func (e *IllegalTransitionError) Unwrap() error { return common.ErrIllegalTransition }

// PreconditionError is returned when the graph allows a move but a business
// rule of the entity type does not (yet). Allowed holds the legal targets
// from the state the record was in.
type PreconditionError struct {
	Entity  records.EntityType
	To      string
	Reason  ReasonCode
	Detail  string
	Allowed []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition not met for %s -> %s: %s: %s", e.Entity, e.To, e.Reason, e.Detail)
}

func (e *PreconditionError) Unwrap() error { return common.ErrPreconditionNotMet }

func preconditionFailed(entity records.EntityType, to string, reason ReasonCode, detail string) error {
	return &PreconditionError{Entity: entity, To: to, Reason: reason, Detail: detail}
}

// withAllowed fills Allowed on a precondition error that has none yet.
// Other errors pass through untouched.
func withAllowed(err error, allowed []string) error {
	var pe *PreconditionError
	if errors.As(err, &pe) && pe.Allowed == nil {
		pe.Allowed = allowed
	}
	return err
}
