package workflow

import (
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/records"
)

// Validator answers legality questions for any entity type. It holds no
// mutable state and is safe for concurrent use.
type Validator struct {
	registry *Registry
}

func NewValidator(r *Registry) *Validator {
	return &Validator{registry: r}
}

// IsAllowed reports whether the graph of t has the edge from->to.
// Unknown entity types and states are never allowed.
func (v *Validator) IsAllowed(t records.EntityType, from, to string) bool {
	w, err := v.registry.For(t)
	if err != nil {
		return false
	}
	return w.IsAllowed(from, to)
}

// AllowedTargets lists the legal next states of from.
func (v *Validator) AllowedTargets(t records.EntityType, from string) ([]string, error) {
	w, err := v.registry.For(t)
	if err != nil {
		return nil, err
	}
	return w.AllowedTargets(from), nil
}

// CheckTransition returns an *IllegalTransitionError when from->to is not an
// edge of the graph.
func (v *Validator) CheckTransition(t records.EntityType, from, to string) error {
	w, err := v.registry.For(t)
	if err != nil {
		return err
	}
	if !w.IsAllowed(from, to) {
		return &IllegalTransitionError{Entity: t, From: from, To: to, Allowed: w.AllowedTargets(from)}
	}
	return nil
}

// AssertPrecondition runs the business checks of entering state to.
func (v *Validator) AssertPrecondition(t records.EntityType, to string, c *Context) error {
	w, err := v.registry.For(t)
	if err != nil {
		return err
	}
	return w.Preconditions(to, c)
}

// AssertEdgePrecondition is AssertPrecondition for a known edge; a failure
// carries the legal targets from edge.From.
func (v *Validator) AssertEdgePrecondition(t records.EntityType, e Edge, c *Context) error {
	w, err := v.registry.For(t)
	if err != nil {
		return err
	}
	return withAllowed(w.Preconditions(e.To, c), w.AllowedTargets(e.From))
}

// ValidatePlain validates a transition requested without an e-signature:
// the edge must exist, must not be gated, and its preconditions must hold.
func (v *Validator) ValidatePlain(t records.EntityType, from, to string, c *Context) error {
	if err := v.CheckTransition(t, from, to); err != nil {
		return err
	}
	w, _ := v.registry.For(t)
	if m, gated := w.RequiredMeaning(from, to); gated {
		return withAllowed(preconditionFailed(t, to, ReasonEsignRequired,
			fmt.Sprintf("transition %s -> %s requires a %s e-signature", from, to, m)), w.AllowedTargets(from))
	}
	return withAllowed(w.Preconditions(to, c), w.AllowedTargets(from))
}

// ResolveGate finds the gated edge a meaning unlocks from the current state.
// It fails with ErrAlreadyInTargetState when the record already sits in that
// edge's target, and with a WRONG_STATE_FOR_MEANING precondition error when
// no edge with this meaning leaves the current state.
func (v *Validator) ResolveGate(t records.EntityType, current string, m Meaning) (Edge, error) {
	w, err := v.registry.For(t)
	if err != nil {
		return Edge{}, err
	}
	edges := w.GateEdges(m)
	if len(edges) == 0 {
		return Edge{}, common.NewValidationError("meaning", fmt.Sprintf("%s does not use meaning %s", t, m))
	}
	for _, e := range edges {
		if e.From == current {
			return e, nil
		}
	}
	for _, e := range edges {
		if e.To == current {
			return Edge{}, fmt.Errorf("%w: %s %s is already %s", common.ErrAlreadyInTargetState, t, m, current)
		}
	}
	return Edge{}, withAllowed(preconditionFailed(t, edges[0].To, ReasonWrongStateForMeaning,
		fmt.Sprintf("%s cannot be signed in state %s", m, current)), w.AllowedTargets(current))
}

// Effects returns the commit-time side effects of entering to.
func (v *Validator) Effects(t records.EntityType, to string) Effects {
	w, err := v.registry.For(t)
	if err != nil {
		return Effects{}
	}
	return w.Effects(to)
}

// InitialState is the state new records of type t start in.
func (v *Validator) InitialState(t records.EntityType) (string, error) {
	w, err := v.registry.For(t)
	if err != nil {
		return "", err
	}
	return w.InitialState(), nil
}
