// Package workflow holds the fixed lifecycle graphs of every entity type and
// the validator that consults them.
//
// Each entity type declares its own string-backed state type and a typed
// adjacency table, so a CAPA state can never be looked up in the change-request
// graph. The Workflow interface is the only place where states cross the
// boundary as plain strings (they arrive that way from callers and storage).
package workflow

import (
	"github.com/dmitrijs2005/gophqms/internal/records"
)

// Effects are the side effects a transition has when it commits.
type Effects struct {
	SetClosedAt    bool
	SetFinalizedAt bool
}

// Workflow is the state-string view of one entity type's machine.
type Workflow interface {
	EntityType() records.EntityType
	InitialState() string
	States() []string
	IsKnown(state string) bool
	IsTerminal(state string) bool
	IsAllowed(from, to string) bool
	AllowedTargets(from string) []string
	// RequiredMeaning reports the e-sign meaning gating from->to, if any.
	RequiredMeaning(from, to string) (Meaning, bool)
	// GateEdges lists the gated edges carrying meaning m.
	GateEdges(m Meaning) []Edge
	Preconditions(to string, c *Context) error
	Effects(to string) Effects
}

// Edge is a directed transition between two states.
type Edge struct {
	From string
	To   string
}

type edge[S ~string] struct {
	from, to S
}

// Machine is a compile-time typed state machine for state type S.
type Machine[S ~string] struct {
	entity   records.EntityType
	initial  S
	states   []S
	terminal map[S]bool
	next     map[S][]S
	gates    map[edge[S]]Meaning
	check    func(to S, c *Context) error
	effects  func(to S) Effects
}

func (m *Machine[S]) EntityType() records.EntityType { return m.entity }
func (m *Machine[S]) InitialState() string           { return string(m.initial) }

func (m *Machine[S]) States() []string {
	out := make([]string, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, string(s))
	}
	return out
}

func (m *Machine[S]) parse(s string) (S, bool) {
	for _, st := range m.states {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (m *Machine[S]) IsKnown(state string) bool {
	_, ok := m.parse(state)
	return ok
}

func (m *Machine[S]) IsTerminal(state string) bool {
	s, ok := m.parse(state)
	return ok && m.terminal[s]
}

// Allowed is the typed adjacency lookup.
func (m *Machine[S]) Allowed(from, to S) bool {
	for _, t := range m.next[from] {
		if t == to {
			return true
		}
	}
	return false
}

func (m *Machine[S]) IsAllowed(from, to string) bool {
	f, ok := m.parse(from)
	if !ok {
		return false
	}
	t, ok := m.parse(to)
	if !ok {
		return false
	}
	return m.Allowed(f, t)
}

func (m *Machine[S]) AllowedTargets(from string) []string {
	out := []string{}
	f, ok := m.parse(from)
	if !ok {
		return out
	}
	for _, t := range m.next[f] {
		out = append(out, string(t))
	}
	return out
}

func (m *Machine[S]) RequiredMeaning(from, to string) (Meaning, bool) {
	f, ok := m.parse(from)
	if !ok {
		return "", false
	}
	t, ok := m.parse(to)
	if !ok {
		return "", false
	}
	meaning, gated := m.gates[edge[S]{f, t}]
	return meaning, gated
}

func (m *Machine[S]) GateEdges(meaning Meaning) []Edge {
	var out []Edge
	// iterate states to keep the result ordered
	for _, from := range m.states {
		for _, to := range m.next[from] {
			if g, ok := m.gates[edge[S]{from, to}]; ok && g == meaning {
				out = append(out, Edge{From: string(from), To: string(to)})
			}
		}
	}
	return out
}

func (m *Machine[S]) Preconditions(to string, c *Context) error {
	t, ok := m.parse(to)
	if !ok || m.check == nil {
		return nil
	}
	if c == nil {
		c = &Context{}
	}
	return m.check(t, c)
}

func (m *Machine[S]) Effects(to string) Effects {
	t, ok := m.parse(to)
	if !ok || m.effects == nil {
		return Effects{}
	}
	return m.effects(t)
}
