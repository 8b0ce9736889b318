package workflow

import (
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/records"
)

// Registry maps every entity type to its machine. The set is closed: it is
// built once from the four constructors and never modified.
type Registry struct {
	byType map[records.EntityType]Workflow
}

// NewRegistry returns the registry of all built-in lifecycles.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[records.EntityType]Workflow, 4)}
	for _, w := range []Workflow{
		NewDocumentMachine(),
		NewFormRecordMachine(),
		NewCAPAMachine(),
		NewChangeRequestMachine(),
	} {
		r.byType[w.EntityType()] = w
	}
	return r
}

// For returns the workflow of entity type t.
func (r *Registry) For(t records.EntityType) (Workflow, error) {
	w, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntityType, t)
	}
	return w, nil
}
