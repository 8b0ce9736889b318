package workflow

import (
	"strings"

	"github.com/dmitrijs2005/gophqms/internal/records"
)

// DocumentState is a controlled-document lifecycle state.
type DocumentState string

const (
	DocumentDraft      DocumentState = "DRAFT"
	DocumentInReview   DocumentState = "IN_REVIEW"
	DocumentInApproval DocumentState = "IN_APPROVAL"
	DocumentEffective  DocumentState = "EFFECTIVE"
	DocumentSuperseded DocumentState = "SUPERSEDED"
	DocumentObsolete   DocumentState = "OBSOLETE"
	DocumentCancelled  DocumentState = "CANCELLED"
	DocumentArchived   DocumentState = "ARCHIVED"
)

// NewDocumentMachine returns the controlled-document lifecycle.
func NewDocumentMachine() *Machine[DocumentState] {
	return &Machine[DocumentState]{
		entity:  records.TypeDocument,
		initial: DocumentDraft,
		states: []DocumentState{
			DocumentDraft, DocumentInReview, DocumentInApproval, DocumentEffective,
			DocumentSuperseded, DocumentObsolete, DocumentCancelled, DocumentArchived,
		},
		terminal: map[DocumentState]bool{DocumentCancelled: true, DocumentArchived: true},
		next: map[DocumentState][]DocumentState{
			DocumentDraft:      {DocumentInReview, DocumentCancelled},
			DocumentInReview:   {DocumentInApproval, DocumentDraft},
			DocumentInApproval: {DocumentEffective, DocumentInReview},
			DocumentEffective:  {DocumentSuperseded, DocumentObsolete},
			DocumentSuperseded: {DocumentObsolete, DocumentArchived},
			DocumentObsolete:   {DocumentArchived},
		},
		gates: map[edge[DocumentState]]Meaning{
			{DocumentInApproval, DocumentEffective}: MeaningApproval,
		},
		check: checkDocument,
	}
}

func checkDocument(to DocumentState, c *Context) error {
	if to != DocumentInReview && to != DocumentEffective {
		return nil
	}
	doc, ok := c.Record.(*records.Document)
	if !ok || strings.TrimSpace(doc.Body) == "" {
		return preconditionFailed(records.TypeDocument, string(to), ReasonEmptyBody, "document body is empty")
	}
	return nil
}
