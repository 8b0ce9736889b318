// Package records defines the signable views of the four compliance entity
// types. Each variant projects exactly the persisted fields that are
// authoritative for hashing; nothing outside the projection can change the
// content hash and nothing inside it is ever dropped.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/digest"
)

// EntityType identifies one of the closed set of record kinds.
type EntityType string

const (
	TypeDocument         EntityType = "DOCUMENT"
	TypeFormRecord       EntityType = "FORM_RECORD"
	TypeCorrectiveAction EntityType = "CAPA"
	TypeChangeRequest    EntityType = "CHANGE_REQUEST"
)

// EntityTypes lists every supported entity type.
func EntityTypes() []EntityType {
	return []EntityType{TypeDocument, TypeFormRecord, TypeCorrectiveAction, TypeChangeRequest}
}

// ParseEntityType accepts the canonical names case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeDocument, TypeFormRecord, TypeCorrectiveAction, TypeChangeRequest:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownEntityType, s)
}

// NumberPrefix is the prefix of human-readable record numbers, e.g. CAPA-2026-0007.
func (t EntityType) NumberPrefix() string {
	switch t {
	case TypeDocument:
		return "DOC"
	case TypeFormRecord:
		return "FRM"
	case TypeCorrectiveAction:
		return "CAPA"
	case TypeChangeRequest:
		return "CR"
	}
	return "REC"
}

// SignableRecord is the authoritative, hashable view of a persisted record.
type SignableRecord interface {
	EntityType() EntityType
	EntityID() string
	// RecordVersion is a monotonically non-decreasing marker of signable state.
	RecordVersion() int64
	// Projection returns the fields covered by the content hash.
	Projection() map[string]any
}

// Envelope carries the persisted columns a variant needs to build itself.
type Envelope struct {
	Type          EntityType
	ID            string
	RecordNumber  string
	State         string
	Fields        json.RawMessage
	RecordVersion int64
	FinalizedAt   *time.Time
	UpdatedAt     time.Time
}

// Decode builds the variant matching env.Type.
func Decode(env Envelope) (SignableRecord, error) {
	switch env.Type {
	case TypeDocument:
		return decodeDocument(env)
	case TypeFormRecord:
		return decodeFormRecord(env)
	case TypeCorrectiveAction:
		return decodeCorrectiveAction(env)
	case TypeChangeRequest:
		return decodeChangeRequest(env)
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntityType, env.Type)
}

// Sum returns the content hash of rec together with its canonical bytes.
func Sum(rec SignableRecord) (string, []byte, error) {
	return digest.SumObject(rec.Projection())
}

// MergeFields applies a JSON object patch on top of the stored fields of an
// entity type. Only the type's own field names are accepted.
func MergeFields(t EntityType, current, patch json.RawMessage) (json.RawMessage, error) {
	target, err := newFields(t)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 {
		if err := unmarshalFields(current, target, false); err != nil {
			return nil, fmt.Errorf("stored fields: %w", err)
		}
	}
	if len(patch) > 0 {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(patch, &keys); err != nil {
			return nil, common.NewValidationError("fields", err.Error())
		}
		// the form payload is replaced as a whole, not merged key by key
		if f, ok := target.(*formRecordFields); ok {
			if _, present := keys["payload"]; present {
				f.Payload = nil
			}
		}
		if err := unmarshalFields(patch, target, true); err != nil {
			return nil, common.NewValidationError("fields", err.Error())
		}
	}
	return json.Marshal(target)
}

func newFields(t EntityType) (any, error) {
	switch t {
	case TypeDocument:
		return &documentFields{}, nil
	case TypeFormRecord:
		return &formRecordFields{}, nil
	case TypeCorrectiveAction:
		return &correctiveActionFields{}, nil
	case TypeChangeRequest:
		return &changeRequestFields{}, nil
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntityType, t)
}

func unmarshalFields(raw json.RawMessage, dst any, strict bool) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(dst)
}

// optional maps empty strings to nil so that "" and an absent field hash the same.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
