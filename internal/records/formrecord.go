package records

import "time"

type formRecordFields struct {
	TemplateID string         `json:"templateId"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// FormRecord is a filled-in instance of a form template.
type FormRecord struct {
	ID          string
	TemplateID  string
	Status      string
	Payload     map[string]any
	FinalizedAt *time.Time
	Version     int64
}

func decodeFormRecord(env Envelope) (*FormRecord, error) {
	var f formRecordFields
	if len(env.Fields) > 0 {
		if err := unmarshalFields(env.Fields, &f, false); err != nil {
			return nil, err
		}
	}
	return &FormRecord{
		ID:          env.ID,
		TemplateID:  f.TemplateID,
		Status:      env.State,
		Payload:     f.Payload,
		FinalizedAt: env.FinalizedAt,
		Version:     env.RecordVersion,
	}, nil
}

func (r *FormRecord) EntityType() EntityType { return TypeFormRecord }
func (r *FormRecord) EntityID() string       { return r.ID }
func (r *FormRecord) RecordVersion() int64   { return r.Version }

func (r *FormRecord) Projection() map[string]any {
	p := map[string]any{
		"id":            r.ID,
		"templateId":    r.TemplateID,
		"status":        r.Status,
		"recordVersion": r.Version,
	}
	if len(r.Payload) > 0 {
		p["payload"] = r.Payload
	}
	if r.FinalizedAt != nil {
		p["finalizedAt"] = *r.FinalizedAt
	}
	return p
}
