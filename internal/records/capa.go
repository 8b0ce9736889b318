package records

import "time"

type correctiveActionFields struct {
	Title            string `json:"title"`
	ProblemStatement string `json:"problemStatement"`
	RootCause        string `json:"rootCause,omitempty"`
	ActionPlan       string `json:"actionPlan,omitempty"`
}

// CorrectiveAction is a CAPA record.
type CorrectiveAction struct {
	ID               string
	CapaNumber       string
	Title            string
	ProblemStatement string
	RootCause        string
	ActionPlan       string
	UpdatedAt        time.Time
}

func decodeCorrectiveAction(env Envelope) (*CorrectiveAction, error) {
	var f correctiveActionFields
	if len(env.Fields) > 0 {
		if err := unmarshalFields(env.Fields, &f, false); err != nil {
			return nil, err
		}
	}
	return &CorrectiveAction{
		ID:               env.ID,
		CapaNumber:       env.RecordNumber,
		Title:            f.Title,
		ProblemStatement: f.ProblemStatement,
		RootCause:        f.RootCause,
		ActionPlan:       f.ActionPlan,
		UpdatedAt:        env.UpdatedAt,
	}, nil
}

func (c *CorrectiveAction) EntityType() EntityType { return TypeCorrectiveAction }
func (c *CorrectiveAction) EntityID() string       { return c.ID }

// RecordVersion is the last-modified time in Unix milliseconds.
func (c *CorrectiveAction) RecordVersion() int64 { return c.UpdatedAt.UnixMilli() }

func (c *CorrectiveAction) Projection() map[string]any {
	return map[string]any{
		"id":               c.ID,
		"capaNumber":       optional(c.CapaNumber),
		"title":            c.Title,
		"problemStatement": optional(c.ProblemStatement),
		"rootCause":        optional(c.RootCause),
		"actionPlan":       optional(c.ActionPlan),
	}
}
