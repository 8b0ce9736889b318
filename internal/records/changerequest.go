package records

type changeRequestFields struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Justification    string `json:"justification,omitempty"`
	ImpactAssessment string `json:"impactAssessment,omitempty"`
}

// ChangeRequest is a change-control record.
type ChangeRequest struct {
	ID               string
	ChangeNumber     string
	Title            string
	Description      string
	Justification    string
	ImpactAssessment string
	Revision         int64
}

func decodeChangeRequest(env Envelope) (*ChangeRequest, error) {
	var f changeRequestFields
	if len(env.Fields) > 0 {
		if err := unmarshalFields(env.Fields, &f, false); err != nil {
			return nil, err
		}
	}
	return &ChangeRequest{
		ID:               env.ID,
		ChangeNumber:     env.RecordNumber,
		Title:            f.Title,
		Description:      f.Description,
		Justification:    f.Justification,
		ImpactAssessment: f.ImpactAssessment,
		Revision:         env.RecordVersion,
	}, nil
}

func (c *ChangeRequest) EntityType() EntityType { return TypeChangeRequest }
func (c *ChangeRequest) EntityID() string       { return c.ID }
func (c *ChangeRequest) RecordVersion() int64   { return c.Revision }

func (c *ChangeRequest) Projection() map[string]any {
	return map[string]any{
		"id":               c.ID,
		"changeNumber":     optional(c.ChangeNumber),
		"title":            c.Title,
		"description":      optional(c.Description),
		"justification":    optional(c.Justification),
		"impactAssessment": optional(c.ImpactAssessment),
	}
}
