package records

type documentFields struct {
	Title        string `json:"title"`
	VersionMajor int64  `json:"versionMajor"`
	VersionMinor int64  `json:"versionMinor"`
	Body         string `json:"body"`
}

// Document is a controlled document revision.
type Document struct {
	ID             string
	DocumentNumber string
	Title          string
	VersionMajor   int64
	VersionMinor   int64
	Body           string
}

func decodeDocument(env Envelope) (*Document, error) {
	var f documentFields
	if len(env.Fields) > 0 {
		if err := unmarshalFields(env.Fields, &f, false); err != nil {
			return nil, err
		}
	}
	return &Document{
		ID:             env.ID,
		DocumentNumber: env.RecordNumber,
		Title:          f.Title,
		VersionMajor:   f.VersionMajor,
		VersionMinor:   f.VersionMinor,
		Body:           f.Body,
	}, nil
}

func (d *Document) EntityType() EntityType { return TypeDocument }
func (d *Document) EntityID() string       { return d.ID }

// RecordVersion folds the version pair into one ordered number.
func (d *Document) RecordVersion() int64 {
	return d.VersionMajor*1_000_000 + d.VersionMinor
}

func (d *Document) Projection() map[string]any {
	return map[string]any{
		"id":             d.ID,
		"documentNumber": optional(d.DocumentNumber),
		"title":          d.Title,
		"versionMajor":   d.VersionMajor,
		"versionMinor":   d.VersionMinor,
		"body":           optional(d.Body),
	}
}
