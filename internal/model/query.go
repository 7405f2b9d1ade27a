package model

// Query is one search string derived from a subject
type Query struct {
	Text         string  `json:"text"`
	TargetFields []Field `json:"target_fields"`         // Fields encoded in the text, AllFields order
	EngineHint   string  `json:"engine_hint,omitempty"` // Site qualifier domain, empty for open web
}

// Targets reports whether the query encodes the given field
func (q Query) Targets(f Field) bool {
	for _, tf := range q.TargetFields {
		if tf == f {
			return true
		}
	}
	return false
}
