package model

// PIIType classifies an extracted occurrence
type PIIType string

const (
	PIIEmail       PIIType = "email"
	PIIPhone       PIIType = "phone"
	PIIAddress     PIIType = "address"
	PIINameContext PIIType = "name-context"
	PIIOther       PIIType = "other"
)

// FieldFor maps a PII type back to the subject field it can match
func (t PIIType) FieldFor() (Field, bool) {
	switch t {
	case PIIEmail:
		return FieldEmail, true
	case PIIPhone:
		return FieldPhone, true
	case PIIAddress:
		return FieldAddress, true
	case PIINameContext:
		return FieldName, true
	default:
		return "", false
	}
}

// ExtractedMatch is one PII-shaped substring found on a page
type ExtractedMatch struct {
	Type          PIIType `json:"type"`
	Value         string  `json:"value"`       // Normalized value
	RawContext    string  `json:"raw_context"` // Bounded window around the match
	SourceURL     string  `json:"source_url"`
	SourceQuery   string  `json:"source_query"`
	RawConfidence float64 `json:"confidence"`
	Exact         bool    `json:"exact"`                    // Full structural match against the target field
	MatchedFields []Field `json:"matched_fields,omitempty"` // Target fields this value matches
	Kind          string  `json:"kind,omitempty"`           // Sub-kind for PIIOther (ssn, card, ip)

	// Byte span of the match inside RawContext; zero when unknown
	ContextStart int `json:"-"`
	ContextEnd   int `json:"-"`
}

// ContextWithoutMatch returns RawContext with the match's own span blanked,
// so the match cannot vouch for itself
func (m ExtractedMatch) ContextWithoutMatch() string {
	if m.ContextStart < 0 || m.ContextEnd <= m.ContextStart || m.ContextEnd > len(m.RawContext) {
		return m.RawContext
	}
	return m.RawContext[:m.ContextStart] + " " + m.RawContext[m.ContextEnd:]
}

// Matches reports whether the match structurally matches any target field
func (m ExtractedMatch) Matches() bool {
	return len(m.MatchedFields) > 0
}

// CanonicalFinding is the merged representative of duplicate matches
type CanonicalFinding struct {
	Match       ExtractedMatch `json:"match"`
	MergedCount int            `json:"merged_count"`
	SourceURLs  []string       `json:"source_urls"`
}

// Confidence returns the representative's confidence
func (f CanonicalFinding) Confidence() float64 {
	return f.Match.RawConfidence
}

// PageMeta describes the page a match came from, for scoring
type PageMeta struct {
	URL         string `json:"url"`
	Host        string `json:"host"`
	Title       string `json:"title,omitempty"`
	Source      string `json:"source,omitempty"` // Adapter that produced the hit
	FromSnippet bool   `json:"from_snippet"`     // Text came from a search snippet, not the page
}
