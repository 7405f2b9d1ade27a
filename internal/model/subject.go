package model

import "strings"

// Field names one identifying attribute of a subject
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldAddress Field = "address"
)

// AllFields lists fields in descending order of specificity.
// Query generation and co-occurrence checks walk fields in this order.
var AllFields = []Field{FieldEmail, FieldPhone, FieldAddress, FieldName}

// PersonalInfo is the set of identifiers a scan searches for
type PersonalInfo struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Email   string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone   string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// Value returns the trimmed value of a field
func (p PersonalInfo) Value(f Field) string {
	switch f {
	case FieldName:
		return strings.TrimSpace(p.Name)
	case FieldEmail:
		return strings.TrimSpace(p.Email)
	case FieldPhone:
		return strings.TrimSpace(p.Phone)
	case FieldAddress:
		return strings.TrimSpace(p.Address)
	default:
		return ""
	}
}

// Present returns the non-empty fields in AllFields order
func (p PersonalInfo) Present() []Field {
	var fields []Field
	for _, f := range AllFields {
		if p.Value(f) != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Validate fails with ErrInvalidInput when every field is empty
func (p PersonalInfo) Validate() error {
	if len(p.Present()) == 0 {
		return ErrInvalidInput
	}
	return nil
}
