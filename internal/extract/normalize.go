package extract

import (
	"strings"
	"unicode"

	"github.com/ppiankov/exposure/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail lower-cases and trims an address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), ".,;:<>()[]\"'"))
}

// NormalizePhone keeps digits only
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeText folds case, applies NFKC and reduces punctuation runs to single spaces.
// Used for names, addresses and context comparison.
func NormalizeText(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// NormalizeValue normalizes a value according to its PII type
func NormalizeValue(t model.PIIType, v string) string {
	switch t {
	case model.PIIEmail:
		return NormalizeEmail(v)
	case model.PIIPhone:
		return NormalizePhone(v)
	case model.PIIOther:
		return strings.ToLower(strings.TrimSpace(v))
	default:
		return NormalizeText(v)
	}
}

// Tokens splits normalized text into words
func Tokens(s string) []string {
	return strings.Fields(NormalizeText(s))
}
