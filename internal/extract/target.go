package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/exposure/internal/model"
)

var zipPattern = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)

// streetSuffixes maps long street suffixes to their postal abbreviation
var streetSuffixes = map[string]string{
	"street": "st", "avenue": "ave", "road": "rd", "boulevard": "blvd", "lane": "ln",
	"drive": "dr", "court": "ct", "place": "pl", "terrace": "ter", "circle": "cir",
	"parkway": "pkwy", "highway": "hwy", "square": "sq",
}

// Target holds a subject's identifiers in normalized form for structural matching
type Target struct {
	Email      string
	EmailLocal string
	Phone      string // Digits only
	Street     string // Canonical first address line
	Address    string // Canonical full address
	Zip        string
	Name       string
	NameTokens []string
}

// NewTarget normalizes a subject's identifiers
func NewTarget(info model.PersonalInfo) Target {
	t := Target{
		Email: NormalizeEmail(info.Value(model.FieldEmail)),
		Phone: NormalizePhone(info.Value(model.FieldPhone)),
		Name:  NormalizeText(info.Value(model.FieldName)),
	}
	if i := strings.IndexByte(t.Email, '@'); i > 0 {
		t.EmailLocal = t.Email[:i]
	}
	t.NameTokens = strings.Fields(t.Name)

	if addr := info.Value(model.FieldAddress); addr != "" {
		t.Address = CanonicalAddress(addr)
		street := addr
		if i := strings.IndexByte(addr, ','); i > 0 {
			street = addr[:i]
		}
		t.Street = CanonicalAddress(street)
		t.Zip = zipPattern.FindString(addr)
	}
	return t
}

// CanonicalAddress normalizes an address and abbreviates street suffixes
func CanonicalAddress(s string) string {
	tokens := strings.Fields(NormalizeText(s))
	for i, tok := range tokens {
		if abbr, ok := streetSuffixes[tok]; ok {
			tokens[i] = abbr
		}
	}
	return strings.Join(tokens, " ")
}

// MatchEmail compares a normalized address with the target.
// Same local part at another domain is a partial match.
func (t Target) MatchEmail(v string) (exact, partial bool) {
	if t.Email == "" {
		return false, false
	}
	if v == t.Email {
		return true, false
	}
	if i := strings.IndexByte(v, '@'); i > 0 && t.EmailLocal != "" && v[:i] == t.EmailLocal {
		return false, true
	}
	return false, false
}

// MatchPhone compares digit strings. Country code prefixes are tolerated;
// equal last seven digits is a partial match.
func (t Target) MatchPhone(digits string) (exact, partial bool) {
	if len(t.Phone) < 7 || len(digits) < 7 {
		return false, false
	}
	if digits == t.Phone {
		return true, false
	}

	shorter, longer := digits, t.Phone
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= 10 && strings.HasSuffix(longer, shorter) {
		return true, false
	}
	if digits[len(digits)-7:] == t.Phone[len(t.Phone)-7:] {
		return false, true
	}
	return false, false
}

// MatchAddress compares a canonical street line or ZIP with the target
func (t Target) MatchAddress(v string) (exact, partial bool) {
	if t.Address == "" || v == "" {
		return false, false
	}
	if t.Zip != "" && v == t.Zip {
		return false, true
	}
	if v == t.Street || v == t.Address {
		return true, false
	}

	found := strings.Fields(v)
	if len(found) >= 3 && containsPhrase(t.Address, v) {
		return true, false
	}

	// Same house number plus at least one shared street word
	street := strings.Fields(t.Street)
	if len(found) == 0 || len(street) == 0 || found[0] != street[0] {
		return false, false
	}
	streetSet := make(map[string]bool, len(street))
	for _, w := range street[1:] {
		streetSet[w] = true
	}
	for _, w := range found[1:] {
		if streetSet[w] && !isSuffix(w) {
			return false, true
		}
	}
	return false, false
}

// Appears reports whether the target's value for field f occurs in text.
// The scorer uses it to count co-occurring identifiers in a match context.
func (t Target) Appears(f model.Field, text string) bool {
	switch f {
	case model.FieldEmail:
		return t.Email != "" && strings.Contains(strings.ToLower(text), t.Email)
	case model.FieldPhone:
		if len(t.Phone) < 7 {
			return false
		}
		tail := t.Phone[len(t.Phone)-7:]
		for _, chunk := range digitChunks(text) {
			if strings.Contains(chunk, tail) {
				return true
			}
		}
		return false
	case model.FieldAddress:
		if t.Street == "" {
			return false
		}
		canon := CanonicalAddress(text)
		return containsPhrase(canon, t.Street) || (t.Zip != "" && strings.Contains(text, t.Zip))
	case model.FieldName:
		// A local part such as jane.roe is the email's evidence, not the name's
		return t.Name != "" && containsPhrase(NormalizeText(emailPattern.ReplaceAllString(text, " ")), t.Name)
	default:
		return false
	}
}

// containsPhrase reports whether phrase occurs in text on word boundaries; both are normalized
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// digitChunks splits text on letters and returns the digits of each chunk,
// so separators inside a phone number do not split it but words do
func digitChunks(text string) []string {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			cur.WriteRune(r)
		case unicode.IsLetter(r):
			flush()
		}
	}
	flush()
	return chunks
}

func isSuffix(w string) bool {
	for _, abbr := range streetSuffixes {
		if w == abbr {
			return true
		}
	}
	return false
}
