// Package extract finds PII-shaped substrings in fetched pages.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/exposure/internal/model"
	"golang.org/x/text/unicode/norm"
)

// Preliminary confidences; the scorer replaces them
const (
	exactConfidence     = 0.9
	partialConfidence   = 0.5
	unmatchedConfidence = 0.1
)

// typeOrder breaks ties between matches starting at the same offset
var typeOrder = map[model.PIIType]int{
	model.PIIEmail:       0,
	model.PIIPhone:       1,
	model.PIIAddress:     2,
	model.PIINameContext: 3,
	model.PIIOther:       4,
}

// Extractor scans page text for identifiers
type Extractor struct {
	radius       int
	maxMatches   int
	includeOther bool
}

// NewExtractor creates an extractor
func NewExtractor(cfg model.ExtractConfig) *Extractor {
	radius := cfg.ContextRadius
	if radius <= 0 {
		radius = 80
	}
	return &Extractor{
		radius:       radius,
		maxMatches:   cfg.MaxMatchesPerPage,
		includeOther: cfg.IncludeOther,
	}
}

type span struct {
	start, end int
	match      model.ExtractedMatch
}

// Extract scans an HTML or text body. Matches are returned in page order.
// When markup is malformed the matches found in the recovered text are
// returned together with an error wrapping ErrParsePartial.
func (e *Extractor) Extract(body, sourceURL, sourceQuery string, info model.PersonalInfo) ([]model.ExtractedMatch, error) {
	text, perr := PageText(body)
	return e.ExtractText(text, sourceURL, sourceQuery, info), perr
}

// ExtractText scans plain text, such as a search result snippet
func (e *Extractor) ExtractText(text, sourceURL, sourceQuery string, info model.PersonalInfo) []model.ExtractedMatch {
	text = norm.NFKC.String(text)
	target := NewTarget(info)

	s := &scan{text: text, e: e, sourceURL: sourceURL, sourceQuery: sourceQuery}

	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], trimEnd(text, loc[0], loc[1], ".-")
		end, ok := emailEnd(text, start, end, target.Email)
		if !ok {
			continue
		}
		value := NormalizeEmail(text[start:end])
		exact, partial := target.MatchEmail(value)
		s.add(start, end, model.PIIEmail, value, "", exact, partial)
	}

	if e.includeOther {
		for _, k := range otherKinds {
			for _, loc := range k.pattern.FindAllStringIndex(text, -1) {
				raw := text[loc[0]:loc[1]]
				if !bounded(text, loc[0], loc[1]) || s.overlaps(loc[0], loc[1]) || !k.valid(raw) {
					continue
				}
				s.add(loc[0], loc[1], model.PIIOther, NormalizeValue(model.PIIOther, raw), k.kind, false, false)
			}
		}
	}

	for _, p := range phonePatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			start, end := trimStart(text, loc[0], loc[1]), loc[1]
			if !bounded(text, start, end) || s.overlaps(start, end) {
				continue
			}
			digits := NormalizePhone(text[start:end])
			if len(digits) < 7 || len(digits) > 15 {
				continue
			}
			exact, partial := target.MatchPhone(digits)
			s.add(start, end, model.PIIPhone, digits, "", exact, partial)
		}
	}

	for _, loc := range addressPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], trimEnd(text, loc[0], loc[1], ".")
		if !bounded(text, start, end) || s.overlaps(start, end) {
			continue
		}
		value := CanonicalAddress(text[start:end])
		exact, partial := target.MatchAddress(value)
		s.add(start, end, model.PIIAddress, value, "", exact, partial)
	}

	// A bare ZIP code is only meaningful when it is the subject's
	if target.Zip != "" {
		for _, loc := range zipPattern.FindAllStringIndex(text, -1) {
			if text[loc[0]:loc[1]] != target.Zip || s.overlaps(loc[0], loc[1]) {
				continue
			}
			s.add(loc[0], loc[1], model.PIIAddress, target.Zip, "zip", false, true)
		}
	}

	if len(target.NameTokens) > 0 {
		s.names(target.NameTokens, true)
		if len(target.NameTokens) > 1 {
			reversed := make([]string, len(target.NameTokens))
			for i, tok := range target.NameTokens {
				reversed[len(reversed)-1-i] = tok
			}
			s.names(reversed, false)
		}
	}

	return s.results()
}

// scan accumulates non-overlapping spans for one text
type scan struct {
	text        string
	e           *Extractor
	sourceURL   string
	sourceQuery string
	spans       []span
}

func (s *scan) add(start, end int, t model.PIIType, value, kind string, exact, partial bool) {
	if value == "" {
		return
	}

	ctx, ctxStart, ctxEnd := window(s.text, start, end, s.e.radius)
	m := model.ExtractedMatch{
		Type:          t,
		Value:         value,
		RawContext:    ctx,
		ContextStart:  ctxStart,
		ContextEnd:    ctxEnd,
		SourceURL:     s.sourceURL,
		SourceQuery:   s.sourceQuery,
		RawConfidence: unmatchedConfidence,
		Exact:         exact,
		Kind:          kind,
	}
	if exact || partial {
		if f, ok := t.FieldFor(); ok {
			m.MatchedFields = []model.Field{f}
		}
		if exact {
			m.RawConfidence = exactConfidence
		} else {
			m.RawConfidence = partialConfidence
		}
	}

	s.spans = append(s.spans, span{start: start, end: end, match: m})
}

func (s *scan) overlaps(start, end int) bool {
	for _, sp := range s.spans {
		if start < sp.end && sp.start < end {
			return true
		}
	}
	return false
}

// names finds the tokens in order separated by spaces or light punctuation
func (s *scan) names(tokens []string, exact bool) {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	pattern, err := regexp.Compile(`(?i)` + strings.Join(quoted, `[\s.,'\-]+`))
	if err != nil {
		return
	}

	for _, loc := range pattern.FindAllStringIndex(s.text, -1) {
		if !bounded(s.text, loc[0], loc[1]) || s.overlaps(loc[0], loc[1]) {
			continue
		}
		s.add(loc[0], loc[1], model.PIINameContext, NormalizeText(s.text[loc[0]:loc[1]]), "", exact, !exact)
	}
}

func (s *scan) results() []model.ExtractedMatch {
	sort.SliceStable(s.spans, func(i, j int) bool {
		if s.spans[i].start != s.spans[j].start {
			return s.spans[i].start < s.spans[j].start
		}
		return typeOrder[s.spans[i].match.Type] < typeOrder[s.spans[j].match.Type]
	})

	n := len(s.spans)
	if s.e.maxMatches > 0 && n > s.e.maxMatches {
		n = s.e.maxMatches
	}

	matches := make([]model.ExtractedMatch, 0, n)
	for _, sp := range s.spans[:n] {
		matches = append(matches, sp.match)
	}
	return matches
}

// window returns up to radius bytes either side of [start,end), aligned to
// rune boundaries, with whitespace collapsed. It also returns the span of
// the match inside the window.
func window(text string, start, end, radius int) (string, int, int) {
	from := start - radius
	if from < 0 {
		from = 0
	}
	to := end + radius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from++
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to--
	}

	left := strings.TrimLeft(collapseSpace(text[from:start]), " ")
	mid := collapseSpace(text[start:end])
	if left == "" || strings.HasSuffix(left, " ") {
		mid = strings.TrimLeft(mid, " ")
	}
	right := collapseSpace(text[end:to])
	if mid == "" || strings.HasSuffix(mid, " ") {
		right = strings.TrimLeft(right, " ")
	}

	ctx := strings.TrimRight(left+mid+right, " ")
	mStart := len(left)
	mEnd := mStart + len(strings.TrimRight(mid, " "))
	if mEnd > len(ctx) {
		mEnd = len(ctx)
	}
	return ctx, mStart, mEnd
}

// collapseSpace turns every whitespace run into one space, keeping a
// single space where s starts or ends with whitespace
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// emailEnd checks the right edge of an email candidate. The top-level
// domain pattern swallows a word glued after the address, so the candidate
// is cut back to the target when the target is a prefix, or at a
// lower-to-upper case change in the last label. A candidate still glued to
// a letter or digit is dropped.
func emailEnd(text string, start, end int, targetEmail string) (int, bool) {
	n := len(targetEmail)
	if n > 0 && end-start >= n && strings.EqualFold(text[start:start+n], targetEmail) && (end-start == n || alnumAt(text, start+n)) {
		return start + n, true
	}

	if dot := strings.LastIndexByte(text[start:end], '.'); dot >= 0 {
		label := text[start+dot+1 : end]
		for i := 2; i < len(label); i++ {
			if unicode.IsLower(rune(label[i-1])) && unicode.IsUpper(rune(label[i])) {
				return start + dot + 1 + i, true
			}
		}
	}

	if alnumAt(text, end) {
		return end, false
	}
	return end, true
}

func alnumAt(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// bounded reports whether the span is not glued to surrounding letters or digits
func bounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func trimStart(text string, start, end int) int {
	for start < end && strings.ContainsRune(" \t\n.-", rune(text[start])) {
		start++
	}
	return start
}

func trimEnd(text string, start, end int, cutset string) int {
	for end > start && strings.ContainsRune(cutset, rune(text[end-1])) {
		end--
	}
	return end
}
