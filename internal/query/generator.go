// Package query derives search queries from a subject's identifiers.
package query

import (
	"strings"

	"github.com/ppiankov/exposure/internal/model"
	"golang.org/x/text/cases"
)

// Generator turns a PersonalInfo into an ordered, deduplicated query set
type Generator struct {
	maxSubsetSize int
	siteDomains   []string
}

// NewGenerator creates a generator from query configuration
func NewGenerator(cfg model.QueryConfig) *Generator {
	maxSize := cfg.MaxSubsetSize
	if maxSize <= 0 {
		maxSize = 2
	}

	domains := make([]string, 0, len(cfg.SiteDomains))
	for _, d := range cfg.SiteDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}

	return &Generator{
		maxSubsetSize: maxSize,
		siteDomains:   domains,
	}
}

// Generate returns quoted single-field queries, then multi-field combinations,
// then site-scoped single-field variants. Output is unique by normalized text.
func (g *Generator) Generate(info model.PersonalInfo) ([]model.Query, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	present := info.Present()
	seen := make(map[string]bool)
	var queries []model.Query

	add := func(q model.Query) {
		key := g.normalize(q.Text)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		queries = append(queries, q)
	}

	limit := g.maxSubsetSize
	if limit > len(present) {
		limit = len(present)
	}

	for size := 1; size <= limit; size++ {
		for _, subset := range combinations(present, size) {
			add(model.Query{
				Text:         quoteAll(info, subset),
				TargetFields: subset,
			})
		}
	}

	for _, f := range present {
		phrase := quote(info.Value(f))
		for _, domain := range g.siteDomains {
			add(model.Query{
				Text:         phrase + " site:" + domain,
				TargetFields: []model.Field{f},
				EngineHint:   domain,
			})
		}
	}

	return queries, nil
}

// normalize case-folds and collapses whitespace. Casers are stateful, so one is built per call.
func (g *Generator) normalize(text string) string {
	return strings.Join(strings.Fields(cases.Fold().String(text)), " ")
}

func quoteAll(info model.PersonalInfo, fields []model.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, quote(info.Value(f)))
	}
	return strings.Join(parts, " ")
}

func quote(value string) string {
	value = strings.ReplaceAll(value, `"`, "")
	return `"` + strings.Join(strings.Fields(value), " ") + `"`
}

// combinations returns the size-k subsets of fields, preserving field order
func combinations(fields []model.Field, k int) [][]model.Field {
	var out [][]model.Field
	var walk func(start int, cur []model.Field)
	walk = func(start int, cur []model.Field) {
		if len(cur) == k {
			subset := make([]model.Field, k)
			copy(subset, cur)
			out = append(out, subset)
			return
		}
		for i := start; i < len(fields); i++ {
			walk(i+1, append(cur, fields[i]))
		}
	}
	walk(0, nil)
	return out
}
