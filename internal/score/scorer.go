// Package score assigns confidence to extracted matches.
package score

import (
	"sort"
	"strings"

	"github.com/ppiankov/exposure/internal/extract"
	"github.com/ppiankov/exposure/internal/model"
)

// genericLocalParts are role mailbox names that rarely identify a person
var genericLocalParts = map[string]bool{
	"info": true, "admin": true, "contact": true, "support": true,
	"hello": true, "sales": true, "noreply": true, "no-reply": true, "webmaster": true,
}

// Scorer combines exactness, co-occurrence, source reputation and
// common-value penalties into a confidence in [0,1]
type Scorer struct {
	cfg         model.ScoringConfig
	reputation  *ReputationClassifier
	commonNames map[string]bool
}

// NewScorer creates a scorer from weights
func NewScorer(cfg model.ScoringConfig) *Scorer {
	common := make(map[string]bool, len(cfg.CommonNames))
	for _, n := range cfg.CommonNames {
		common[extract.NormalizeText(n)] = true
	}
	return &Scorer{
		cfg:         cfg,
		reputation:  NewReputationClassifier(cfg.DomainTiers),
		commonNames: common,
	}
}

// Score returns the confidence of one match
func (s *Scorer) Score(match model.ExtractedMatch, info model.PersonalInfo, meta model.PageMeta) float64 {
	return s.score(match, extract.NewTarget(info), meta)
}

// ScoreAll replaces RawConfidence on every match and returns the scored copies
func (s *Scorer) ScoreAll(matches []model.ExtractedMatch, info model.PersonalInfo, meta model.PageMeta) []model.ExtractedMatch {
	target := extract.NewTarget(info)
	scored := make([]model.ExtractedMatch, len(matches))
	for i, m := range matches {
		m.RawConfidence = s.score(m, target, meta)
		scored[i] = m
	}
	return scored
}

func (s *Scorer) score(match model.ExtractedMatch, target extract.Target, meta model.PageMeta) float64 {
	total := s.cfg.UnmatchedWeight
	switch {
	case match.Exact:
		total = s.cfg.ExactWeight
	case match.Matches():
		total = s.cfg.PartialWeight
	}

	co := float64(CoOccurrence(match, target)) * s.cfg.CoOccurrenceWeight
	if s.cfg.CoOccurrenceCap > 0 && co > s.cfg.CoOccurrenceCap {
		co = s.cfg.CoOccurrenceCap
	}
	total += co

	pageURL := meta.URL
	if pageURL == "" {
		pageURL = match.SourceURL
	}
	total += s.cfg.ReputationWeight * s.reputation.Reputation(pageURL)

	if s.isCommon(match) {
		total -= s.cfg.CommonValuePenalty
	}
	if meta.FromSnippet {
		total -= s.cfg.SnippetPenalty
	}

	return clamp(total)
}

// CoOccurrence counts the target fields, other than the match's own, that
// appear in the match context outside the match itself
func CoOccurrence(match model.ExtractedMatch, target extract.Target) int {
	own, _ := match.Type.FieldFor()
	context := match.ContextWithoutMatch()
	n := 0
	for _, f := range model.AllFields {
		if f == own {
			continue
		}
		if target.Appears(f, context) {
			n++
		}
	}
	return n
}

// isCommon reports whether a value is too generic to single anyone out
func (s *Scorer) isCommon(match model.ExtractedMatch) bool {
	switch match.Type {
	case model.PIINameContext:
		tokens := strings.Fields(match.Value)
		if len(tokens) < 2 {
			return true
		}
		for _, tok := range tokens {
			if !s.commonNames[tok] {
				return false
			}
		}
		return true
	case model.PIIEmail:
		local, _, _ := strings.Cut(match.Value, "@")
		return genericLocalParts[local]
	case model.PIIPhone:
		return len(match.Value) < 10
	default:
		return false
	}
}

// Rank sorts matches by confidence, breaking ties by co-occurrence count.
// The sort is stable so equal matches keep page order.
func (s *Scorer) Rank(matches []model.ExtractedMatch, info model.PersonalInfo) {
	target := extract.NewTarget(info)
	co := make(map[int]int, len(matches))
	idx := make([]int, len(matches))
	for i := range matches {
		idx[i] = i
		co[i] = CoOccurrence(matches[i], target)
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ma, mb := matches[idx[a]], matches[idx[b]]
		if ma.RawConfidence != mb.RawConfidence {
			return ma.RawConfidence > mb.RawConfidence
		}
		return co[idx[a]] > co[idx[b]]
	})

	sorted := make([]model.ExtractedMatch, len(matches))
	for i, j := range idx {
		sorted[i] = matches[j]
	}
	copy(matches, sorted)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
