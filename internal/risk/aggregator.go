// Package risk reduces canonical findings to a risk report.
package risk

import (
	"math"

	"github.com/ppiankov/exposure/internal/model"
)

const (
	genericRecommendation  = "No exposure was found in the sources searched. Keep monitoring your online presence regularly."
	incompleteCoverageNote = "Some sources could not be searched within the scan budget; results may be incomplete."
)

// Aggregator computes the exposure percentage, level and recommendations
type Aggregator struct {
	cfg model.RiskConfig
}

// NewAggregator creates an aggregator
func NewAggregator(cfg model.RiskConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// summary is what the recommendation rules look at
type summary struct {
	level    model.RiskLevel
	relevant map[model.PIIType]int // Findings per type that plausibly refer to the subject
	high     map[model.PIIType]int // Findings per type at or above HighConfidence
	urls     map[model.PIIType]int // Distinct source URLs per relevant type
}

// Aggregate builds a report from findings. Findings are kept in the order given.
func (a *Aggregator) Aggregate(findings []model.CanonicalFinding) model.RiskReport {
	if findings == nil {
		findings = []model.CanonicalFinding{}
	}

	pct := a.Percentage(findings)
	s := a.summarize(findings, model.LevelFor(pct))

	recs := recommend(s)
	if len(findings) == 0 || len(recs) == 0 {
		recs = []string{genericRecommendation}
	}

	return model.RiskReport{
		Percentage:      pct,
		Level:           s.level,
		Findings:        findings,
		Recommendations: recs,
	}
}

// Percentage is monotone non-decreasing as findings are added: every term is
// non-negative and the bonuses only switch on
func (a *Aggregator) Percentage(findings []model.CanonicalFinding) int {
	total := 0.0
	highTypes := make(map[model.PIIType]bool)
	critical := false

	for _, f := range findings {
		conf := f.Confidence()
		weight := a.cfg.TypeWeights[f.Match.Type]
		if conf >= a.cfg.HighConfidence {
			total += weight
			highTypes[f.Match.Type] = true
		} else {
			total += weight * conf * a.cfg.LowConfidenceScale
		}
		if conf >= a.cfg.CriticalConfidence {
			critical = true
		}
	}

	total += float64(len(highTypes)) * a.cfg.DiversityBonus
	if critical {
		total += a.cfg.CriticalBonus
	}

	pct := int(math.Round(total))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

func (a *Aggregator) summarize(findings []model.CanonicalFinding, level model.RiskLevel) summary {
	s := summary{
		level:    level,
		relevant: make(map[model.PIIType]int),
		high:     make(map[model.PIIType]int),
		urls:     make(map[model.PIIType]int),
	}
	seen := make(map[model.PIIType]map[string]bool)

	for _, f := range findings {
		t := f.Match.Type
		conf := f.Confidence()
		if conf >= a.cfg.HighConfidence {
			s.high[t]++
		}
		if !f.Match.Matches() && conf < a.cfg.HighConfidence/2 {
			continue
		}
		s.relevant[t]++
		if seen[t] == nil {
			seen[t] = make(map[string]bool)
		}
		for _, u := range f.SourceURLs {
			if !seen[t][u] {
				seen[t][u] = true
				s.urls[t]++
			}
		}
	}
	return s
}

// MarkIncomplete notes in the report that some planned work never ran
func MarkIncomplete(report *model.RiskReport) {
	for _, r := range report.Recommendations {
		if r == incompleteCoverageNote {
			return
		}
	}
	report.Recommendations = append(report.Recommendations, incompleteCoverageNote)
}
