// Package dedupe merges near-identical findings across pages and queries.
package dedupe

import (
	"sort"

	"github.com/ppiankov/exposure/internal/extract"
	"github.com/ppiankov/exposure/internal/model"
)

// DefaultThreshold is the context similarity above which two matches merge
const DefaultThreshold = 0.6

// Deduper merges duplicate matches
type Deduper struct {
	threshold float64
}

// New creates a deduper; a non-positive threshold uses DefaultThreshold
func New(threshold float64) *Deduper {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Deduper{threshold: threshold}
}

// Dedupe wraps each match as a single finding and merges duplicates
func (d *Deduper) Dedupe(matches []model.ExtractedMatch) []model.CanonicalFinding {
	findings := make([]model.CanonicalFinding, 0, len(matches))
	for _, m := range matches {
		var urls []string
		if m.SourceURL != "" {
			urls = []string{m.SourceURL}
		}
		findings = append(findings, model.CanonicalFinding{Match: m, MergedCount: 1, SourceURLs: urls})
	}
	return d.Merge(findings)
}

// Merge merges already canonical findings. Two findings are duplicates when
// they share type and normalized value and either share a source URL or have
// contexts whose token Jaccard similarity reaches the threshold. Duplicates
// are merged transitively, so Merge(Merge(x)) == Merge(x).
func (d *Deduper) Merge(findings []model.CanonicalFinding) []model.CanonicalFinding {
	type item struct {
		finding model.CanonicalFinding
		order   int
		tokens  map[string]struct{}
	}

	groups := make(map[string][]int)
	var keys []string
	items := make([]item, len(findings))
	for i, f := range findings {
		items[i] = item{finding: f, order: i, tokens: tokenSet(f.Match.RawContext)}
		k := key(f.Match)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}

	uf := newUnionFind(len(findings))
	for _, k := range keys {
		members := groups[k]
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				ia, ib := items[members[a]], items[members[b]]
				if shareURL(ia.finding.SourceURLs, ib.finding.SourceURLs) ||
					jaccard(ia.tokens, ib.tokens) >= d.threshold {
					uf.union(members[a], members[b])
				}
			}
		}
	}

	// Components in first-seen order of their earliest member
	components := make(map[int][]int)
	var roots []int
	for i := range items {
		r := uf.find(i)
		if _, ok := components[r]; !ok {
			roots = append(roots, r)
		}
		components[r] = append(components[r], i)
	}

	type merged struct {
		finding model.CanonicalFinding
		order   int
	}
	out := make([]merged, 0, len(roots))
	for _, r := range roots {
		members := components[r]
		best := members[0]
		count := 0
		var urls []string
		seen := make(map[string]bool)
		for _, i := range members {
			f := items[i].finding
			if f.Confidence() > items[best].finding.Confidence() {
				best = i
			}
			count += max(f.MergedCount, 1)
			for _, u := range f.SourceURLs {
				if !seen[u] {
					seen[u] = true
					urls = append(urls, u)
				}
			}
		}
		out = append(out, merged{
			finding: model.CanonicalFinding{
				Match:       items[best].finding.Match,
				MergedCount: count,
				SourceURLs:  urls,
			},
			order: items[members[0]].order,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].finding.Confidence(), out[j].finding.Confidence()
		if ci != cj {
			return ci > cj
		}
		return out[i].order < out[j].order
	})

	result := make([]model.CanonicalFinding, len(out))
	for i, m := range out {
		result[i] = m.finding
	}
	return result
}

// Dedupe merges matches with the given similarity threshold
func Dedupe(matches []model.ExtractedMatch, threshold float64) []model.CanonicalFinding {
	return New(threshold).Dedupe(matches)
}

// DedupeFindings re-merges canonical findings with the given similarity threshold
func DedupeFindings(findings []model.CanonicalFinding, threshold float64) []model.CanonicalFinding {
	return New(threshold).Merge(findings)
}

func key(m model.ExtractedMatch) string {
	return string(m.Type) + "\x00" + m.Kind + "\x00" + extract.NormalizeValue(m.Type, m.Value)
}

func shareURL(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range extract.Tokens(s) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b|; two empty contexts are identical
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root so roots are first-seen members
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
