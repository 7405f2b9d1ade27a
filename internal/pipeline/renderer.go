package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/ppiankov/exposure/internal/llm"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/rotisserie/eris"
)

// Renderer writes reports to files and terminals. JSON output always
// carries full values; Markdown and terminal output mask them unless
// showValues is set.
type Renderer struct {
	showValues bool
}

// NewRenderer creates a renderer
func NewRenderer(showValues bool) *Renderer {
	return &Renderer{showValues: showValues}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.RiskReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal report")
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report and an optional narrative as Markdown
func (r *Renderer) RenderMarkdown(report *model.RiskReport, summary *llm.Summary, path string) error {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	r.writeHeader(md, report)
	r.writeFindings(md, report)
	r.writeRecommendations(md, report)
	r.writeCoverage(md, report)

	if summary != nil {
		md.PlainText(strings.Replace(llm.RenderSeparateMarkdown(summary), "# ", "## ", 1))
	}

	if err := md.Build(); err != nil {
		return eris.Wrap(err, "build markdown")
	}
	return writeFile(path, buf.Bytes())
}

func (r *Renderer) writeHeader(md *markdown.Markdown, report *model.RiskReport) {
	md.H1("Exposure Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scan ID", report.ScanID},
			{"Started", report.StartedAt.Format(time.RFC3339)},
			{"Duration", report.Duration.Round(time.Millisecond).String()},
			{"Exposure", fmt.Sprintf("%d%% (%s)", report.Percentage, report.Level)},
		},
	})
	md.PlainText("")

	switch {
	case report.Coverage.Partial || len(report.Coverage.SourcesFailed) > 0:
		md.Warningf("Coverage was incomplete; the percentage may understate exposure.")
	case report.Level == model.RiskHigh:
		md.Cautionf("High exposure. Start with the recommendations below.")
	case len(report.Findings) == 0:
		md.Tip("Nothing matching the searched fields was found.")
	}
	md.PlainText("")
}

func (r *Renderer) writeFindings(md *markdown.Markdown, report *model.RiskReport) {
	md.H2("Findings")
	md.PlainText("")
	if len(report.Findings) == 0 {
		md.PlainText("_No findings._")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Findings))
	for i, f := range report.Findings {
		rows[i] = []string{
			typeLabel(f.Match),
			escapeCell(r.value(f.Match)),
			strconv.FormatFloat(f.Confidence(), 'f', 2, 64),
			strconv.Itoa(f.MergedCount),
			escapeCell(strings.Join(f.SourceURLs, " ")),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Type", "Value", "Confidence", "Seen", "Sources"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (r *Renderer) writeRecommendations(md *markdown.Markdown, report *model.RiskReport) {
	md.H2("Recommendations")
	md.PlainText("")
	recs := make([]string, 0, len(report.Recommendations)+len(llm.GeneralRecommendations))
	recs = append(recs, report.Recommendations...)
	recs = append(recs, llm.GeneralRecommendations...)
	md.BulletList(recs...)
	md.PlainText("")
}

func (r *Renderer) writeCoverage(md *markdown.Markdown, report *model.RiskReport) {
	c := report.Coverage
	md.H2("Coverage")
	md.PlainText("")
	items := []string{
		fmt.Sprintf("Queries: %d of %d run", c.QueriesRun, c.QueriesPlanned),
		fmt.Sprintf("Pages: %d fetched, %d blocked by robots.txt, %d failed", c.PagesFetched, c.PagesBlocked, c.PagesFailed),
	}
	if len(c.SourcesFailed) > 0 {
		items = append(items, "Failed sources: "+strings.Join(c.SourcesFailed, ", "))
	}
	md.BulletList(items...)
	md.PlainText("")
}

// RenderSummary prints a short terminal summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.RiskReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Exposure: %d%% (%s)\n", report.Percentage, report.Level)
	fmt.Fprintf(&b, "Findings: %d\n", len(report.Findings))

	for i, f := range report.Findings {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(report.Findings)-10)
			break
		}
		fmt.Fprintf(&b, "  [%.2f] %-14s %s (%d source", f.Confidence(), typeLabel(f.Match), r.value(f.Match), len(f.SourceURLs))
		if len(f.SourceURLs) != 1 {
			b.WriteString("s")
		}
		b.WriteString(")\n")
	}

	if report.Coverage.Partial || len(report.Coverage.SourcesFailed) > 0 {
		b.WriteString("Coverage incomplete\n")
	}
	if len(report.Recommendations) > 0 {
		b.WriteString("Recommendations:\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "write summary")
	}
	return nil
}

func (r *Renderer) value(m model.ExtractedMatch) string {
	if r.showValues {
		return m.Value
	}
	return MaskValue(m.Type, m.Value)
}

// MaskValue hides most of a value while keeping it recognizable to its owner
func MaskValue(t model.PIIType, v string) string {
	if v == "" {
		return ""
	}
	switch t {
	case model.PIIEmail:
		local, domain, ok := strings.Cut(v, "@")
		if !ok || local == "" {
			return maskTail(v, 1)
		}
		return string([]rune(local)[:1]) + "***@" + domain
	case model.PIIPhone:
		if len(v) <= 4 {
			return strings.Repeat("*", len(v))
		}
		return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
	default:
		return maskTail(v, 2)
	}
}

// maskTail keeps the first keep runes
func maskTail(v string, keep int) string {
	runes := []rune(v)
	if len(runes) <= keep {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:keep]) + strings.Repeat("*", len(runes)-keep)
}

func typeLabel(m model.ExtractedMatch) string {
	if m.Kind != "" {
		return string(m.Type) + "/" + m.Kind
	}
	return string(m.Type)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create directory %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}
