package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/exposure/internal/llm"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderFixture() *model.RiskReport {
	return &model.RiskReport{
		ScanID:     "scan-1",
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:   1500 * time.Millisecond,
		Percentage: 43,
		Level:      model.RiskMedium,
		Findings: []model.CanonicalFinding{
			{
				Match:       model.ExtractedMatch{Type: model.PIIEmail, Value: "jane@x.com", RawConfidence: 0.88},
				MergedCount: 2,
				SourceURLs:  []string{"https://a.com/p", "https://b.com/q"},
			},
			{
				Match:       model.ExtractedMatch{Type: model.PIIOther, Kind: "ssn", Value: "123456789", RawConfidence: 0.2},
				MergedCount: 1,
				SourceURLs:  []string{"https://c.com/r"},
			},
		},
		Recommendations: []string{"Enable two-factor authentication on accounts tied to this email."},
		Coverage:        model.Coverage{QueriesPlanned: 4, QueriesRun: 3, PagesFetched: 5, Partial: true},
	}
}

func TestRenderer_RenderJSON_KeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, NewRenderer(false).RenderJSON(renderFixture(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded model.RiskReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "scan-1", decoded.ScanID)
	assert.Equal(t, model.RiskMedium, decoded.Level)
	require.Len(t, decoded.Findings, 2)
	assert.Equal(t, "jane@x.com", decoded.Findings[0].Match.Value)
	assert.True(t, decoded.Coverage.Partial)
}

func TestRenderer_RenderMarkdown_MasksValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	summary := &llm.Summary{Fallback: true, Text: llm.FallbackAnalysis(model.RiskMedium)}
	require.NoError(t, NewRenderer(false).RenderMarkdown(renderFixture(), summary, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(data)

	assert.Contains(t, md, "# Exposure Report")
	assert.Contains(t, md, "43% (medium)")
	assert.Contains(t, md, "Coverage was incomplete")
	assert.Contains(t, md, "j***@x.com")
	assert.NotContains(t, md, "jane@x.com")
	assert.Contains(t, md, "other/ssn")
	assert.Contains(t, md, "Queries: 3 of 4 run")
	assert.Contains(t, md, llm.GeneralRecommendations[0])
	assert.Contains(t, md, "## Exposure Analysis")
	assert.Contains(t, md, "Moderate privacy exposure")
}

func TestRenderer_RenderMarkdown_NoFindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, NewRenderer(false).RenderMarkdown(&model.RiskReport{Level: model.RiskLow}, nil, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "_No findings._")
	assert.NotContains(t, string(data), "Exposure Analysis")
}

func TestRenderer_RenderSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(false).RenderSummary(&buf, renderFixture()))

	out := buf.String()
	assert.Contains(t, out, "Exposure: 43% (medium)")
	assert.Contains(t, out, "Findings: 2")
	assert.Contains(t, out, "j***@x.com (2 sources)")
	assert.Contains(t, out, "12******* (1 source)")
	assert.Contains(t, out, "Coverage incomplete")
	assert.NotContains(t, out, "jane@x.com")
}

func TestRenderer_RenderSummary_ShowValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(true).RenderSummary(&buf, renderFixture()))
	assert.Contains(t, buf.String(), "jane@x.com")
}

func TestRenderer_RenderSummary_Truncates(t *testing.T) {
	report := &model.RiskReport{}
	for i := 0; i < 12; i++ {
		report.Findings = append(report.Findings, model.CanonicalFinding{
			Match: model.ExtractedMatch{Type: model.PIIPhone, Value: "4155550100"},
		})
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(false).RenderSummary(&buf, report))
	assert.Contains(t, buf.String(), "... and 2 more")
	assert.Equal(t, 10, strings.Count(buf.String(), "******0100"))
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		typ  model.PIIType
		in   string
		want string
	}{
		{model.PIIEmail, "jane@x.com", "j***@x.com"},
		{model.PIIEmail, "@x.com", "@*****"},
		{model.PIIPhone, "4155550100", "******0100"},
		{model.PIIPhone, "0100", "****"},
		{model.PIIAddress, "12 oak st", "12*******"},
		{model.PIINameContext, "jane roe", "ja******"},
		{model.PIIOther, "é", "*"},
		{model.PIIEmail, "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskValue(tt.typ, tt.in), "%s %q", tt.typ, tt.in)
	}
}
