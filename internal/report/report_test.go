package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioLens/internal/catalog"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/recorder"
)

func sampleResult() *model.ComplianceResult {
	best := model.PhilosophyMatch{
		ID:          "passive_indexing",
		DisplayName: "Passive Indexing",
		Score:       95,
		MatchedSignals: []model.SignalResult{
			{Name: "low_costs", Points: 25, Rule: "avg_expense_ratio <= 0.20"},
		},
		MissingSignals: []model.SignalResult{
			{Name: "disciplined_rebalancing", Points: 5, Rule: "rebalance_frequency in [annual, threshold]"},
		},
	}
	return &model.ComplianceResult{
		Philosophies: []model.PhilosophyMatch{
			best,
			{ID: "barbell", DisplayName: "Barbell", Score: 45, MatchedSignals: []model.SignalResult{}, MissingSignals: []model.SignalResult{}},
			{ID: "crypto_maximalist", DisplayName: "Crypto Maximalist", IsExcluded: true, ExclusionReason: "pct_crypto < 0.05"},
		},
		BestMatch: &best,
	}
}

func TestResultMarkdown(t *testing.T) {
	out := ResultMarkdown(sampleResult(), Options{})

	assert.Contains(t, out, "Philosophy Match")
	assert.Contains(t, out, "**Passive Indexing**")
	assert.Contains(t, out, "95/100")
	assert.Contains(t, out, "Crypto Maximalist")
	assert.Contains(t, out, "excluded")
	assert.Contains(t, out, "partial")
	// no detail sections without Details
	assert.NotContains(t, out, "low_costs")
	// ranked order is kept
	assert.Less(t, strings.Index(out, "Barbell"), strings.Index(out, "Crypto Maximalist"))
}

func TestResultMarkdown_Details(t *testing.T) {
	out := ResultMarkdown(sampleResult(), Options{Details: true})

	assert.Contains(t, out, "[x] low_costs +25 `avg_expense_ratio <= 0.20`")
	assert.Contains(t, out, "[ ] disciplined_rebalancing 5 `rebalance_frequency in [annual, threshold]`")
	assert.Contains(t, out, "Excluded by `pct_crypto < 0.05`")
	assert.Contains(t, out, "No signals defined.")
}

func TestResultMarkdown_TopAndNoMatch(t *testing.T) {
	res := sampleResult()
	out := ResultMarkdown(res, Options{Top: 1})
	assert.Contains(t, out, "Passive Indexing")
	assert.NotContains(t, out, "Barbell")

	res.BestMatch = nil
	out = ResultMarkdown(res, Options{})
	assert.Contains(t, out, "No philosophy matched this portfolio.")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		m    model.PhilosophyMatch
		want string
	}{
		{model.PhilosophyMatch{IsExcluded: true}, "excluded"},
		{model.PhilosophyMatch{Score: 100}, "strong"},
		{model.PhilosophyMatch{Score: 70}, "strong"},
		{model.PhilosophyMatch{Score: 40}, "partial"},
		{model.PhilosophyMatch{Score: 1}, "weak"},
		{model.PhilosophyMatch{Score: 0}, "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status(tt.m))
	}
}

func TestHistoryMarkdown(t *testing.T) {
	assert.Contains(t, HistoryMarkdown(nil), "No runs recorded.")

	runs := []recorder.Run{
		{ID: "0123456789abcdef", Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), CatalogVersion: "2025.1", BestMatch: "barbell", BestScore: 72},
		{ID: "short", Timestamp: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC), CatalogVersion: "2025.1"},
	}
	out := HistoryMarkdown(runs)
	assert.Contains(t, out, "2025-03-01 12:00:00")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "barbell")
	assert.Contains(t, out, "72")
	assert.Contains(t, out, "short")
}

func TestCatalogMarkdown(t *testing.T) {
	cat := catalog.Default()
	out := CatalogMarkdown(cat, nil)
	assert.Contains(t, out, "Philosophy Catalog "+cat.Version)
	for _, p := range cat.Philosophies {
		assert.Contains(t, out, p.ID)
	}
	assert.NotContains(t, out, "Broken Rules")

	out = CatalogMarkdown(cat, []catalog.Issue{{
		Philosophy: "p", Kind: "signal", Name: "s", Rule: "a >> 1", Err: errors.New("unexpected >"),
	}})
	assert.Contains(t, out, "Broken Rules")
	assert.Contains(t, out, "p signal s: `a >> 1` (unexpected >)")
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "# Title\n\nbody\n", false))
	assert.Equal(t, "# Title\n\nbody\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, "# Title\n\nbody text\n", true))
	assert.Contains(t, buf.String(), "Title")
	assert.Contains(t, buf.String(), "body text")
}
