package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/predictor/internal/domain"
)

func TestScanSummary_EmptyCycle(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleWriter(&buf)

	c.ScanSummary("tier1", nil)

	assert.Contains(t, buf.String(), "no tradeable markets")
	assert.Contains(t, buf.String(), "[tier1]")
}

func TestScanSummary_SplitsExecutedAndSkipped(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleWriter(&buf)

	c.ScanSummary("tier1", []domain.TradeCandidate{
		{
			Market:              domain.Market{Question: "Will the bill pass before the recess?"},
			Side:                domain.SideBuyYes,
			MarketPrice:         0.60,
			AdjustedProbability: 0.70,
			AdjustedConfidence:  0.78,
			CalculatedEdge:      0.08,
			PositionSize:        125,
			Score:               0.0013,
		},
		{
			Market:     domain.Market{Question: "Other market"},
			Side:       domain.SideSkip,
			SkipReason: domain.SkipEdgeBelowThreshold,
		},
		{
			Market:     domain.Market{Question: "Third market"},
			Side:       domain.SideSkip,
			SkipReason: domain.SkipEdgeBelowThreshold,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "1 executed, 2 skipped")
	assert.Contains(t, out, "BUY_YES")
	assert.Contains(t, out, "edge_below_threshold=2")
}

func TestDailySummary_IncludesParseFailuresOnlyWhenPresent(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleWriter(&buf)

	c.DailySummary(domain.DailyStats{
		Date:           "2026-03-10",
		Mode:           "active",
		TradesExecuted: 3,
		RealizedPnL:    -12.5,
		Bankroll:       1987.5,
	})
	out := buf.String()
	assert.Contains(t, out, "2026-03-10")
	assert.Contains(t, out, "$-12.50")
	assert.NotContains(t, out, "Parse failures")

	buf.Reset()
	c.DailySummary(domain.DailyStats{Date: "2026-03-11", Mode: "observe_only", ParseFailures: 2})
	assert.Contains(t, buf.String(), "Parse failures:    2")
}
