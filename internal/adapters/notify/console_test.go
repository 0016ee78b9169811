package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/adapters/notify"
	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeReport() domain.AnalysisReport {
	target := 110.0
	dominant := domain.ScoredScenario{
		Scenario:  domain.Scenario{Direction: domain.Bullish, Target: &target, Label: "continuation to range high"},
		Score:     78,
		Breakdown: domain.ScoreBreakdown{HTFBias: 1, LiquidityProximity: 0.7, StructureAlignment: 0.6},
	}
	return domain.AnalysisReport{
		Symbol: "BTCUSDT",
		Price:  104.5,
		Ranking: domain.Ranking{All: []domain.Candidate{
			{
				Strategy: "trend_continuation", Category: "TREND", Direction: domain.Long,
				Base: 0.7, Suitability: 0.91,
				Factors: []domain.FactorTrace{{Rule: "trend_alignment", Factor: 1.24}, {Rule: "sentiment", Factor: 1}},
			},
			{
				Strategy: "mean_reversion", Category: "MEAN_REVERSION", Direction: domain.Short,
				Base: 0.6, Suitability: 0.41, IsCounterTrend: true,
				Factors: []domain.FactorTrace{{Rule: "trend_alignment", Factor: 0.52}},
			},
		}},
		Resolution: domain.Resolution{
			Bias:       domain.Bullish,
			Score:      78,
			Confidence: domain.ConfidenceHigh,
			Dominant:   &dominant,
		},
	}
}

func TestConsole_NotifyAnalysis_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.NotifyAnalysis(context.Background(), makeReport()))

	out := buf.String()
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "trend_continuation")
	assert.Contains(t, out, "mean_reversion")
	assert.Contains(t, out, "0.91")
	assert.Contains(t, out, "trend_alignment×1.24")
	assert.NotContains(t, out, "sentiment×", "neutral factors are hidden")
	assert.Contains(t, out, "BULLISH")
	assert.Contains(t, out, "dominant")
	assert.Contains(t, out, "78.0")
}

func TestConsole_NotifyAnalysis_NoEdge(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	report := domain.AnalysisReport{
		Symbol: "ETHUSDT",
		Resolution: domain.Resolution{
			Bias:       domain.NoEdge,
			Confidence: domain.ConfidenceNone,
			Reason:     "no scenario reached viability threshold 50 (best 45.0 of 2)",
		},
	}
	require.NoError(t, n.NotifyAnalysis(context.Background(), report))

	out := buf.String()
	assert.Contains(t, out, "no strategy passed the suitability filter")
	assert.Contains(t, out, "NO EDGE")
	assert.Contains(t, out, "best 45.0 of 2")
}

func TestConsole_NotifyAnalysis_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	report := makeReport()
	report.Tracked = []domain.Signal{{ID: "a", Symbol: "BTCUSDT"}}
	require.NoError(t, n.NotifyAnalysis(context.Background(), report))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"), "compact output is one line")
	assert.Contains(t, out, "trend_continuation LONG 0.91")
	assert.Contains(t, out, "+1 signals")
}

func TestConsole_NotifySignals(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.NotifySignals(nil)
	assert.Contains(t, buf.String(), "no active signals")

	buf.Reset()
	n.NotifySignals([]domain.Signal{{
		ID:           "a",
		Symbol:       "BTCUSDT",
		Strategy:     "trend_continuation",
		Direction:    domain.Long,
		Status:       domain.SignalActive,
		Entry:        100,
		StopLoss:     95,
		Targets:      []domain.Target{{Price: 105, Reached: true}, {Price: 110}},
		CurrentPrice: 106,
		PnL:          6,
		CreatedAt:    time.Now().Add(-2 * time.Hour),
	}})

	out := buf.String()
	assert.Contains(t, out, "1 active signals")
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "105.0000✓")
	assert.Contains(t, out, "+6.00")
}

func TestConsole_PrintStats(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintStats(domain.SignalStats{Active: 2})
	assert.Contains(t, buf.String(), "no completed signals yet")

	buf.Reset()
	n.PrintStats(domain.SignalStats{Active: 1, Completed: 4, Wins: 3, Losses: 1, WinRate: 0.75, AvgPnL: 2.5, TotalPnL: 10})
	out := buf.String()
	assert.Contains(t, out, "3 TP / 1 SL")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "+10.0000")
}

func TestConsole_PrintHistory(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintHistory("BTCUSDT", nil)
	assert.Contains(t, buf.String(), "No analysis history for BTCUSDT")

	buf.Reset()
	n.PrintHistory("BTCUSDT", []domain.AnalysisRecord{
		{Symbol: "BTCUSDT", At: time.Now(), Price: 104, Bias: domain.Bearish, Score: 66, Confidence: domain.ConfidenceMedium},
	})
	out := buf.String()
	assert.Contains(t, out, "BEARISH")
	assert.Contains(t, out, "MEDIUM")
}

func TestConsole_PrintAnnotations(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintAnnotations("EURUSD", "", nil)
	assert.Contains(t, buf.String(), "no candidate to annotate")

	buf.Reset()
	n.PrintAnnotations("BTCUSDT", "trend_continuation LONG", []strategy.Annotation{
		{Kind: strategy.AnnotationLine, Label: "stop", Price: 98.5},
		{Kind: strategy.AnnotationZone, Label: "value area", Low: 97, High: 99},
		{Kind: strategy.AnnotationSeries, Label: "ema", Values: []float64{99, 100.25}},
	})
	out := buf.String()
	assert.Contains(t, out, "trend_continuation LONG")
	assert.Contains(t, out, "98.5000")
	assert.Contains(t, out, "97.0000 - 99.0000")
	assert.Contains(t, out, "100.2500")
}
