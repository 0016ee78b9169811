package strategy

import (
	"math"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func highs(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func lows(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

// alignedBreaks cuenta las rupturas de estructura alineadas con dir entre las últimas n.
func alignedBreaks(state *domain.MarketState, dir domain.Direction, n int, kind string) int {
	count := 0
	for _, b := range state.RecentBreaks(n) {
		if kind != "" && b.Kind != kind {
			continue
		}
		if b.Bias.Aligns(dir) > 0 {
			count++
		}
	}
	return count
}
