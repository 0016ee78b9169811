package strategy

import (
	"math"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	talib "github.com/markcheno/go-talib"
)

const (
	trendContinuationName = "trend_continuation"
	trendEMAPeriod        = 20
	trendATRPeriod        = 14
)

// TrendContinuation busca entradas en pullback a favor de una tendencia establecida.
//
// Suitability:
//   - base: 0.35 + 0.35 × fuerza de tendencia, solo si la tendencia va en el sentido evaluado
//   - régimen: TRENDING +0.15, RANGING -0.20
//   - ADX: ≥25 +0.10, <15 -0.10
//   - distancia a la EMA rápida en ATRs: ≤1 (pullback) +0.10, >3 (extendido) -0.15
//   - EMAs ordenadas en el sentido del trade +0.05, en contra -0.10
//
// Contra tendencia devuelve 0.05 y sin tendencia definida 0.10.
type TrendContinuation struct {
	risk RiskParameters
}

// NewTrendContinuation crea la estrategia con stop a 1.5 ATR y objetivos a 1.5R y 3R.
func NewTrendContinuation() *TrendContinuation {
	return &TrendContinuation{
		risk: RiskParameters{
			StopATR:  1.5,
			StopPct:  0.015,
			TargetsR: []float64{1.5, 3},
			MinRR:    1.5,
			MaxRR:    3,
		},
	}
}

// Describe implementa Module.
func (s *TrendContinuation) Describe() Descriptor {
	return Descriptor{
		Name:        trendContinuationName,
		Description: "Pullback entries in the direction of an established trend",
		Category:    CategoryTrend,
	}
}

// Evaluate implementa Module.
func (s *TrendContinuation) Evaluate(state *domain.MarketState, dir domain.Direction) float64 {
	if state == nil || state.Price <= 0 {
		return 0
	}

	switch state.Trend.Direction.Aligns(dir) {
	case -1:
		return 0.05
	case 0:
		return 0.10
	}

	score := 0.35 + 0.35*clamp01(state.Trend.Strength)

	switch state.Regime {
	case domain.RegimeTrending:
		score += 0.15
	case domain.RegimeRanging:
		score -= 0.20
	}

	ind := state.Indicators
	if ind.ADX >= 25 {
		score += 0.10
	} else if ind.ADX > 0 && ind.ADX < 15 {
		score -= 0.10
	}

	if ind.EMAFast > 0 && ind.ATR > 0 {
		dist := math.Abs(state.Price-ind.EMAFast) / ind.ATR
		switch {
		case dist <= 1:
			score += 0.10
		case dist > 3:
			score -= 0.15
		}
	}

	if ind.EMAFast > 0 && ind.EMASlow > 0 {
		if (ind.EMAFast-ind.EMASlow)*dir.Sign() > 0 {
			score += 0.05
		} else {
			score -= 0.10
		}
	}

	return clamp01(score)
}

// GenerateAnnotations implementa Module: EMA rápida y línea de stop a 1.5 ATR.
func (s *TrendContinuation) GenerateAnnotations(candles []domain.Candle, _ *domain.MarketState, dir domain.Direction) []Annotation {
	if len(candles) <= trendEMAPeriod {
		return nil
	}
	c := closes(candles)
	ema := talib.Ema(c, trendEMAPeriod)
	atr := talib.Atr(highs(candles), lows(candles), c, trendATRPeriod)

	out := []Annotation{{Kind: AnnotationSeries, Label: "EMA 20", Values: ema}}
	if a := last(atr); a > 0 {
		out = append(out, Annotation{
			Kind:  AnnotationLine,
			Label: "ATR stop",
			Price: last(c) - dir.Sign()*s.risk.StopATR*a,
		})
	}
	return out
}

// EntryLogic implementa Module.
func (s *TrendContinuation) EntryLogic() EntryLogic {
	return EntryLogic{
		Trigger: "price pulls back to the fast EMA and resumes in the trend direction",
		Conditions: []string{
			"trend direction matches the trade direction",
			"fast EMA above slow EMA for longs (below for shorts)",
			"ADX at or above 25",
		},
	}
}

// RiskParameters implementa Module.
func (s *TrendContinuation) RiskParameters() RiskParameters {
	return s.risk
}
