package strategy

import (
	"github.com/alejandrodnm/stratdesk/internal/domain"
	talib "github.com/markcheno/go-talib"
)

const (
	meanReversionName = "mean_reversion"
	bbandsPeriod      = 20
)

// MeanReversion opera extremos de RSI y bandas de Bollinger dentro de rangos.
type MeanReversion struct {
	risk RiskParameters
}

// NewMeanReversion crea la estrategia con stop a 1 ATR y objetivos a 1R y 2R.
func NewMeanReversion() *MeanReversion {
	return &MeanReversion{
		risk: RiskParameters{
			StopATR:  1.0,
			StopPct:  0.01,
			TargetsR: []float64{1, 2},
			MinRR:    1,
			MaxRR:    2,
		},
	}
}

// Describe implementa Module.
func (s *MeanReversion) Describe() Descriptor {
	return Descriptor{
		Name:        meanReversionName,
		Description: "Fades RSI and Bollinger extremes back toward the mean in ranging markets",
		Category:    CategoryMeanReversion,
		Reversal:    true,
	}
}

// Evaluate implementa Module.
func (s *MeanReversion) Evaluate(state *domain.MarketState, dir domain.Direction) float64 {
	if state == nil || state.Price <= 0 {
		return 0
	}
	ind := state.Indicators
	if ind.RSI <= 0 && ind.BollingerUpper <= 0 && ind.BollingerLower <= 0 {
		return 0
	}

	score := 0.20
	switch state.Regime {
	case domain.RegimeRanging:
		score += 0.30
	case domain.RegimeTrending:
		score -= 0.15
	}

	if ind.RSI > 0 {
		oversold := ind.RSI
		if dir == domain.Short {
			oversold = 100 - ind.RSI
		}
		switch {
		case oversold <= 30:
			score += 0.30
		case oversold <= 40:
			score += 0.15
		case oversold >= 60:
			score -= 0.10
		}
	}

	if dir == domain.Long && ind.BollingerLower > 0 && state.Price <= ind.BollingerLower {
		score += 0.20
	}
	if dir == domain.Short && ind.BollingerUpper > 0 && state.Price >= ind.BollingerUpper {
		score += 0.20
	}

	if state.Trend.Direction.Aligns(dir) < 0 && state.Trend.Strength > 0.6 {
		score -= 0.30
	}

	return clamp01(score)
}

// GenerateAnnotations implementa Module: bandas de Bollinger 20/2.
func (s *MeanReversion) GenerateAnnotations(candles []domain.Candle, _ *domain.MarketState, _ domain.Direction) []Annotation {
	if len(candles) <= bbandsPeriod {
		return nil
	}
	upper, middle, lower := talib.BBands(closes(candles), bbandsPeriod, 2, 2, talib.SMA)
	return []Annotation{
		{Kind: AnnotationSeries, Label: "BB upper", Values: upper},
		{Kind: AnnotationSeries, Label: "BB mid", Values: middle},
		{Kind: AnnotationSeries, Label: "BB lower", Values: lower},
	}
}

// EntryLogic implementa Module.
func (s *MeanReversion) EntryLogic() EntryLogic {
	return EntryLogic{
		Trigger: "close back inside the Bollinger band after an RSI extreme",
		Conditions: []string{
			"regime is RANGING",
			"RSI below 30 for longs (above 70 for shorts)",
		},
	}
}

// RiskParameters implementa Module.
func (s *MeanReversion) RiskParameters() RiskParameters {
	return s.risk
}
