package strategy

import (
	"github.com/alejandrodnm/stratdesk/internal/domain"
	talib "github.com/markcheno/go-talib"
)

const (
	donchianBreakoutName = "donchian_breakout"
	donchianPeriod       = 20
)

// DonchianBreakout es la ruptura de canal al estilo turtle: compra máximos de N
// periodos y vende mínimos, confirmada por volumen y estructura.
type DonchianBreakout struct {
	risk RiskParameters
}

// NewDonchianBreakout crea la estrategia con stop a 2 ATR y objetivos a 2R y 4R.
func NewDonchianBreakout() *DonchianBreakout {
	return &DonchianBreakout{
		risk: RiskParameters{
			StopATR:  2.0,
			StopPct:  0.02,
			TargetsR: []float64{2, 4},
			MinRR:    2,
			MaxRR:    4,
		},
	}
}

// Describe implementa Module.
func (s *DonchianBreakout) Describe() Descriptor {
	return Descriptor{
		Name:        donchianBreakoutName,
		Description: "Turtle-style Donchian channel breakout with volume confirmation",
		Category:    CategoryBreakout,
		AssetClasses: []domain.AssetClass{
			domain.AssetCrypto, domain.AssetCommodity, domain.AssetIndex, domain.AssetForex,
		},
	}
}

// Evaluate implementa Module.
func (s *DonchianBreakout) Evaluate(state *domain.MarketState, dir domain.Direction) float64 {
	if state == nil || state.Price <= 0 {
		return 0
	}
	ind := state.Indicators
	if ind.DonchianHigh <= 0 || ind.DonchianLow <= 0 || ind.ATR <= 0 {
		return 0
	}

	// distancia al borde del canal en el sentido del trade, en ATRs (≤0 = ya roto)
	var dist float64
	if dir == domain.Long {
		dist = (ind.DonchianHigh - state.Price) / ind.ATR
	} else {
		dist = (state.Price - ind.DonchianLow) / ind.ATR
	}

	var score float64
	switch {
	case dist <= 0:
		score = 0.55
	case dist <= 0.5:
		score = 0.35
	default:
		score = 0.10
	}

	if state.Volume.Relative >= 1.5 {
		score += 0.15
	}
	switch state.Regime {
	case domain.RegimeTransitional, domain.RegimeTrending:
		score += 0.10
	case domain.RegimeRanging:
		score -= 0.10
	}
	if alignedBreaks(state, dir, 3, "BOS") > 0 {
		score += 0.10
	}

	return clamp01(score)
}

// GenerateAnnotations implementa Module: bordes del canal de Donchian.
func (s *DonchianBreakout) GenerateAnnotations(candles []domain.Candle, _ *domain.MarketState, _ domain.Direction) []Annotation {
	if len(candles) < donchianPeriod {
		return nil
	}
	upper := talib.Max(highs(candles), donchianPeriod)
	lower := talib.Min(lows(candles), donchianPeriod)
	return []Annotation{
		{Kind: AnnotationSeries, Label: "Donchian high", Values: upper},
		{Kind: AnnotationSeries, Label: "Donchian low", Values: lower},
		{Kind: AnnotationZone, Label: "Donchian channel", Low: last(lower), High: last(upper)},
	}
}

// EntryLogic implementa Module.
func (s *DonchianBreakout) EntryLogic() EntryLogic {
	return EntryLogic{
		Trigger: "price trades through the 20-period Donchian high (low for shorts)",
		Conditions: []string{
			"relative volume at or above 1.5",
			"recent break of structure in the trade direction",
		},
	}
}

// RiskParameters implementa Module.
func (s *DonchianBreakout) RiskParameters() RiskParameters {
	return s.risk
}
