package strategy

import (
	"math"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

const (
	liquiditySweepName = "liquidity_sweep"
	// objetivo opuesto considerado alcanzable
	sweepTargetRange = 0.03
)

// LiquiditySweep opera el giro tras una barrida de liquidez confirmada por un
// cambio de carácter (CHOCH).
type LiquiditySweep struct {
	risk RiskParameters
}

// NewLiquiditySweep crea la estrategia con stop a 1 ATR y objetivos a 2R y 3R.
func NewLiquiditySweep() *LiquiditySweep {
	return &LiquiditySweep{
		risk: RiskParameters{
			StopATR:  1.0,
			StopPct:  0.01,
			TargetsR: []float64{2, 3},
			MinRR:    2,
			MaxRR:    3,
		},
	}
}

// Describe implementa Module.
func (s *LiquiditySweep) Describe() Descriptor {
	return Descriptor{
		Name:        liquiditySweepName,
		Description: "Reversal after a liquidity sweep confirmed by a change of character",
		Category:    CategorySmartMoney,
		Reversal:    true,
	}
}

// Evaluate implementa Module.
func (s *LiquiditySweep) Evaluate(state *domain.MarketState, dir domain.Direction) float64 {
	if state == nil || state.Price <= 0 {
		return 0
	}
	sweep, ok := state.LatestSweep()
	if !ok {
		return 0.05
	}

	var score float64
	switch sweep.Bias.Aligns(dir) {
	case 1:
		score = 0.45
	case -1:
		return 0.05
	default:
		score = 0.15
	}

	if alignedBreaks(state, dir, 3, "CHOCH") > 0 {
		score += 0.20
	}
	for _, d := range state.Divergences {
		if d.Bias.Aligns(dir) > 0 {
			score += 0.15
			break
		}
	}
	if s.hasOpposingPool(state, dir) {
		score += 0.10
	}
	if state.Session.InKillzone {
		score += 0.05
	}

	return clamp01(score)
}

// hasOpposingPool devuelve true si hay un pool de liquidez en el sentido del
// trade a menos de sweepTargetRange del precio.
func (s *LiquiditySweep) hasOpposingPool(state *domain.MarketState, dir domain.Direction) bool {
	for _, p := range state.LiquidityPools {
		move := (p.Price - state.Price) * dir.Sign()
		if move > 0 && move/state.Price <= sweepTargetRange {
			return true
		}
	}
	return false
}

// GenerateAnnotations implementa Module: nivel barrido y pools como zonas.
func (s *LiquiditySweep) GenerateAnnotations(_ []domain.Candle, state *domain.MarketState, _ domain.Direction) []Annotation {
	if state == nil {
		return nil
	}
	var out []Annotation
	if sweep, ok := state.LatestSweep(); ok {
		out = append(out, Annotation{Kind: AnnotationLine, Label: "swept liquidity", Price: sweep.Price})
	}
	for _, p := range state.LiquidityPools {
		half := math.Max(state.Indicators.ATR*0.25, p.Price*0.001)
		out = append(out, Annotation{
			Kind:  AnnotationZone,
			Label: string(p.Strength) + " liquidity",
			Low:   p.Price - half,
			High:  p.Price + half,
		})
	}
	return out
}

// EntryLogic implementa Module.
func (s *LiquiditySweep) EntryLogic() EntryLogic {
	return EntryLogic{
		Trigger: "change of character after price sweeps resting liquidity",
		Conditions: []string{
			"latest sweep implies the trade direction",
			"opposing liquidity pool within 3% as a target",
		},
	}
}

// RiskParameters implementa Module.
func (s *LiquiditySweep) RiskParameters() RiskParameters {
	return s.risk
}
