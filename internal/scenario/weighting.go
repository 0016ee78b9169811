package scenario

import (
	"math"

	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// Pesos del score compuesto: 40×HTF + 30×liquidez + 20×estructura − 10×noticias.
const (
	weightHTF       = 40
	weightLiquidity = 30
	weightStructure = 20
	weightNews      = 10

	liquidityRange    = 0.01 // pool a menos de 1% del objetivo
	structureLookback = 10
)

// Score calcula el score compuesto de un escenario en [0,100] contra el snapshot.
func Score(state *domain.MarketState, sc domain.Scenario) domain.ScoredScenario {
	b := Breakdown(state, sc)
	return domain.ScoredScenario{
		Scenario:  sc,
		Score:     Combine(b),
		Breakdown: b,
	}
}

// ScoreAll puntúa una lista de escenarios conservando el orden.
func ScoreAll(state *domain.MarketState, scenarios []domain.Scenario) []domain.ScoredScenario {
	out := make([]domain.ScoredScenario, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, Score(state, sc))
	}
	return out
}

// Combine aplica los pesos a los sub-scores y acota a [0,100].
func Combine(b domain.ScoreBreakdown) float64 {
	s := weightHTF*b.HTFBias +
		weightLiquidity*b.LiquidityProximity +
		weightStructure*b.StructureAlignment -
		weightNews*b.NewsRiskPenalty
	return math.Max(0, math.Min(100, s))
}

// Breakdown calcula los cuatro sub-scores. Un snapshot nil produce los valores
// neutros de cada componente.
func Breakdown(state *domain.MarketState, sc domain.Scenario) domain.ScoreBreakdown {
	if state == nil {
		state = &domain.MarketState{}
	}
	return domain.ScoreBreakdown{
		HTFBias:            htfBiasScore(state.HTFBias, sc.Direction),
		LiquidityProximity: liquidityProximityScore(state.LiquidityPools, sc.Target),
		StructureAlignment: structureAlignmentScore(state.RecentBreaks(structureLookback), sc.Direction),
		NewsRiskPenalty:    newsRiskPenalty(state.Fundamentals.NewsRisk, state.Validity),
	}
}

func htfBiasScore(htf, dir domain.Bias) float64 {
	switch {
	case !htf.IsDirectional():
		return 0.5
	case htf == dir:
		return 1.0
	default:
		return 0.2
	}
}

// liquidityProximityScore puntúa el pool más fuerte a menos de 1% del objetivo.
func liquidityProximityScore(pools []domain.LiquidityPool, target *float64) float64 {
	if target == nil || *target <= 0 {
		return 0.3
	}
	best := 0.4
	for _, p := range pools {
		if math.Abs(p.Price-*target)/(*target) > liquidityRange {
			continue
		}
		var s float64
		switch p.Strength {
		case domain.StrengthHigh:
			s = 1.0
		case domain.StrengthMedium:
			s = 0.7
		default:
			s = 0.5
		}
		best = math.Max(best, s)
	}
	return best
}

func structureAlignmentScore(breaks []domain.StructureBreak, dir domain.Bias) float64 {
	if !dir.IsDirectional() {
		return 0.3
	}
	aligned := 0
	for _, b := range breaks {
		if b.Bias == dir {
			aligned++
		}
	}
	switch {
	case aligned >= 3:
		return 1.0
	case aligned >= 2:
		return 0.75
	case aligned >= 1:
		return 0.5
	}
	return 0.3
}

// newsRiskPenalty devuelve la mayor de las penalizaciones aplicables.
func newsRiskPenalty(risk domain.RiskLevel, validity domain.Validity) float64 {
	var p float64
	switch risk {
	case domain.RiskHigh:
		p = 1.0
	case domain.RiskMedium:
		p = 0.5
	}
	switch validity {
	case domain.ValiditySuspended:
		p = math.Max(p, 1.0)
	case domain.ValidityDegraded:
		p = math.Max(p, 0.6)
	}
	return p
}
