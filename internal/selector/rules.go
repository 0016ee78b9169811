package selector

// rules.go: factores de confluencia.
//
// Cada regla es una función pura (snapshot, sentido, score) → score ajustado que
// multiplica por un factor acotado a [minFactor, maxFactor]. El selector las
// combina con un fold; como la multiplicación es conmutativa el orden no cambia
// el resultado, y el clamp a 1.0 se hace una sola vez al final.

import (
	"math"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/strategy"
)

const (
	minFactor = 0.2
	maxFactor = 1.5

	gapMagnetRange     = 0.02 // gaps sin rellenar a menos de 2% del precio
	newsHazardMinutes  = 30
	newsCautionMinutes = 60
	minTradesForWeight = 10
	sentimentExtreme   = 0.6
	relStrengthEdge    = 0.2
	seasonalityMinRate = 0.6
	institutionalVol   = 1.5
)

// Input es lo que ve una regla: el snapshot, el sentido evaluado y la estrategia.
type Input struct {
	State     *domain.MarketState
	Direction domain.Direction
	Strategy  strategy.Descriptor
}

// Rule es un factor de confluencia con nombre, testeable de forma aislada.
type Rule interface {
	Name() string
	// Apply devuelve el score ajustado. Nunca devuelve valores negativos.
	Apply(in Input, score float64) float64
}

// FactorRule adapta una función de factor a Rule.
type FactorRule struct {
	name   string
	factor func(in Input) float64
}

// NewFactorRule crea una regla multiplicativa.
func NewFactorRule(name string, factor func(in Input) float64) FactorRule {
	return FactorRule{name: name, factor: factor}
}

// Name implementa Rule.
func (r FactorRule) Name() string { return r.name }

// Factor devuelve el multiplicador acotado para la entrada.
func (r FactorRule) Factor(in Input) float64 {
	f := r.factor(in)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	return math.Max(minFactor, math.Min(maxFactor, f))
}

// Apply implementa Rule.
func (r FactorRule) Apply(in Input, score float64) float64 {
	return score * r.Factor(in)
}

// DefaultRules devuelve la cadena completa de factores de confluencia.
func DefaultRules() []Rule {
	return []Rule{
		NewFactorRule("trend_alignment", trendAlignment),
		NewFactorRule("asset_class_fit", assetClassFit),
		NewFactorRule("fundamental_event", fundamentalEvent),
		NewFactorRule("mtf_confluence", mtfConfluence),
		NewFactorRule("macro_correlation", macroCorrelation),
		NewFactorRule("session_timing", sessionTiming),
		NewFactorRule("smart_money_divergence", smartMoneyDivergence),
		NewFactorRule("institutional_volume", institutionalVolume),
		NewFactorRule("relative_strength", relativeStrength),
		NewFactorRule("liquidity_sweep", liquiditySweep),
		NewFactorRule("gap_magnet", gapMagnet),
		NewFactorRule("news_hazard", newsHazard),
		NewFactorRule("market_cycle", marketCycle),
		NewFactorRule("sentiment", sentiment),
		NewFactorRule("on_chain", onChain),
		NewFactorRule("options_flow", optionsFlow),
		NewFactorRule("seasonality", seasonality),
		NewFactorRule("volume_profile", volumeProfile),
		NewFactorRule("historical_performance", historicalPerformance),
	}
}

// isCounterTrend devuelve true si el sentido va contra una tendencia definida.
func isCounterTrend(state *domain.MarketState, dir domain.Direction) bool {
	return state.Trend.Direction.Aligns(dir) < 0
}

func trendAlignment(in Input) float64 {
	s := in.State.Trend.Strength
	switch in.State.Trend.Direction.Aligns(in.Direction) {
	case 1:
		return 1 + 0.3*s
	case -1:
		if in.Strategy.Reversal {
			return 0.9
		}
		return 1 - 0.6*s
	}
	return 1
}

func assetClassFit(in Input) float64 {
	if len(in.Strategy.AssetClasses) == 0 || in.State.AssetClass == "" {
		return 1
	}
	if in.Strategy.Supports(in.State.AssetClass) {
		return 1.1
	}
	return 0.6
}

func fundamentalEvent(in Input) float64 {
	switch in.State.Fundamentals.EventBias.Aligns(in.Direction) {
	case 1:
		return 1.15
	case -1:
		return 0.75
	}
	return 1
}

func mtfConfluence(in Input) float64 {
	aligned, directional := 0, 0
	for _, tb := range in.State.TimeframeBiases {
		switch tb.Bias.Aligns(in.Direction) {
		case 1:
			aligned++
			directional++
		case -1:
			directional++
		}
	}
	if directional == 0 {
		return 1
	}
	return 0.7 + 0.6*float64(aligned)/float64(directional)
}

func macroCorrelation(in Input) float64 {
	s := in.State.Macro.Strength
	switch in.State.Macro.CorrelationBias.Aligns(in.Direction) {
	case 1:
		return 1 + 0.2*s
	case -1:
		return 1 - 0.3*s
	}
	return 1
}

func sessionTiming(in Input) float64 {
	if in.State.Session.InKillzone {
		return 1.15
	}
	if in.State.Session.Name == "OFF_HOURS" {
		return 0.85
	}
	return 1
}

func smartMoneyDivergence(in Input) float64 {
	if len(in.State.Divergences) == 0 {
		return 1
	}
	switch in.State.Divergences[len(in.State.Divergences)-1].Bias.Aligns(in.Direction) {
	case 1:
		return 1.2
	case -1:
		return 0.8
	}
	return 1
}

func institutionalVolume(in Input) float64 {
	v := in.State.Volume
	high := v.Relative >= institutionalVol
	switch v.InstitutionalBias.Aligns(in.Direction) {
	case 1:
		if high {
			return 1.2
		}
		return 1.1
	case -1:
		if high {
			return 0.8
		}
		return 0.9
	}
	return 1
}

func relativeStrength(in Input) float64 {
	rs := in.State.RelativeStrength * in.Direction.Sign()
	switch {
	case rs > relStrengthEdge:
		return 1.1
	case rs < -relStrengthEdge:
		return 0.9
	}
	return 1
}

func liquiditySweep(in Input) float64 {
	sweep, ok := in.State.LatestSweep()
	if !ok {
		return 1
	}
	switch sweep.Bias.Aligns(in.Direction) {
	case 1:
		return 1.25
	case -1:
		return 0.85
	}
	return 1
}

func gapMagnet(in Input) float64 {
	price := in.State.Price
	if price <= 0 {
		return 1
	}
	for _, g := range in.State.Gaps {
		if g.Filled {
			continue
		}
		move := (g.Mid() - price) * in.Direction.Sign()
		if move > 0 && move/price <= gapMagnetRange {
			return 1.1
		}
	}
	return 1
}

func newsHazard(in Input) float64 {
	m := in.State.Fundamentals.MinutesToHighImpact
	switch {
	case m <= 0:
		return 1
	case m <= newsHazardMinutes:
		return 0.5
	case m <= newsCautionMinutes:
		return 0.8
	}
	return 1
}

func marketCycle(in Input) float64 {
	phase := in.State.Cycle
	if in.Direction == domain.Short {
		// simetría: para cortos MARKDOWN ≡ MARKUP y DISTRIBUTION ≡ ACCUMULATION
		switch phase {
		case domain.PhaseMarkdown:
			phase = domain.PhaseMarkup
		case domain.PhaseMarkup:
			phase = domain.PhaseMarkdown
		case domain.PhaseDistribution:
			phase = domain.PhaseAccumulation
		case domain.PhaseAccumulation:
			phase = domain.PhaseDistribution
		}
	}
	switch phase {
	case domain.PhaseMarkup:
		return 1.1
	case domain.PhaseAccumulation:
		return 1.05
	case domain.PhaseDistribution:
		return 0.9
	case domain.PhaseMarkdown:
		return 0.7
	}
	return 1
}

// sentiment es contrarian en los extremos y ligeramente pro-tendencia en el resto.
func sentiment(in Input) float64 {
	s := in.State.Sentiment.Score * in.Direction.Sign()
	switch {
	case s <= -sentimentExtreme:
		return 1.15
	case s >= sentimentExtreme:
		return 0.85
	case s > 0.2:
		return 1.05
	}
	return 1
}

func onChain(in Input) float64 {
	oc := in.State.OnChain
	if oc == nil {
		return 1
	}
	switch oc.Bias.Aligns(in.Direction) {
	case 1:
		return 1 + 0.2*oc.Strength
	case -1:
		return 1 - 0.2*oc.Strength
	}
	return 1
}

func optionsFlow(in Input) float64 {
	of := in.State.OptionsFlow
	if of == nil {
		return 1
	}
	switch of.Bias.Aligns(in.Direction) {
	case 1:
		return 1.1
	case -1:
		return 0.9
	}
	return 1
}

func seasonality(in Input) float64 {
	se := in.State.Seasonality
	if se == nil || se.WinRate < seasonalityMinRate {
		return 1
	}
	switch se.Bias.Aligns(in.Direction) {
	case 1:
		return 1.1
	case -1:
		return 0.9
	}
	return 1
}

// volumeProfile favorece largos en la mitad baja del value area y cortos en la
// alta; penaliza entrar fuera del value area en el sentido de la extensión.
func volumeProfile(in Input) float64 {
	vp := in.State.VolumeProfile
	price := in.State.Price
	if vp.POC <= 0 || vp.VAH <= vp.VAL || price <= 0 {
		return 1
	}
	if in.Direction == domain.Long {
		switch {
		case price >= vp.VAL && price <= vp.POC:
			return 1.1
		case price > vp.VAH:
			return 0.9
		}
		return 1
	}
	switch {
	case price >= vp.POC && price <= vp.VAH:
		return 1.1
	case price < vp.VAL:
		return 0.9
	}
	return 1
}

func historicalPerformance(in Input) float64 {
	perf, ok := in.State.Performance[in.Strategy.Name]
	if !ok || perf.Trades < minTradesForWeight {
		return 1
	}
	return 0.5 + perf.WinRate
}
