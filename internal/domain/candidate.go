package domain

import "time"

// FactorTrace registra un factor de confluencia aplicado a un candidato.
type FactorTrace struct {
	Rule   string
	Factor float64
}

// Candidate es la evaluación efímera de una estrategia en un sentido. Se recalcula
// en cada ciclo y nunca se persiste.
type Candidate struct {
	Strategy       string
	Category       string
	Direction      Direction
	Base           float64 // suitability devuelta por la estrategia
	Suitability    float64 // tras el pipeline de confluencia, en [0,1]
	IsCounterTrend bool
	Factors        []FactorTrace
}

// Ranking es el conjunto ordenado que produce el selector.
type Ranking struct {
	Long  []Candidate
	Short []Candidate
	All   []Candidate
}

// Best devuelve el mejor candidato del ranking, si existe.
func (r Ranking) Best() (Candidate, bool) {
	if len(r.All) == 0 {
		return Candidate{}, false
	}
	return r.All[0], true
}

// AnalysisReport es lo que produce un ciclo de análisis para un símbolo.
type AnalysisReport struct {
	Symbol     string
	Price      float64
	Ranking    Ranking
	Resolution Resolution
	Tracked    []Signal
}

// AnalysisRecord es el resumen persistido de un ciclo de análisis de un símbolo.
type AnalysisRecord struct {
	Symbol          string
	At              time.Time
	Price           float64
	Bias            Bias
	Score           float64
	Confidence      Confidence
	BestStrategy    string
	BestDirection   Direction
	BestSuitability float64
	Candidates      int
	Conflict        bool
	Reason          string
}

// Record resume el informe para persistirlo.
func (r AnalysisReport) Record(at time.Time) AnalysisRecord {
	rec := AnalysisRecord{
		Symbol:     r.Symbol,
		At:         at,
		Price:      r.Price,
		Bias:       r.Resolution.Bias,
		Score:      r.Resolution.Score,
		Confidence: r.Resolution.Confidence,
		Candidates: len(r.Ranking.All),
		Conflict:   r.Resolution.Conflict,
		Reason:     r.Resolution.Reason,
	}
	if best, ok := r.Ranking.Best(); ok {
		rec.BestStrategy = best.Strategy
		rec.BestDirection = best.Direction
		rec.BestSuitability = best.Suitability
	}
	return rec
}
