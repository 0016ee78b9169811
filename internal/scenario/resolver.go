package scenario

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/metrics"
)

const (
	defaultViabilityThreshold = 50
	defaultMaxAlternatives    = 2

	highConfidenceScore   = 75
	mediumConfidenceScore = 60
)

// Config contiene los parámetros del resolver.
type Config struct {
	// ViabilityThreshold: escenarios con score menor quedan descartados.
	ViabilityThreshold float64
	MaxAlternatives    int
}

// DefaultConfig devuelve umbral 50 y dos alternativas.
func DefaultConfig() Config {
	return Config{
		ViabilityThreshold: defaultViabilityThreshold,
		MaxAlternatives:    defaultMaxAlternatives,
	}
}

// Resolver reduce un conjunto de escenarios a un sesgo dominante.
type Resolver struct {
	cfg     Config
	metrics *metrics.Recorder
}

// NewResolver crea un Resolver. m puede ser nil.
func NewResolver(cfg Config, m *metrics.Recorder) *Resolver {
	if cfg.MaxAlternatives < 0 {
		cfg.MaxAlternatives = 0
	}
	return &Resolver{cfg: cfg, metrics: m}
}

// Evaluate puntúa los escenarios contra el snapshot y resuelve el sesgo dominante
// usando el sesgo HTF del propio snapshot como desempate.
func (r *Resolver) Evaluate(state *domain.MarketState, scenarios []domain.Scenario) domain.Resolution {
	var htf domain.Bias
	if state != nil {
		htf = state.HTFBias
	}
	return r.Resolve(htf, ScoreAll(state, scenarios))
}

// Resolve elige el escenario dominante entre escenarios ya puntuados.
//
// Los escenarios con score < ViabilityThreshold se descartan. Si no sobrevive
// ninguno el resultado es NO_EDGE con Reason rellenado. Si conviven escenarios
// alcistas y bajistas viables, el sesgo HTF desempata: el lado contrario se
// suprime y se cuenta en Suppressed; con HTF neutral gana la mayor probabilidad.
func (r *Resolver) Resolve(htf domain.Bias, scored []domain.ScoredScenario) domain.Resolution {
	var viable, killed []domain.ScoredScenario
	for _, s := range scored {
		if s.Score < r.cfg.ViabilityThreshold {
			killed = append(killed, s)
			continue
		}
		viable = append(viable, s)
	}

	if len(viable) == 0 {
		res := domain.Resolution{
			Bias:       domain.NoEdge,
			Confidence: domain.ConfidenceNone,
			Killed:     killed,
			Reason:     noEdgeReason(scored, r.cfg.ViabilityThreshold),
		}
		r.metrics.RecordResolution(string(res.Bias))
		return res
	}

	byScore(viable)
	res := domain.Resolution{Killed: killed}

	pool := viable
	if hasConflict(viable) {
		res.Conflict = true
		if dir, ok := htf.Direction(); ok {
			opposite := dir.Opposite().Bias()
			pool = pool[:0:0]
			for _, s := range viable {
				if s.Direction == opposite {
					res.Suppressed++
					continue
				}
				pool = append(pool, s)
			}
		} else {
			pool = byProbability(viable)
		}
		slog.Debug("scenario conflict resolved",
			"htf_bias", htf,
			"winner", pool[0].Direction,
			"suppressed", res.Suppressed,
		)
	}

	dominant := pool[0]
	res.Dominant = &dominant
	res.Score = dominant.Score
	res.Bias = dominantBias(dominant.Direction)
	res.Confidence = confidenceFor(dominant.Score)

	rest := pool[1:]
	if len(rest) > r.cfg.MaxAlternatives {
		rest = rest[:r.cfg.MaxAlternatives]
	}
	if len(rest) > 0 {
		res.Alternatives = append([]domain.ScoredScenario(nil), rest...)
	}

	r.metrics.RecordResolution(string(res.Bias))
	return res
}

// ForceDominantBias reduce un análisis completo a BULLISH, BEARISH, NEUTRAL o
// NO_EDGE. Si una etapa anterior ya resolvió el sesgo, se devuelve tal cual.
func (r *Resolver) ForceDominantBias(a domain.Analysis) domain.Bias {
	if a.Bias != "" {
		return a.Bias
	}
	return r.Resolve(a.HTFBias, a.Scenarios).Bias
}

func hasConflict(scored []domain.ScoredScenario) bool {
	var bull, bear bool
	for _, s := range scored {
		switch s.Direction {
		case domain.Bullish:
			bull = true
		case domain.Bearish:
			bear = true
		}
	}
	return bull && bear
}

// byScore ordena por score descendente; empata por probabilidad.
func byScore(s []domain.ScoredScenario) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Probability > s[j].Probability
	})
}

// byProbability devuelve una copia ordenada por probabilidad descendente; empata por score.
func byProbability(s []domain.ScoredScenario) []domain.ScoredScenario {
	out := append([]domain.ScoredScenario(nil), s...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Score > out[j].Score
	})
	return out
}

func dominantBias(dir domain.Bias) domain.Bias {
	if dir.IsDirectional() {
		return dir
	}
	return domain.Neutral
}

func confidenceFor(score float64) domain.Confidence {
	switch {
	case score >= highConfidenceScore:
		return domain.ConfidenceHigh
	case score >= mediumConfidenceScore:
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceLow
}

func noEdgeReason(scored []domain.ScoredScenario, threshold float64) string {
	if len(scored) == 0 {
		return "no scenarios to evaluate"
	}
	best := scored[0].Score
	for _, s := range scored[1:] {
		if s.Score > best {
			best = s.Score
		}
	}
	return fmt.Sprintf("no scenario reached viability threshold %.0f (best %.1f of %d)", threshold, best, len(scored))
}
