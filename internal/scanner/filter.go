package scanner

import (
	"github.com/alejandrodnm/stratdesk/internal/domain"
)

// TrackConfig contiene los criterios para convertir candidatos en señales.
type TrackConfig struct {
	// MinSuitability descarta candidatos por debajo de esta suitability.
	MinSuitability float64
	// MaxPerSymbol limita cuántas señales nuevas se abren por símbolo y ciclo.
	MaxPerSymbol int
	// AllowCounterTrend si true, acepta candidatos contra la tendencia.
	AllowCounterTrend bool
}

// DefaultTrackConfig devuelve una configuración conservadora.
func DefaultTrackConfig() TrackConfig {
	return TrackConfig{
		MinSuitability:    0.6,
		MaxPerSymbol:      1,
		AllowCounterTrend: false,
	}
}

// Filter decide qué candidatos del ranking se siguen como señales.
type Filter struct {
	cfg TrackConfig
}

// NewFilter crea un Filter con la configuración dada.
func NewFilter(cfg TrackConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Apply devuelve los candidatos alineados con el sesgo dominante que pasan
// todos los filtros, en el orden del ranking. Sin sesgo direccional
// (NEUTRAL o NO_EDGE) no se sigue nada.
func (f *Filter) Apply(ranking domain.Ranking, res domain.Resolution) []domain.Candidate {
	dir, ok := res.Bias.Direction()
	if !ok {
		return nil
	}
	var out []domain.Candidate
	for _, c := range ranking.All {
		if f.cfg.MaxPerSymbol > 0 && len(out) >= f.cfg.MaxPerSymbol {
			break
		}
		if c.Direction == dir && f.passes(c) {
			out = append(out, c)
		}
	}
	return out
}

// passes devuelve true si el candidato supera todos los criterios.
func (f *Filter) passes(c domain.Candidate) bool {
	if c.Suitability < f.cfg.MinSuitability {
		return false
	}
	if c.IsCounterTrend && !f.cfg.AllowCounterTrend {
		return false
	}
	return true
}
