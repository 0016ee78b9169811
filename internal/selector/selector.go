package selector

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/metrics"
	"github.com/alejandrodnm/stratdesk/internal/strategy"
)

const (
	defaultMinSuitability  = 0.35
	defaultTopPerDirection = 2
)

// Config contiene los parámetros del selector.
type Config struct {
	// MinSuitability: se descartan los candidatos con suitability ≤ este valor.
	MinSuitability float64
	// TopPerDirection: máximo de candidatos por sentido en el ranking.
	TopPerDirection int
}

// DefaultConfig devuelve la configuración estándar (umbral 0.35, top 2).
func DefaultConfig() Config {
	return Config{
		MinSuitability:  defaultMinSuitability,
		TopPerDirection: defaultTopPerDirection,
	}
}

// Option configura un Selector.
type Option func(*Selector)

// WithRules reemplaza la cadena de factores de confluencia.
func WithRules(rules ...Rule) Option {
	return func(s *Selector) { s.rules = rules }
}

// WithJitter aplica un ruido multiplicativo uniforme en ±pct al score antes del
// clamp final. La fuente es inyectable para que el resultado sea reproducible.
func WithJitter(src rand.Source, pct float64) Option {
	return func(s *Selector) {
		if src == nil || pct <= 0 {
			return
		}
		s.rng = rand.New(src)
		s.jitterPct = pct
	}
}

// WithMetrics registra evaluaciones y fallos en el recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Selector) { s.metrics = m }
}

// Selector evalúa todas las estrategias del registry en ambos sentidos, aplica
// la cadena de confluencia y devuelve el ranking filtrado.
//
// No es seguro para uso concurrente si se configura con jitter: rand.Rand no lo es.
type Selector struct {
	cfg       Config
	registry  *strategy.Registry
	rules     []Rule
	rng       *rand.Rand
	jitterPct float64
	metrics   *metrics.Recorder
}

// New crea un Selector. Sin opciones usa DefaultRules y ningún jitter.
func New(cfg Config, registry *strategy.Registry, opts ...Option) *Selector {
	if cfg.TopPerDirection <= 0 {
		cfg.TopPerDirection = defaultTopPerDirection
	}
	s := &Selector{
		cfg:      cfg,
		registry: registry,
		rules:    DefaultRules(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules devuelve los nombres de la cadena de confluencia, en orden.
func (s *Selector) Rules() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name()
	}
	return names
}

// Select puntúa cada par (estrategia, sentido) contra el snapshot.
// Un snapshot nil produce un ranking vacío.
func (s *Selector) Select(state *domain.MarketState) domain.Ranking {
	if state == nil {
		return domain.Ranking{}
	}

	var long, short []domain.Candidate
	for _, m := range s.registry.All() {
		desc := m.Describe()
		for _, dir := range domain.Directions() {
			c := s.score(m, desc, state, dir)
			if c.Suitability <= s.cfg.MinSuitability {
				continue
			}
			s.metrics.RecordCandidate(string(dir))
			if dir == domain.Long {
				long = append(long, c)
			} else {
				short = append(short, c)
			}
		}
	}

	rank(long)
	rank(short)
	long = top(long, s.cfg.TopPerDirection)
	short = top(short, s.cfg.TopPerDirection)

	all := make([]domain.Candidate, 0, len(long)+len(short))
	all = append(all, long...)
	all = append(all, short...)
	rank(all)

	return domain.Ranking{Long: long, Short: short, All: all}
}

// Score evalúa un único par (estrategia, sentido) con la cadena completa, sin
// filtrar. Útil para explicar por qué un candidato no aparece en el ranking.
func (s *Selector) Score(name string, state *domain.MarketState, dir domain.Direction) (domain.Candidate, error) {
	m, ok := s.registry.Get(name)
	if !ok {
		return domain.Candidate{}, fmt.Errorf("selector.Score: unknown strategy %q", name)
	}
	if state == nil {
		return domain.Candidate{}, fmt.Errorf("selector.Score: nil market state")
	}
	return s.score(m, m.Describe(), state, dir), nil
}

func (s *Selector) score(m strategy.Module, desc strategy.Descriptor, state *domain.MarketState, dir domain.Direction) domain.Candidate {
	base := s.evaluate(m, desc.Name, state, dir)
	in := Input{State: state, Direction: dir, Strategy: desc}

	c := domain.Candidate{
		Strategy:       desc.Name,
		Category:       string(desc.Category),
		Direction:      dir,
		Base:           base,
		IsCounterTrend: isCounterTrend(state, dir),
	}

	score := base
	for _, r := range s.rules {
		next := r.Apply(in, score)
		if math.IsNaN(next) || next < 0 {
			next = 0
		}
		if score > 0 {
			c.Factors = append(c.Factors, domain.FactorTrace{Rule: r.Name(), Factor: next / score})
		}
		score = next
	}

	if s.rng != nil && score > 0 {
		score *= 1 + (s.rng.Float64()*2-1)*s.jitterPct
	}

	// clamp único al final: un factor intermedio >1 no puede enmascarar una penalización posterior
	c.Suitability = math.Max(0, math.Min(1, score))
	return c
}

// evaluate aísla los fallos de una estrategia: panic, NaN o infinito cuentan como 0.
func (s *Selector) evaluate(m strategy.Module, name string, state *domain.MarketState, dir domain.Direction) (v float64) {
	s.metrics.RecordEvaluation(name, string(dir))
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("strategy evaluation panicked", "strategy", name, "direction", dir, "panic", r)
			s.metrics.RecordModuleFailure(name)
			v = 0
		}
	}()

	v = m.Evaluate(state, dir)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		slog.Warn("strategy returned non-finite suitability", "strategy", name, "direction", dir)
		s.metrics.RecordModuleFailure(name)
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// rank ordena por suitability descendente; los empates se rompen por nombre y
// sentido para que el ranking sea estable entre ciclos.
func rank(cs []domain.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Suitability != cs[j].Suitability {
			return cs[i].Suitability > cs[j].Suitability
		}
		if cs[i].Strategy != cs[j].Strategy {
			return cs[i].Strategy < cs[j].Strategy
		}
		return cs[i].Direction < cs[j].Direction
	})
}

func top(cs []domain.Candidate, n int) []domain.Candidate {
	if len(cs) > n {
		return cs[:n]
	}
	return cs
}
