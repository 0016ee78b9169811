package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/metrics"
	"github.com/alejandrodnm/stratdesk/internal/ports"
	"github.com/alejandrodnm/stratdesk/internal/scenario"
	"github.com/alejandrodnm/stratdesk/internal/selector"
	"github.com/alejandrodnm/stratdesk/internal/signals"
	"github.com/alejandrodnm/stratdesk/internal/strategy"
	"golang.org/x/time/rate"
)

// Config contiene la configuración del scanner.
type Config struct {
	ScanInterval  time.Duration
	PriceInterval time.Duration
	Symbols       []string
	// RequestsPerSecond limita las llamadas a los providers; 0 = sin límite.
	RequestsPerSecond float64
	Track             TrackConfig
	// Once ejecuta un único ciclo de análisis y termina.
	Once bool
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		ScanInterval:      5 * time.Minute,
		PriceInterval:     15 * time.Second,
		RequestsPerSecond: 5,
		Track:             DefaultTrackConfig(),
	}
}

// Deps agrupa las dependencias del scanner. Analyses y Metrics son opcionales.
type Deps struct {
	States   ports.MarketStateProvider
	Prices   ports.PriceProvider
	Registry *strategy.Registry
	Selector *selector.Selector
	Resolver *scenario.Resolver
	Signals  *signals.Manager
	Notifier ports.Notifier
	Analyses ports.AnalysisStore
	Metrics  *metrics.Recorder
}

// Scanner es el orquestador del loop de análisis multi-símbolo.
type Scanner struct {
	cfg     Config
	deps    Deps
	filter  *Filter
	limiter *rate.Limiter
}

// New crea un Scanner con todas las dependencias inyectadas.
func New(cfg Config, deps Deps) *Scanner {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Scanner{
		cfg:     cfg,
		deps:    deps,
		filter:  NewFilter(cfg.Track),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run ejecuta el loop hasta que el contexto se cancele: un ticker lanza el
// análisis de todos los símbolos y otro, más rápido, alimenta precios al
// gestor de señales. Si cfg.Once está activo, solo ejecuta un ciclo.
func (s *Scanner) Run(ctx context.Context) error {
	slog.Info("scanner starting",
		"symbols", len(s.cfg.Symbols),
		"interval", s.cfg.ScanInterval,
		"price_interval", s.cfg.PriceInterval,
		"once", s.cfg.Once,
	)

	if _, err := s.RunOnce(ctx); err != nil {
		slog.Error("scan cycle failed", "err", err)
		if s.cfg.Once {
			return err
		}
	}
	if s.cfg.Once {
		return nil
	}

	scan := time.NewTicker(s.cfg.ScanInterval)
	defer scan.Stop()
	prices := time.NewTicker(s.cfg.PriceInterval)
	defer prices.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scanner stopped")
			return nil
		case <-scan.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("scan cycle failed", "err", err)
			}
		case <-prices.C:
			if err := s.PollPrices(ctx); err != nil {
				slog.Warn("price poll failed", "err", err)
			}
		}
	}
}

// RunOnce analiza todos los símbolos configurados una vez. Un símbolo que falla
// no aborta el ciclo; solo devuelve error si fallan todos o si el contexto se
// cancela entre símbolos.
func (s *Scanner) RunOnce(ctx context.Context) ([]domain.AnalysisReport, error) {
	start := time.Now()
	defer func() {
		s.deps.Metrics.RecordCycle("scan", time.Since(start).Seconds())
	}()

	var (
		reports []domain.AnalysisReport
		failed  int
		lastErr error
	)
	for _, sym := range s.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return reports, fmt.Errorf("scanner.RunOnce: %w", err)
		}
		report, err := s.Analyze(ctx, sym)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return reports, fmt.Errorf("scanner.RunOnce: %w", err)
			}
			slog.Warn("analysis failed", "symbol", sym, "err", err)
			failed++
			lastErr = err
			continue
		}
		s.publish(ctx, report)
		reports = append(reports, report)
	}

	if failed > 0 && failed == len(s.cfg.Symbols) {
		return nil, fmt.Errorf("scanner.RunOnce: all %d symbols failed: %w", failed, lastErr)
	}

	slog.Info("scan cycle complete",
		"symbols", len(reports),
		"failed", failed,
		"active_signals", len(s.deps.Signals.Active()),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return reports, nil
}

// Analyze ejecuta el pipeline completo para un símbolo: snapshot → ranking de
// estrategias → resolución de sesgo → alta de señales alineadas.
func (s *Scanner) Analyze(ctx context.Context, symbol string) (domain.AnalysisReport, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("scanner.Analyze %s: rate limit: %w", symbol, err)
	}
	state, err := s.deps.States.FetchState(ctx, symbol)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("scanner.Analyze %s: fetch state: %w", symbol, err)
	}
	if state == nil {
		return domain.AnalysisReport{}, fmt.Errorf("scanner.Analyze %s: empty snapshot", symbol)
	}
	if state.Symbol == "" {
		state.Symbol = symbol
	}

	ranking := s.deps.Selector.Select(state)

	scenarios := state.Scenarios
	if len(scenarios) == 0 {
		scenarios = s.deriveScenarios(state, ranking)
	}
	res := s.deps.Resolver.Evaluate(state, scenarios)
	if state.Bias != "" {
		forced := s.deps.Resolver.ForceDominantBias(domain.Analysis{Bias: state.Bias, HTFBias: state.HTFBias})
		if forced != res.Bias {
			slog.Debug("bias set upstream", "symbol", symbol, "resolved", res.Bias, "forced", forced)
			res.Bias = forced
		}
	}

	report := domain.AnalysisReport{
		Symbol:     symbol,
		Price:      state.Price,
		Ranking:    ranking,
		Resolution: res,
	}
	report.Tracked = s.track(state, ranking, res)
	return report, nil
}

// deriveScenarios construye un escenario por candidato cuando el snapshot no
// trae hipótesis propias: su sentido, el primer objetivo del setup y la
// suitability como probabilidad.
func (s *Scanner) deriveScenarios(state *domain.MarketState, ranking domain.Ranking) []domain.Scenario {
	out := make([]domain.Scenario, 0, len(ranking.All))
	for _, c := range ranking.All {
		sc := domain.Scenario{
			Direction:   c.Direction.Bias(),
			Probability: c.Suitability,
			Label:       c.Strategy,
		}
		if m, ok := s.deps.Registry.Get(c.Strategy); ok {
			if setup, err := strategy.PlanSetup(m, state, c.Direction); err == nil {
				t := setup.Targets[0]
				sc.Target = &t
			}
		}
		out = append(out, sc)
	}
	return out
}

// track entrega al gestor los candidatos que pasan el filtro. Los setups sin
// entrada, inválidos o duplicados se ignoran sin error.
func (s *Scanner) track(state *domain.MarketState, ranking domain.Ranking, res domain.Resolution) []domain.Signal {
	var tracked []domain.Signal
	for _, c := range s.filter.Apply(ranking, res) {
		m, ok := s.deps.Registry.Get(c.Strategy)
		if !ok {
			continue
		}
		setup, err := strategy.PlanSetup(m, state, c.Direction)
		if err != nil {
			slog.Debug("setup skipped", "symbol", state.Symbol, "strategy", c.Strategy, "err", err)
			continue
		}
		setup.Suitability = c.Suitability

		sig, err := s.deps.Signals.Track(state.Symbol, setup)
		if err != nil {
			slog.Debug("signal not tracked", "symbol", state.Symbol, "strategy", c.Strategy, "err", err)
			continue
		}
		tracked = append(tracked, sig)
	}
	return tracked
}

// publish notifica y persiste el informe; ambos son best-effort.
func (s *Scanner) publish(ctx context.Context, report domain.AnalysisReport) {
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyAnalysis(ctx, report); err != nil {
			slog.Warn("notifier error", "symbol", report.Symbol, "err", err)
		}
	}
	if s.deps.Analyses != nil {
		if err := s.deps.Analyses.SaveAnalysis(ctx, report); err != nil {
			slog.Warn("storage error", "symbol", report.Symbol, "err", err)
			s.deps.Metrics.RecordPersistError("analysis")
		}
	}
}

// PollPrices pide el último precio de los símbolos configurados y de los que
// tienen señales vivas, y lo entrega al gestor de señales.
func (s *Scanner) PollPrices(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.deps.Metrics.RecordCycle("prices", time.Since(start).Seconds())
	}()

	symbols := watchlist(s.cfg.Symbols, s.deps.Signals.Symbols())
	if len(symbols) == 0 {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("scanner.PollPrices: rate limit: %w", err)
	}
	prices, err := s.deps.Prices.FetchPrices(ctx, symbols)
	if err != nil {
		return fmt.Errorf("scanner.PollPrices: fetch prices: %w", err)
	}

	for _, sym := range symbols {
		p, ok := prices[sym]
		if !ok {
			continue
		}
		for _, sig := range s.deps.Signals.UpdateMarketPrice(sym, p) {
			slog.Info("signal transition",
				"id", sig.ID,
				"symbol", sig.Symbol,
				"strategy", sig.Strategy,
				"status", sig.Status,
				"outcome", sig.Outcome,
				"pnl", sig.PnL,
			)
		}
	}
	return nil
}

// watchlist une y ordena dos listas de símbolos sin duplicados.
func watchlist(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, sym := range list {
			if _, ok := seen[sym]; ok || sym == "" {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
