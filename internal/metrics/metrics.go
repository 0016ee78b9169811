package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder agrupa las métricas Prometheus del motor de decisión.
// Un *Recorder nil es válido: todos los métodos son no-op.
type Recorder struct {
	registry *prometheus.Registry

	evaluations   *prometheus.CounterVec
	moduleErrors  *prometheus.CounterVec
	candidates    *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	persistErrors *prometheus.CounterVec
	activeSignals prometheus.Gauge
	cycleLatency  *prometheus.HistogramVec
}

// New crea un Recorder sobre un registry propio, de modo que varias instancias
// (tests) no colisionen en el registry global.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratdesk_strategy_evaluations_total",
				Help: "Strategy evaluations by strategy and direction",
			},
			[]string{"strategy", "direction"},
		),
		moduleErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratdesk_strategy_failures_total",
				Help: "Strategy evaluations that panicked or returned a non-finite value",
			},
			[]string{"strategy"},
		),
		candidates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratdesk_candidates_total",
				Help: "Candidates that survived the confluence filter",
			},
			[]string{"direction"},
		),
		resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratdesk_bias_resolutions_total",
				Help: "Dominant bias resolutions by outcome",
			},
			[]string{"bias"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratdesk_signal_events_total",
				Help: "Signal lifecycle events",
			},
			[]string{"event"},
		),
		persistErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratdesk_persistence_errors_total",
				Help: "Signal persistence failures and dropped writes",
			},
			[]string{"kind"},
		),
		activeSignals: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "stratdesk_active_signals",
				Help: "Signals currently tracked (pending or active)",
			},
		),
		cycleLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratdesk_cycle_duration_seconds",
				Help:    "Duration of scan and price cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cycle"},
		),
	}
}

// Handler expone el registry en formato Prometheus.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry devuelve el registry subyacente.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordEvaluation cuenta una evaluación de estrategia.
func (r *Recorder) RecordEvaluation(strategy, direction string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(strategy, direction).Inc()
}

// RecordModuleFailure cuenta una estrategia que falló al evaluar.
func (r *Recorder) RecordModuleFailure(strategy string) {
	if r == nil {
		return
	}
	r.moduleErrors.WithLabelValues(strategy).Inc()
}

// RecordCandidate cuenta un candidato superviviente.
func (r *Recorder) RecordCandidate(direction string) {
	if r == nil {
		return
	}
	r.candidates.WithLabelValues(direction).Inc()
}

// RecordResolution cuenta una resolución de sesgo dominante.
func (r *Recorder) RecordResolution(bias string) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(bias).Inc()
}

// RecordSignalEvent cuenta un evento del ciclo de vida de una señal.
func (r *Recorder) RecordSignalEvent(event string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(event).Inc()
}

// RecordPersistError cuenta un fallo de persistencia ("write" o "dropped").
func (r *Recorder) RecordPersistError(kind string) {
	if r == nil {
		return
	}
	r.persistErrors.WithLabelValues(kind).Inc()
}

// SetActiveSignals fija el número de señales vivas.
func (r *Recorder) SetActiveSignals(n int) {
	if r == nil {
		return
	}
	r.activeSignals.Set(float64(n))
}

// RecordCycle registra la duración de un ciclo ("scan" o "price").
func (r *Recorder) RecordCycle(cycle string, seconds float64) {
	if r == nil {
		return
	}
	r.cycleLatency.WithLabelValues(cycle).Observe(seconds)
}
