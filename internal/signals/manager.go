// Package signals mantiene el ciclo de vida de las señales de trading:
// PENDING → ACTIVE → COMPLETED, sin transiciones hacia atrás.
//
// El Manager es el único dueño de la colección de señales vivas. Los lectores
// externos reciben copias; la persistencia es asíncrona y best-effort, de modo
// que el estado en memoria siempre va por delante del almacenado.
package signals

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/metrics"
	"github.com/alejandrodnm/stratdesk/internal/ports"
	"github.com/google/uuid"
)

const (
	defaultPersistQueue     = 256
	defaultCompletedHistory = 500
	writeTimeout            = 5 * time.Second
)

// Config contiene los parámetros del Manager.
type Config struct {
	// PersistQueue es el tamaño del buffer de escrituras pendientes. Si se
	// llena, las escrituras nuevas se descartan con un warning.
	PersistQueue int
	// CompletedHistory es el máximo de señales completadas retenidas en memoria.
	CompletedHistory int
}

// DefaultConfig devuelve la configuración estándar.
func DefaultConfig() Config {
	return Config{
		PersistQueue:     defaultPersistQueue,
		CompletedHistory: defaultCompletedHistory,
	}
}

// Listener recibe el snapshot aplanado de señales vivas tras cada cambio.
type Listener func(active []domain.Signal)

// Option configura un Manager.
type Option func(*Manager)

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator reemplaza el generador de IDs (tests).
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithMetrics registra eventos y fallos de persistencia.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// write es una escritura pendiente: alta completa o parche parcial.
type write struct {
	id    string
	save  *domain.Signal
	patch domain.SignalPatch
}

// Manager rastrea señales por símbolo y las hace avanzar con cada tick de precio.
// Es seguro para uso concurrente.
type Manager struct {
	cfg     Config
	store   ports.SignalStore
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string

	mu           sync.Mutex
	active       map[string][]*domain.Signal
	completed    []domain.Signal
	listeners    map[int]Listener
	nextListener int
	started      bool
	closed       bool

	writes chan write
	done   chan struct{}
}

// New crea un Manager. store puede ser nil (solo memoria).
// Hay que llamar a Init antes de usarlo y a Close al terminar.
func New(cfg Config, store ports.SignalStore, opts ...Option) *Manager {
	if cfg.PersistQueue <= 0 {
		cfg.PersistQueue = defaultPersistQueue
	}
	if cfg.CompletedHistory <= 0 {
		cfg.CompletedHistory = defaultCompletedHistory
	}
	m := &Manager{
		cfg:       cfg,
		store:     store,
		now:       time.Now,
		newID:     uuid.NewString,
		active:    make(map[string][]*domain.Signal),
		listeners: make(map[int]Listener),
		writes:    make(chan write, cfg.PersistQueue),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init carga las señales persistidas y arranca el worker de persistencia.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if m.store != nil {
		active, err := m.store.LoadActiveSignals(ctx)
		if err != nil {
			return fmt.Errorf("signals.Init: load active: %w", err)
		}
		completed, err := m.store.LoadCompletedSignals(ctx, m.cfg.CompletedHistory)
		if err != nil {
			return fmt.Errorf("signals.Init: load completed: %w", err)
		}
		for i := range active {
			s := active[i].Clone()
			if s.Status == domain.SignalCompleted {
				continue
			}
			m.active[s.Symbol] = append(m.active[s.Symbol], &s)
		}
		m.completed = append(m.completed, completed...)
		slog.Info("signals restored",
			"active", m.countLocked(),
			"completed", len(m.completed),
		)
	}

	m.started = true
	m.metrics.SetActiveSignals(m.countLocked())
	go m.persistLoop()
	return nil
}

// Close deja de aceptar escrituras y espera a que se vacíe la cola o a que
// venza ctx. Las transiciones posteriores siguen aplicándose en memoria.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	close(m.writes)
	m.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("signals.Close: drain persistence queue: %w", ctx.Err())
	}
}

// Track registra un setup aceptado como señal PENDING.
//
// Devuelve domain.ErrMissingEntry si el setup no trae entrada y
// domain.ErrDuplicateSignal si ya hay una señal viva para (símbolo, estrategia).
// El pipeline de análisis trata ambos casos como no-op.
func (m *Manager) Track(symbol string, setup domain.Setup) (domain.Signal, error) {
	if err := setup.Validate(); err != nil {
		return domain.Signal{}, fmt.Errorf("signals.Track: %s: %w", symbol, err)
	}

	m.mu.Lock()
	for _, s := range m.active[symbol] {
		if s.Strategy == setup.Strategy {
			m.mu.Unlock()
			return domain.Signal{}, fmt.Errorf("signals.Track: %s/%s: %w", symbol, setup.Strategy, domain.ErrDuplicateSignal)
		}
	}

	now := m.now()
	sig := &domain.Signal{
		ID:        m.newID(),
		Symbol:    symbol,
		Strategy:  setup.Strategy,
		Direction: setup.Direction,
		Entry:     setup.Entry,
		StopLoss:  setup.StopLoss,
		Targets:   make([]domain.Target, 0, len(setup.Targets)),
		Status:    domain.SignalPending,
		CreatedAt: now,
	}
	for _, p := range setup.Targets {
		sig.Targets = append(sig.Targets, domain.Target{Price: p})
	}
	m.logEvent(sig, now, domain.EventTracked, setup.Entry,
		fmt.Sprintf("%s %s entry %.4f stop %.4f", setup.Strategy, setup.Direction, setup.Entry, setup.StopLoss))
	m.active[symbol] = append(m.active[symbol], sig)

	out := sig.Clone()
	m.enqueueLocked(write{id: sig.ID, save: &out})
	snapshot, listeners := m.snapshotLocked(), m.listenersLocked()
	m.metrics.SetActiveSignals(len(snapshot))
	m.mu.Unlock()

	slog.Info("signal tracked",
		"id", out.ID,
		"symbol", symbol,
		"strategy", out.Strategy,
		"direction", out.Direction,
		"entry", out.Entry,
	)
	notify(listeners, snapshot)
	return out, nil
}

// UpdateMarketPrice hace avanzar todas las señales vivas del símbolo:
//   - PENDING → ACTIVE cuando el precio toca la entrada a favor
//   - ACTIVE: recalcula pnl, cierra con STOP_LOSS si toca el stop, marca
//     objetivos alcanzados y cierra con TAKE_PROFIT cuando están todos
//
// Las comparaciones son inclusivas (toque), no de cierre confirmado.
// Llamarlo dos veces con el mismo precio no produce cambios.
// Devuelve las señales que cambiaron de estado o alcanzaron un objetivo.
func (m *Manager) UpdateMarketPrice(symbol string, price float64) []domain.Signal {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil
	}

	m.mu.Lock()
	bucket, ok := m.active[symbol]
	if !ok {
		m.mu.Unlock()
		return nil
	}

	now := m.now()
	var (
		changed     bool
		transitions []domain.Signal
		remaining   = bucket[:0]
	)
	for _, s := range bucket {
		touched, lifecycle := m.advance(s, price, now)
		changed = changed || touched
		if lifecycle {
			transitions = append(transitions, s.Clone())
			m.enqueueLocked(write{id: s.ID, patch: patchFor(s)})
		}
		if s.Status == domain.SignalCompleted {
			m.complete(s)
			continue
		}
		remaining = append(remaining, s)
	}
	for i := len(remaining); i < len(bucket); i++ {
		bucket[i] = nil
	}
	if len(remaining) == 0 {
		delete(m.active, symbol)
	} else {
		m.active[symbol] = remaining
	}

	if !changed {
		m.mu.Unlock()
		return nil
	}
	snapshot, listeners := m.snapshotLocked(), m.listenersLocked()
	m.metrics.SetActiveSignals(len(snapshot))
	m.mu.Unlock()

	for _, s := range transitions {
		slog.Debug("signal updated",
			"id", s.ID,
			"symbol", s.Symbol,
			"status", s.Status,
			"outcome", s.Outcome,
			"price", price,
			"pnl", s.PnL,
		)
	}
	notify(listeners, snapshot)
	return transitions
}

// advance aplica un tick a una señal. touched indica cualquier cambio visible
// (precio, pnl, estado); lifecycle indica un evento que se persiste.
func (m *Manager) advance(s *domain.Signal, price float64, now time.Time) (touched, lifecycle bool) {
	if s.CurrentPrice != price {
		s.CurrentPrice = price
		touched = true
	}

	if s.Status == domain.SignalPending {
		if !domain.Touches(s.Direction, price, s.Entry) {
			return touched, false
		}
		s.Status = domain.SignalActive
		s.ActivatedAt = &now
		m.logEvent(s, now, domain.EventActivated, price, "entry touched")
		touched, lifecycle = true, true
	}

	if s.Status != domain.SignalActive {
		return touched, lifecycle
	}

	if pnl := domain.DirectionalPnL(s.Direction, s.Entry, price); pnl != s.PnL {
		s.PnL = pnl
		touched = true
	}

	if s.StopLoss > 0 && domain.Breaches(s.Direction, price, s.StopLoss) {
		m.close(s, now, domain.OutcomeStopLoss)
		m.logEvent(s, now, domain.EventStopped, price, fmt.Sprintf("stop %.4f hit", s.StopLoss))
		return true, true
	}

	for i := range s.Targets {
		t := &s.Targets[i]
		if t.Reached || !domain.Touches(s.Direction, price, t.Price) {
			continue
		}
		t.Reached = true
		m.logEvent(s, now, domain.EventTargetHit, price, fmt.Sprintf("target %d/%d %.4f", i+1, len(s.Targets), t.Price))
		touched, lifecycle = true, true
	}

	if s.AllTargetsReached() {
		m.close(s, now, domain.OutcomeTakeProfit)
		m.logEvent(s, now, domain.EventCompleted, price, "all targets reached")
		return true, true
	}
	return touched, lifecycle
}

func (m *Manager) close(s *domain.Signal, now time.Time, outcome domain.Outcome) {
	s.Status = domain.SignalCompleted
	s.Outcome = outcome
	s.ClosedAt = &now
}

// complete mueve una señal cerrada al log de completadas.
func (m *Manager) complete(s *domain.Signal) {
	m.completed = append(m.completed, s.Clone())
	if over := len(m.completed) - m.cfg.CompletedHistory; over > 0 {
		m.completed = append([]domain.Signal(nil), m.completed[over:]...)
	}
	slog.Info("signal completed",
		"id", s.ID,
		"symbol", s.Symbol,
		"strategy", s.Strategy,
		"outcome", s.Outcome,
		"pnl", s.PnL,
	)
}

func (m *Manager) logEvent(s *domain.Signal, at time.Time, ev domain.SignalEvent, price float64, msg string) {
	s.Updates = append(s.Updates, domain.SignalUpdate{At: at, Event: ev, Price: price, Message: msg})
	m.metrics.RecordSignalEvent(string(ev))
}

// Subscribe registra un listener. Devuelve una función que lo elimina; es
// seguro llamarla más de una vez.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Active devuelve una copia de todas las señales vivas, ordenadas por símbolo
// y fecha de alta.
func (m *Manager) Active() []domain.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// ActiveFor devuelve una copia de las señales vivas de un símbolo.
func (m *Manager) ActiveFor(symbol string) []domain.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Signal, 0, len(m.active[symbol]))
	for _, s := range m.active[symbol] {
		out = append(out, s.Clone())
	}
	return out
}

// Get busca una señal viva o completada por ID.
func (m *Manager) Get(id string) (domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bucket := range m.active {
		for _, s := range bucket {
			if s.ID == id {
				return s.Clone(), nil
			}
		}
	}
	for i := len(m.completed) - 1; i >= 0; i-- {
		if m.completed[i].ID == id {
			return m.completed[i].Clone(), nil
		}
	}
	return domain.Signal{}, fmt.Errorf("signals.Get: %s: %w", id, domain.ErrSignalNotFound)
}

// Symbols devuelve los símbolos con señales vivas, ordenados.
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.active))
	for sym := range m.active {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Completed devuelve una copia del log de señales completadas (la más antigua primero).
func (m *Manager) Completed() []domain.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Signal, len(m.completed))
	for i, s := range m.completed {
		out[i] = s.Clone()
	}
	return out
}

// Stats calcula win rate y pnl sobre las señales completadas.
func (m *Manager) Stats() domain.SignalStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.ComputeStats(m.completed, m.countLocked())
}

func (m *Manager) countLocked() int {
	n := 0
	for _, bucket := range m.active {
		n += len(bucket)
	}
	return n
}

func (m *Manager) snapshotLocked() []domain.Signal {
	out := make([]domain.Signal, 0, m.countLocked())
	for _, bucket := range m.active {
		for _, s := range bucket {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) listenersLocked() []Listener {
	if len(m.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = m.listeners[id]
	}
	return out
}

// notify llama a los listeners fuera del lock. Un listener que hace panic no
// afecta a los demás ni al Manager.
func notify(listeners []Listener, snapshot []domain.Signal) {
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("signal listener panicked", "panic", r)
				}
			}()
			fn(snapshot)
		}()
	}
}

func patchFor(s *domain.Signal) domain.SignalPatch {
	status, price, pnl := s.Status, s.CurrentPrice, s.PnL
	p := domain.SignalPatch{
		Status:       &status,
		Targets:      append([]domain.Target(nil), s.Targets...),
		CurrentPrice: &price,
		PnL:          &pnl,
		Updates:      append([]domain.SignalUpdate(nil), s.Updates...),
	}
	if s.Outcome != "" {
		outcome := s.Outcome
		p.Outcome = &outcome
	}
	if s.ActivatedAt != nil {
		t := *s.ActivatedAt
		p.ActivatedAt = &t
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		p.ClosedAt = &t
	}
	return p
}
