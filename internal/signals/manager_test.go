package signals_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/alejandrodnm/stratdesk/internal/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockStore es un doble de ports.SignalStore.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) LoadActiveSignals(ctx context.Context) ([]domain.Signal, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Signal), args.Error(1)
}

func (m *mockStore) LoadCompletedSignals(ctx context.Context, limit int) ([]domain.Signal, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Signal), args.Error(1)
}

func (m *mockStore) SaveSignal(ctx context.Context, s domain.Signal) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) UpdateSignal(ctx context.Context, id string, patch domain.SignalPatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

func emptyStore() *mockStore {
	st := &mockStore{}
	st.On("LoadActiveSignals", mock.Anything).Return([]domain.Signal{}, nil)
	st.On("LoadCompletedSignals", mock.Anything, mock.Anything).Return([]domain.Signal{}, nil)
	return st
}

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func newManager(t *testing.T, store *mockStore) *signals.Manager {
	t.Helper()
	n := 0
	opts := []signals.Option{
		signals.WithClock(func() time.Time { return t0 }),
		signals.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("sig-%d", n)
		}),
	}
	var m *signals.Manager
	if store == nil {
		m = signals.New(signals.DefaultConfig(), nil, opts...)
	} else {
		m = signals.New(signals.DefaultConfig(), store, opts...)
	}
	require.NoError(t, m.Init(context.Background()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func longSetup(strategy string) domain.Setup {
	return domain.Setup{
		Strategy:  strategy,
		Direction: domain.Long,
		Entry:     100,
		StopLoss:  95,
		Targets:   []float64{110},
	}
}

func events(s domain.Signal) []domain.SignalEvent {
	out := make([]domain.SignalEvent, len(s.Updates))
	for i, u := range s.Updates {
		out[i] = u.Event
	}
	return out
}

func TestManager_StopLossSequence(t *testing.T) {
	m := newManager(t, nil)

	sig, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)
	assert.Equal(t, domain.SignalPending, sig.Status)

	m.UpdateMarketPrice("BTCUSDT", 99)
	got := m.ActiveFor("BTCUSDT")
	require.Len(t, got, 1)
	assert.Equal(t, domain.SignalPending, got[0].Status)
	assert.Zero(t, got[0].PnL)

	m.UpdateMarketPrice("BTCUSDT", 101)
	got = m.ActiveFor("BTCUSDT")
	require.Len(t, got, 1)
	assert.Equal(t, domain.SignalActive, got[0].Status)
	assert.InDelta(t, 1, got[0].PnL, 1e-9)
	require.NotNil(t, got[0].ActivatedAt)

	m.UpdateMarketPrice("BTCUSDT", 96)
	got = m.ActiveFor("BTCUSDT")
	require.Len(t, got, 1, "96 is above the stop and must not close")
	assert.Equal(t, domain.SignalActive, got[0].Status)
	assert.InDelta(t, -4, got[0].PnL, 1e-9)

	m.UpdateMarketPrice("BTCUSDT", 94)
	assert.Empty(t, m.ActiveFor("BTCUSDT"))
	assert.Empty(t, m.Symbols(), "empty bucket is deleted")

	done := m.Completed()
	require.Len(t, done, 1)
	assert.Equal(t, domain.SignalCompleted, done[0].Status)
	assert.Equal(t, domain.OutcomeStopLoss, done[0].Outcome)
	assert.InDelta(t, -6, done[0].PnL, 1e-9)
	require.NotNil(t, done[0].ClosedAt)
	assert.Equal(t,
		[]domain.SignalEvent{domain.EventTracked, domain.EventActivated, domain.EventStopped},
		events(done[0]),
	)
}

func TestManager_TakeProfit(t *testing.T) {
	m := newManager(t, nil)
	setup := longSetup("donchian_breakout")
	setup.Targets = []float64{105, 110}
	_, err := m.Track("ETHUSDT", setup)
	require.NoError(t, err)

	m.UpdateMarketPrice("ETHUSDT", 100)
	m.UpdateMarketPrice("ETHUSDT", 106)

	got := m.ActiveFor("ETHUSDT")
	require.Len(t, got, 1)
	assert.True(t, got[0].Targets[0].Reached)
	assert.False(t, got[0].Targets[1].Reached)

	// retroceso: el objetivo alcanzado nunca se desmarca
	m.UpdateMarketPrice("ETHUSDT", 102)
	got = m.ActiveFor("ETHUSDT")
	require.Len(t, got, 1)
	assert.True(t, got[0].Targets[0].Reached)

	transitions := m.UpdateMarketPrice("ETHUSDT", 110)
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.OutcomeTakeProfit, transitions[0].Outcome)

	done := m.Completed()
	require.Len(t, done, 1)
	assert.Equal(t, []domain.SignalEvent{
		domain.EventTracked,
		domain.EventActivated,
		domain.EventTargetHit,
		domain.EventTargetHit,
		domain.EventCompleted,
	}, events(done[0]))
}

func TestManager_ShortSignal(t *testing.T) {
	m := newManager(t, nil)
	_, err := m.Track("EURUSD", domain.Setup{
		Strategy:  "liquidity_sweep",
		Direction: domain.Short,
		Entry:     1.10,
		StopLoss:  1.12,
		Targets:   []float64{1.05},
	})
	require.NoError(t, err)

	m.UpdateMarketPrice("EURUSD", 1.11)
	assert.Equal(t, domain.SignalPending, m.ActiveFor("EURUSD")[0].Status)

	m.UpdateMarketPrice("EURUSD", 1.10)
	got := m.ActiveFor("EURUSD")[0]
	assert.Equal(t, domain.SignalActive, got.Status)
	assert.Zero(t, got.PnL)

	m.UpdateMarketPrice("EURUSD", 1.08)
	assert.InDelta(t, 0.02, m.ActiveFor("EURUSD")[0].PnL, 1e-12)

	m.UpdateMarketPrice("EURUSD", 1.12)
	require.Len(t, m.Completed(), 1)
	assert.Equal(t, domain.OutcomeStopLoss, m.Completed()[0].Outcome)
}

func TestManager_GapThroughEntryAndTargets(t *testing.T) {
	m := newManager(t, nil)
	setup := longSetup("trend_continuation")
	setup.Targets = []float64{105, 108}
	_, err := m.Track("SPX", setup)
	require.NoError(t, err)

	transitions := m.UpdateMarketPrice("SPX", 109)

	require.Len(t, transitions, 1)
	assert.Equal(t, domain.SignalCompleted, transitions[0].Status)
	assert.Equal(t, domain.OutcomeTakeProfit, transitions[0].Outcome)
	assert.InDelta(t, 9, transitions[0].PnL, 1e-9)
}

func TestManager_Idempotent(t *testing.T) {
	m := newManager(t, nil)
	setup := longSetup("trend_continuation")
	setup.Targets = []float64{105, 110}
	_, err := m.Track("BTCUSDT", setup)
	require.NoError(t, err)

	calls := 0
	dispose := m.Subscribe(func([]domain.Signal) { calls++ })
	defer dispose()

	m.UpdateMarketPrice("BTCUSDT", 106)
	first := m.ActiveFor("BTCUSDT")[0]
	require.Equal(t, 1, calls)

	assert.Nil(t, m.UpdateMarketPrice("BTCUSDT", 106))
	second := m.ActiveFor("BTCUSDT")[0]

	assert.Equal(t, first, second)
	assert.Len(t, second.Updates, 3)
	assert.Equal(t, 1, calls, "no change, no notification")
}

func TestManager_StatusNeverRegresses(t *testing.T) {
	m := newManager(t, nil)
	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)

	var statuses []domain.SignalStatus
	m.Subscribe(func(active []domain.Signal) {
		for _, s := range active {
			statuses = append(statuses, s.Status)
		}
	})

	for _, p := range []float64{99, 101, 99.5, 100.5, 98, 97, 101, 96} {
		m.UpdateMarketPrice("BTCUSDT", p)
	}
	m.UpdateMarketPrice("BTCUSDT", 95)
	m.UpdateMarketPrice("BTCUSDT", 120)

	statuses = append(statuses, m.Completed()[0].Status)
	for i := 1; i < len(statuses); i++ {
		assert.GreaterOrEqual(t, statuses[i].Rank(), statuses[i-1].Rank(), "step %d", i)
	}
	assert.Empty(t, m.Active(), "a completed signal is never resurrected")
}

func TestManager_Dedupe(t *testing.T) {
	m := newManager(t, nil)

	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)

	_, err = m.Track("BTCUSDT", longSetup("trend_continuation"))
	assert.ErrorIs(t, err, domain.ErrDuplicateSignal)

	_, err = m.Track("BTCUSDT", longSetup("mean_reversion"))
	assert.NoError(t, err)
	_, err = m.Track("ETHUSDT", longSetup("trend_continuation"))
	assert.NoError(t, err)

	assert.Len(t, m.Active(), 3)

	// una vez cerrada, la misma estrategia puede volver a rastrearse
	m.UpdateMarketPrice("BTCUSDT", 101)
	m.UpdateMarketPrice("BTCUSDT", 90)
	_, err = m.Track("BTCUSDT", longSetup("trend_continuation"))
	assert.NoError(t, err)
}

func TestManager_MissingEntryIsNoop(t *testing.T) {
	store := emptyStore()
	m := newManager(t, store)

	setup := longSetup("trend_continuation")
	setup.Entry = 0
	_, err := m.Track("BTCUSDT", setup)

	assert.ErrorIs(t, err, domain.ErrMissingEntry)
	assert.Empty(t, m.Active())
	require.NoError(t, m.Close(context.Background()))
	store.AssertNotCalled(t, "SaveSignal", mock.Anything, mock.Anything)
}

func TestManager_InvalidSetup(t *testing.T) {
	m := newManager(t, nil)
	setup := longSetup("trend_continuation")
	setup.StopLoss = 105

	_, err := m.Track("BTCUSDT", setup)
	assert.ErrorIs(t, err, domain.ErrInvalidSetup)
}

func TestManager_IgnoresBadPrices(t *testing.T) {
	m := newManager(t, nil)
	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)

	assert.Nil(t, m.UpdateMarketPrice("BTCUSDT", 0))
	assert.Nil(t, m.UpdateMarketPrice("BTCUSDT", -5))
	assert.Nil(t, m.UpdateMarketPrice("UNKNOWN", 100))
	assert.Zero(t, m.ActiveFor("BTCUSDT")[0].CurrentPrice)
}

func TestManager_PersistsLifecycle(t *testing.T) {
	store := emptyStore()
	store.On("SaveSignal", mock.Anything, mock.MatchedBy(func(s domain.Signal) bool {
		return s.ID == "sig-1" && s.Status == domain.SignalPending
	})).Return(nil).Once()
	store.On("UpdateSignal", mock.Anything, "sig-1", mock.MatchedBy(func(p domain.SignalPatch) bool {
		return p.Status != nil && *p.Status == domain.SignalActive
	})).Return(nil).Once()
	store.On("UpdateSignal", mock.Anything, "sig-1", mock.MatchedBy(func(p domain.SignalPatch) bool {
		return p.Status != nil && *p.Status == domain.SignalCompleted &&
			p.Outcome != nil && *p.Outcome == domain.OutcomeStopLoss
	})).Return(nil).Once()

	m := newManager(t, store)
	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)

	m.UpdateMarketPrice("BTCUSDT", 101)
	m.UpdateMarketPrice("BTCUSDT", 98) // solo pnl: no se persiste
	m.UpdateMarketPrice("BTCUSDT", 94)

	require.NoError(t, m.Close(context.Background()))
	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "UpdateSignal", 2)
}

func TestManager_PersistenceFailureDoesNotRollBack(t *testing.T) {
	store := emptyStore()
	store.On("SaveSignal", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	store.On("UpdateSignal", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	m := newManager(t, store)
	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)
	m.UpdateMarketPrice("BTCUSDT", 101)

	require.NoError(t, m.Close(context.Background()))

	got := m.ActiveFor("BTCUSDT")
	require.Len(t, got, 1)
	assert.Equal(t, domain.SignalActive, got[0].Status)

	// tras Close las transiciones siguen aplicándose en memoria
	m.UpdateMarketPrice("BTCUSDT", 90)
	assert.Len(t, m.Completed(), 1)
}

func TestManager_FullQueueDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	store := emptyStore()
	store.On("SaveSignal", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil).Maybe()

	m := signals.New(signals.Config{PersistQueue: 1}, store)
	require.NoError(t, m.Init(context.Background()))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 5; i++ {
			_, _ = m.Track("BTCUSDT", longSetup(fmt.Sprintf("s%d", i)))
		}
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Track blocked on a full persistence queue")
	}
	assert.Len(t, m.Active(), 5)

	close(release)
	require.NoError(t, m.Close(context.Background()))
}

func TestManager_InitRestoresState(t *testing.T) {
	closedAt := t0.Add(-time.Hour)
	store := &mockStore{}
	store.On("LoadActiveSignals", mock.Anything).Return([]domain.Signal{
		{ID: "a", Symbol: "BTCUSDT", Strategy: "trend_continuation", Direction: domain.Long,
			Entry: 100, StopLoss: 95, Targets: []domain.Target{{Price: 110}}, Status: domain.SignalActive},
		{ID: "b", Symbol: "ETHUSDT", Strategy: "mean_reversion", Direction: domain.Short,
			Entry: 50, StopLoss: 55, Targets: []domain.Target{{Price: 45}}, Status: domain.SignalPending},
		{ID: "c", Symbol: "ETHUSDT", Status: domain.SignalCompleted},
	}, nil)
	store.On("LoadCompletedSignals", mock.Anything, 500).Return([]domain.Signal{
		{ID: "old", Symbol: "BTCUSDT", Status: domain.SignalCompleted, Outcome: domain.OutcomeTakeProfit, PnL: 5, ClosedAt: &closedAt},
	}, nil)

	m := newManager(t, store)

	assert.Len(t, m.Active(), 2)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, m.Symbols())
	assert.Len(t, m.Completed(), 1)

	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	assert.ErrorIs(t, err, domain.ErrDuplicateSignal, "restored signals take part in dedupe")

	got, err := m.Get("old")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTakeProfit, got.Outcome)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSignalNotFound)
}

func TestManager_InitLoadError(t *testing.T) {
	store := &mockStore{}
	store.On("LoadActiveSignals", mock.Anything).Return([]domain.Signal{}, errors.New("no such table"))

	m := signals.New(signals.DefaultConfig(), store)
	err := m.Init(context.Background())
	assert.Error(t, err)
}

func TestManager_SubscribeAndDispose(t *testing.T) {
	m := newManager(t, nil)

	var seen [][]domain.Signal
	dispose := m.Subscribe(func(active []domain.Signal) { seen = append(seen, active) })

	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)
	_, err = m.Track("ETHUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 1)
	assert.Len(t, seen[1], 2, "listeners get the flattened list across symbols")

	dispose()
	dispose()
	m.UpdateMarketPrice("BTCUSDT", 101)
	assert.Len(t, seen, 2)
}

func TestManager_ListenerPanicIsContained(t *testing.T) {
	m := newManager(t, nil)
	calls := 0
	m.Subscribe(func([]domain.Signal) { panic("listener bug") })
	m.Subscribe(func([]domain.Signal) { calls++ })

	assert.NotPanics(t, func() {
		_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
		require.NoError(t, err)
	})
	assert.Equal(t, 1, calls)
}

func TestManager_SnapshotsAreCopies(t *testing.T) {
	m := newManager(t, nil)
	_, err := m.Track("BTCUSDT", longSetup("trend_continuation"))
	require.NoError(t, err)

	snap := m.Active()
	snap[0].Targets[0].Reached = true
	snap[0].Status = domain.SignalCompleted

	fresh := m.Active()
	assert.False(t, fresh[0].Targets[0].Reached)
	assert.Equal(t, domain.SignalPending, fresh[0].Status)
}

func TestManager_Stats(t *testing.T) {
	m := newManager(t, nil)

	for i, sym := range []string{"A", "B", "C"} {
		_, err := m.Track(sym, longSetup("trend_continuation"))
		require.NoError(t, err)
		m.UpdateMarketPrice(sym, 100)
		if i < 2 {
			m.UpdateMarketPrice(sym, 110)
		} else {
			m.UpdateMarketPrice(sym, 95)
		}
	}
	_, err := m.Track("D", longSetup("trend_continuation"))
	require.NoError(t, err)

	st := m.Stats()
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 3, st.Completed)
	assert.Equal(t, 2, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 2.0/3.0, st.WinRate, 1e-9)
	assert.InDelta(t, 15, st.TotalPnL, 1e-9)
	assert.InDelta(t, 5, st.AvgPnL, 1e-9)
}

func TestManager_CompletedHistoryIsCapped(t *testing.T) {
	m := signals.New(signals.Config{CompletedHistory: 2}, nil)
	require.NoError(t, m.Init(context.Background()))
	defer m.Close(context.Background())

	for _, sym := range []string{"A", "B", "C"} {
		_, err := m.Track(sym, longSetup("trend_continuation"))
		require.NoError(t, err)
		m.UpdateMarketPrice(sym, 110)
	}

	done := m.Completed()
	require.Len(t, done, 2)
	assert.Equal(t, "B", done[0].Symbol)
	assert.Equal(t, "C", done[1].Symbol)
}
