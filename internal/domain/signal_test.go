package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionalPnL_Long(t *testing.T) {
	assert.InDelta(t, 1.0, DirectionalPnL(Long, 100, 101), 1e-9)
	assert.InDelta(t, -4.0, DirectionalPnL(Long, 100, 96), 1e-9)
}

func TestDirectionalPnL_Short(t *testing.T) {
	assert.InDelta(t, 2.5, DirectionalPnL(Short, 100, 97.5), 1e-9)
	assert.InDelta(t, -1.0, DirectionalPnL(Short, 100, 101), 1e-9)
}

func TestDirectionalPnL_NoFloatDrift(t *testing.T) {
	// 0.3 - 0.1 en float64 da 0.19999999999999998
	assert.Equal(t, 0.2, DirectionalPnL(Long, 0.1, 0.3))
}

func TestTouches_InclusiveLevels(t *testing.T) {
	assert.True(t, Touches(Long, 100, 100))
	assert.True(t, Touches(Long, 101, 100))
	assert.False(t, Touches(Long, 99.99, 100))
	assert.True(t, Touches(Short, 100, 100))
	assert.False(t, Touches(Short, 100.01, 100))
}

func TestBreaches_InclusiveStop(t *testing.T) {
	assert.True(t, Breaches(Long, 95, 95))
	assert.False(t, Breaches(Long, 96, 95))
	assert.True(t, Breaches(Short, 105, 105))
	assert.False(t, Breaches(Short, 104, 105))
}

func TestSetup_Validate(t *testing.T) {
	ok := Setup{Strategy: "s", Direction: Long, Entry: 100, StopLoss: 95, Targets: []float64{110}}
	require.NoError(t, ok.Validate())

	missing := ok
	missing.Entry = 0
	assert.ErrorIs(t, missing.Validate(), ErrMissingEntry)

	wrongStop := ok
	wrongStop.StopLoss = 105
	assert.True(t, errors.Is(wrongStop.Validate(), ErrInvalidSetup))

	noTargets := ok
	noTargets.Targets = nil
	assert.ErrorIs(t, noTargets.Validate(), ErrInvalidSetup)

	short := Setup{Strategy: "s", Direction: Short, Entry: 100, StopLoss: 105, Targets: []float64{90}}
	assert.NoError(t, short.Validate())
}

func TestSignal_CloneIsDeep(t *testing.T) {
	now := time.Now()
	s := Signal{
		Targets:     []Target{{Price: 110}},
		Updates:     []SignalUpdate{{Event: EventTracked}},
		ActivatedAt: &now,
	}
	c := s.Clone()
	c.Targets[0].Reached = true
	c.Updates[0].Event = EventStopped
	*c.ActivatedAt = now.Add(time.Hour)

	assert.False(t, s.Targets[0].Reached)
	assert.Equal(t, EventTracked, s.Updates[0].Event)
	assert.Equal(t, now, *s.ActivatedAt)
}

func TestSignalStatus_Rank(t *testing.T) {
	assert.Less(t, SignalPending.Rank(), SignalActive.Rank())
	assert.Less(t, SignalActive.Rank(), SignalCompleted.Rank())
}

func TestComputeStats_WinRate(t *testing.T) {
	completed := []Signal{
		{Outcome: OutcomeTakeProfit, PnL: 10},
		{Outcome: OutcomeStopLoss, PnL: -5},
		{Outcome: OutcomeTakeProfit, PnL: 4},
		{Outcome: OutcomeStopLoss, PnL: -1},
	}
	st := ComputeStats(completed, 3)
	assert.Equal(t, 4, st.Completed)
	assert.Equal(t, 3, st.Active)
	assert.Equal(t, 2, st.Wins)
	assert.Equal(t, 2, st.Losses)
	assert.InDelta(t, 0.5, st.WinRate, 1e-9)
	assert.InDelta(t, 8.0, st.TotalPnL, 1e-9)
	assert.InDelta(t, 2.0, st.AvgPnL, 1e-9)
}

func TestComputeStats_Empty(t *testing.T) {
	st := ComputeStats(nil, 0)
	assert.Equal(t, 0.0, st.WinRate)
}

func TestBias_Aligns(t *testing.T) {
	assert.Equal(t, 1, Bullish.Aligns(Long))
	assert.Equal(t, -1, Bullish.Aligns(Short))
	assert.Equal(t, 0, Neutral.Aligns(Long))
	assert.Equal(t, 0, Bias("").Aligns(Short))
}
