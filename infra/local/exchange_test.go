package local

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmas-energy/dmas/core/model"
)

func TestExchangeDeliversPhasesInOrder(t *testing.T) {
	e := NewExchange()
	defer e.Close()

	var got []model.Phase
	require.NoError(t, e.SubscribePhases(func(ev model.PhaseEvent) {
		got = append(got, ev.Phase)
	}))

	date := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	for _, p := range model.PhaseSequence() {
		require.NoError(t, e.PublishPhase(model.PhaseEvent{ID: "1", Phase: p, Date: date}))
	}
	assert.Equal(t, model.PhaseSequence(), got)
}

func TestExchangeFansOutToAllSubscribers(t *testing.T) {
	e := NewExchange()
	defer e.Close()

	first, second := 0, 0
	require.NoError(t, e.SubscribePhases(func(model.PhaseEvent) { first++ }))
	require.NoError(t, e.SubscribePhases(func(model.PhaseEvent) { second++ }))

	require.NoError(t, e.PublishPhase(model.PhaseEvent{Phase: model.PhaseOptimizeDayAhead}))
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestExchangeSubscribeDuringDelivery(t *testing.T) {
	e := NewExchange()
	defer e.Close()

	late := 0
	require.NoError(t, e.SubscribePhases(func(model.PhaseEvent) {
		// registering from inside a handler must not block delivery
		require.NoError(t, e.SubscribePhases(func(model.PhaseEvent) { late++ }))
	}))

	require.NoError(t, e.PublishPhase(model.PhaseEvent{Phase: model.PhaseOptimizeDayAhead}))
	assert.Zero(t, late, "late subscriber saw the in-flight event")

	require.NoError(t, e.PublishPhase(model.PhaseEvent{Phase: model.PhaseClearDayAhead}))
	assert.Equal(t, 1, late)
}

func TestExchangeAcks(t *testing.T) {
	e := NewExchange()
	defer e.Close()

	var handled []model.PhaseAck
	require.NoError(t, e.SubscribeAcks(func(a model.PhaseAck) { handled = append(handled, a) }))
	ch := e.AckChannel(4)

	ack := model.PhaseAck{Phase: model.PhaseClearDayAhead, Participant: "market"}
	require.NoError(t, e.PublishAck(ack))

	require.Len(t, handled, 1)
	assert.Equal(t, "market", handled[0].Participant)
	select {
	case got := <-ch:
		assert.Equal(t, ack.Phase, got.Phase)
	default:
		t.Fatal("ack channel empty")
	}
}

func TestExchangeCloseIdempotent(t *testing.T) {
	e := NewExchange()
	e.Close()
	e.Close()
}
