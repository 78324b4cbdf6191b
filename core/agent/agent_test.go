package agent

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmas-energy/dmas/core/dispatch"
	"github.com/dmas-energy/dmas/core/forecast"
	"github.com/dmas-energy/dmas/core/market"
	"github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
	"github.com/dmas-energy/dmas/core/portfolio"
)

var testDate = time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

type failingProvider struct {
	forecast.Static
}

func (failingProvider) Weather(time.Time) (model.Weather, error) {
	return model.Weather{}, fmt.Errorf("upstream unavailable")
}

type recordingAcks struct {
	mu   sync.Mutex
	acks []model.PhaseAck
}

func (r *recordingAcks) PublishAck(a model.PhaseAck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks = append(r.acks, a)
	return nil
}

type recordingSink struct {
	metrics.NopSink
	mu       sync.Mutex
	clearing []metrics.ClearingEvent
	orders   []metrics.OrderEvent
}

func (r *recordingSink) RecordClearing(events []metrics.ClearingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearing = append(r.clearing, events...)
	return nil
}

func (r *recordingSink) RecordOrder(ev metrics.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, ev)
	return nil
}

func testPortfolio(t *testing.T, name string) *portfolio.Portfolio {
	t.Helper()
	p := portfolio.New(name, 2, nil)
	require.NoError(t, p.AddAsset(portfolio.AssetSpec{
		Name:       name + "-pv",
		Kind:       dispatch.KindPassThrough,
		Category:   portfolio.CategorySolar,
		CapacityKW: 80,
		Tilt:       35,
		Azimuth:    180,
	}))
	require.NoError(t, p.AddAsset(portfolio.AssetSpec{
		Name:          name + "-load",
		Kind:          dispatch.KindPassThrough,
		Category:      portfolio.CategoryDemand,
		DemandKWhYear: 200_000,
	}))
	return p
}

func TestParticipantSubmitsOrders(t *testing.T) {
	book := market.NewOrderBook(nil)
	sink := &recordingSink{}
	p := testPortfolio(t, "pv-house")
	a := NewParticipant(p, forecast.Static{}, book, 100, 5, sink, nil)

	a.HandlePhase(model.PhaseEvent{Phase: model.PhaseOptimizeDayAhead, Date: testDate})

	total := 0
	for h := 0; h < model.HoursPerDay; h++ {
		for _, o := range book.Orders(testDate, h) {
			assert.Equal(t, "pv-house", o.Participant)
			assert.Equal(t, h, o.Hour)
			total++
		}
	}
	assert.NotZero(t, total, "expected orders in the book")
	assert.Len(t, sink.orders, total)
	for _, ev := range sink.orders {
		assert.False(t, ev.Rejected)
	}
}

func TestParticipantForecastFailureSkipsDay(t *testing.T) {
	book := market.NewOrderBook(nil)
	p := testPortfolio(t, "pv-house")
	a := NewParticipant(p, failingProvider{}, book, 100, 5, nil, nil)

	a.HandlePhase(model.PhaseEvent{Phase: model.PhaseOptimizeDayAhead, Date: testDate})

	for h := 0; h < model.HoursPerDay; h++ {
		assert.Empty(t, book.Orders(testDate, h))
	}
}

func TestParticipantIgnoresOtherPhases(t *testing.T) {
	book := market.NewOrderBook(nil)
	p := testPortfolio(t, "pv-house")
	a := NewParticipant(p, forecast.Static{}, book, 100, 5, nil, nil)

	a.HandlePhase(model.PhaseEvent{Phase: model.PhaseGridCalc, Date: testDate})

	for h := 0; h < model.HoursPerDay; h++ {
		assert.Empty(t, book.Orders(testDate, h))
	}
}

func TestParticipantRejectedOrderRecorded(t *testing.T) {
	book := market.NewOrderBook(nil)
	sink := &recordingSink{}
	p := testPortfolio(t, "pv-house")
	a := NewParticipant(p, forecast.Static{}, book, 100, 5, sink, nil)

	// clearing every hour up front rejects all later submissions
	_, err := book.ClearDay(testDate)
	require.NoError(t, err)

	a.HandlePhase(model.PhaseEvent{Phase: model.PhaseOptimizeDayAhead, Date: testDate})

	require.NotEmpty(t, sink.orders)
	for _, ev := range sink.orders {
		assert.True(t, ev.Rejected)
	}
}

func TestOperatorClearsAndAcks(t *testing.T) {
	book := market.NewOrderBook(nil)
	acks := &recordingAcks{}
	sink := &recordingSink{}
	op := NewOperator("market", book, acks, sink, nil)

	for h := 0; h < model.HoursPerDay; h++ {
		require.NoError(t, book.Submit(model.Order{
			ID: fmt.Sprintf("bid-%d", h), Participant: "buyer", Date: testDate, Hour: h, Price: 60, Quantity: 10,
		}))
		require.NoError(t, book.Submit(model.Order{
			ID: fmt.Sprintf("ask-%d", h), Participant: "seller", Date: testDate, Hour: h, Price: 20, Quantity: -10,
		}))
	}

	assert.False(t, op.Cleared(testDate))
	op.HandlePhase(model.PhaseEvent{Phase: model.PhaseClearDayAhead, Date: testDate})

	assert.True(t, op.Cleared(testDate))
	results := op.Results(testDate)
	require.Len(t, results, model.HoursPerDay)
	for _, r := range results {
		assert.True(t, r.Traded)
		assert.InDelta(t, 10.0, r.Volume, 1e-9)
	}

	require.Len(t, acks.acks, 1)
	assert.Equal(t, model.PhaseClearDayAhead, acks.acks[0].Phase)
	assert.Equal(t, "market", acks.acks[0].Participant)
	assert.Len(t, sink.clearing, model.HoursPerDay)
}

func TestOperatorIgnoresOtherPhases(t *testing.T) {
	book := market.NewOrderBook(nil)
	op := NewOperator("market", book, nil, nil, nil)

	op.HandlePhase(model.PhaseEvent{Phase: model.PhaseOptimizeDayAhead, Date: testDate})

	assert.False(t, op.Cleared(testDate))
}

func TestOperatorResultsUnknownDay(t *testing.T) {
	op := NewOperator("market", market.NewOrderBook(nil), nil, nil, nil)
	assert.Nil(t, op.Results(testDate))
}
