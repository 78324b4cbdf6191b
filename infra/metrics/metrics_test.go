package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/dmas-energy/dmas/core/metrics"
)

var testDate = time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

func TestPromSinkRecordsClearing(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordClearing([]coremetrics.ClearingEvent{
		{Date: testDate, Hour: 0, Price: 42.5, Volume: 120, Traded: true},
		{Date: testDate, Hour: 1, Traded: false},
	}))

	assert.InDelta(t, 42.5, testutil.ToFloat64(sink.clearingPrice.WithLabelValues("0")), 1e-9)
	assert.InDelta(t, 120.0, testutil.ToFloat64(sink.clearingVolume.WithLabelValues("0")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(sink.trades.WithLabelValues("true")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(sink.trades.WithLabelValues("false")), 1e-9)
}

func TestPromSinkRecordsDayOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordDayOutcome(coremetrics.DayOutcomeEvent{Date: testDate, Success: true, Duration: time.Second}))
	require.NoError(t, sink.RecordDayOutcome(coremetrics.DayOutcomeEvent{Date: testDate, Success: false, Reason: "broker gone"}))

	assert.InDelta(t, 1.0, testutil.ToFloat64(sink.days.WithLabelValues("true")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(sink.days.WithLabelValues("false")), 1e-9)
}

func TestPromSinkRecordsOrdersAndDispatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordOrder(coremetrics.OrderEvent{Participant: "pv-house", Date: testDate, Hour: 12, Quantity: 5}))
	require.NoError(t, sink.RecordDispatch(coremetrics.DispatchEvent{Portfolio: "pv-house", Asset: "pv", Category: "solar"}))

	assert.InDelta(t, 1.0, testutil.ToFloat64(sink.orders.WithLabelValues("pv-house", "false")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(sink.dispatches.WithLabelValues("pv-house", "solar", "false")), 1e-9)
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)
	_, err = NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	assert.NoError(t, err, "second registration reuses the existing collectors")
}

type countingSink struct {
	coremetrics.NopSink
	clearing int
	days     int
	orders   int
}

func (c *countingSink) RecordClearing([]coremetrics.ClearingEvent) error { c.clearing++; return nil }
func (c *countingSink) RecordDayOutcome(coremetrics.DayOutcomeEvent) error {
	c.days++
	return nil
}
func (c *countingSink) RecordOrder(coremetrics.OrderEvent) error { c.orders++; return nil }

func TestMultiSinkFansOut(t *testing.T) {
	s1 := &countingSink{}
	s2 := &countingSink{}
	m := NewMultiSink(s1, s2)

	require.NoError(t, m.RecordClearing(nil))
	require.NoError(t, m.RecordDayOutcome(coremetrics.DayOutcomeEvent{}))
	require.NoError(t, m.RecordOrder(coremetrics.OrderEvent{}))

	for _, s := range []*countingSink{s1, s2} {
		assert.Equal(t, 1, s.clearing)
		assert.Equal(t, 1, s.days)
		assert.Equal(t, 1, s.orders)
	}
}

type clearingOnlySink struct{}

func (clearingOnlySink) RecordClearing([]coremetrics.ClearingEvent) error { return nil }

func TestMultiSinkSkipsUnsupportedRecorders(t *testing.T) {
	m := NewMultiSink(clearingOnlySink{})
	assert.NoError(t, m.RecordDayOutcome(coremetrics.DayOutcomeEvent{}))
	assert.NoError(t, m.RecordDispatch(coremetrics.DispatchEvent{}))
}

func TestInfluxFallbackWhenUnreachable(t *testing.T) {
	sink := NewInfluxSinkWithFallback("http://127.0.0.1:1", "token", "org", "bucket")
	_, isNop := sink.(coremetrics.NopSink)
	assert.True(t, isNop, "unreachable influx should fall back to NopSink")
}
