// Package metrics defines the observability sinks the simulation records
// into. Implementations live in infra/metrics.
package metrics

import "time"

// ClearingEvent captures the outcome of one hourly auction.
type ClearingEvent struct {
	Date   time.Time
	Hour   int
	Price  float64
	Volume float64
	Traded bool
	Orders int
}

// DayOutcomeEvent captures the result of one simulated day.
type DayOutcomeEvent struct {
	Date     time.Time
	Success  bool
	Reason   string
	Duration time.Duration
}

// DispatchEvent captures one asset's dispatch for a day.
type DispatchEvent struct {
	Date      time.Time
	Portfolio string
	Asset     string
	Category  string
	Failed    bool
	EnergyKWh float64 // net grid exchange summed over the day
}

// OrderEvent captures an order submission.
type OrderEvent struct {
	Participant string
	Date        time.Time
	Hour        int
	Price       float64
	Quantity    float64
	Rejected    bool
}

// MetricsSink records market clearing results.
type MetricsSink interface {
	RecordClearing(events []ClearingEvent) error
}

// DayOutcomeRecorder records per-day outcomes.
type DayOutcomeRecorder interface {
	RecordDayOutcome(ev DayOutcomeEvent) error
}

// DispatchRecorder records per-asset dispatch events.
type DispatchRecorder interface {
	RecordDispatch(ev DispatchEvent) error
}

// OrderRecorder records order submissions.
type OrderRecorder interface {
	RecordOrder(ev OrderEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordClearing([]ClearingEvent) error   { return nil }
func (NopSink) RecordDayOutcome(DayOutcomeEvent) error { return nil }
func (NopSink) RecordDispatch(DispatchEvent) error     { return nil }
func (NopSink) RecordOrder(OrderEvent) error           { return nil }
