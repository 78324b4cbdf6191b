package metrics

import coremetrics "github.com/dmas-energy/dmas/core/metrics"

// MultiSink fans events out to multiple sinks. Recorders a sink does not
// implement are skipped.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordClearing forwards the events to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordClearing(events []coremetrics.ClearingEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordClearing(events); err != nil {
			return err
		}
	}
	return nil
}

// RecordDayOutcome forwards day outcomes.
func (m *MultiSink) RecordDayOutcome(ev coremetrics.DayOutcomeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.DayOutcomeRecorder); ok {
			if err := rec.RecordDayOutcome(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOrder forwards order submissions.
func (m *MultiSink) RecordOrder(ev coremetrics.OrderEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.OrderRecorder); ok {
			if err := rec.RecordOrder(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDispatch forwards dispatch events.
func (m *MultiSink) RecordDispatch(ev coremetrics.DispatchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.DispatchRecorder); ok {
			if err := rec.RecordDispatch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
