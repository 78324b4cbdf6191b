package model

import "time"

// HoursPerDay is the number of trading intervals in one simulated day.
const HoursPerDay = 24

// Phase identifies one step of the simulated day-ahead routine.
type Phase string

const (
	PhaseOptimizeDayAhead Phase = "OPTIMIZE_DAY_AHEAD"
	PhaseClearDayAhead    Phase = "CLEAR_DAY_AHEAD"
	PhaseGridCalc         Phase = "GRID_CALC"
	PhasePublishResults   Phase = "PUBLISH_RESULTS"
)

// PhaseSequence returns the fixed order in which phases are published
// for every simulated day.
func PhaseSequence() []Phase {
	return []Phase{PhaseOptimizeDayAhead, PhaseClearDayAhead, PhaseGridCalc, PhasePublishResults}
}

// SimulationDay is one entry of the simulated calendar. Days advance
// monotonically and are never revisited.
type SimulationDay struct {
	Date  time.Time
	Index int
}

// NewSimulationDay normalizes date to midnight UTC.
func NewSimulationDay(date time.Time, index int) SimulationDay {
	return SimulationDay{Date: Midnight(date), Index: index}
}

// Next returns the following calendar day.
func (d SimulationDay) Next() SimulationDay {
	return SimulationDay{Date: d.Date.AddDate(0, 0, 1), Index: d.Index + 1}
}

// Midnight truncates t to the start of its UTC day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date the way the order book keys its days.
func DateKey(t time.Time) string { return Midnight(t).Format("2006-01-02") }

// PhaseEvent is published on the exchange for every phase of a day.
// Events are immutable once published.
type PhaseEvent struct {
	ID    string    `json:"id"`
	Phase Phase     `json:"phase"`
	Date  time.Time `json:"date"`
}

// PhaseAck is sent by a subscriber once it finished handling a phase.
// The market operator acknowledges PhaseClearDayAhead this way, which is
// what the optional orchestrator barrier waits for.
type PhaseAck struct {
	Phase       Phase     `json:"phase"`
	Date        time.Time `json:"date"`
	Participant string    `json:"participant"`
}
