// Package orchestrator drives the simulated calendar and publishes the
// ordered phase events of every day on the message exchange.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmas-energy/dmas/core/exchange"
	"github.com/dmas-energy/dmas/core/logger"
	"github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
)

// Outcome is the explicit per-day result of the calendar step. A failed
// day is logged and reported; it never halts the calendar.
type Outcome struct {
	Day model.SimulationDay
	Err error
}

// Success reports whether the day completed without error.
func (o Outcome) Success() bool { return o.Err == nil }

// Orchestrator publishes the phase sequence day by day. By default it
// does not wait for phase completion by subscribers before emitting the
// next phase; a Barrier makes the step after market clearing blocking.
type Orchestrator struct {
	pub     exchange.Publisher
	barrier Barrier
	log     logger.Logger
	sink    metrics.DayOutcomeRecorder
}

// New creates an orchestrator. barrier may be nil for the default
// fire-and-forget behaviour; sink may be nil.
func New(pub exchange.Publisher, barrier Barrier, log logger.Logger, sink metrics.DayOutcomeRecorder) (*Orchestrator, error) {
	if pub == nil {
		return nil, fmt.Errorf("orchestrator: nil publisher")
	}
	return &Orchestrator{pub: pub, barrier: barrier, log: log, sink: sink}, nil
}

// Advance publishes the fixed phase sequence for one day. With a barrier
// configured, the orchestrator waits after CLEAR_DAY_AHEAD before issuing
// the grid and results phases; a barrier timeout is logged and the day
// continues, matching the best-effort default.
func (o *Orchestrator) Advance(ctx context.Context, day model.SimulationDay) Outcome {
	start := time.Now()
	for _, phase := range model.PhaseSequence() {
		if err := ctx.Err(); err != nil {
			return o.finish(day, start, fmt.Errorf("advance aborted: %w", err))
		}
		ev := model.PhaseEvent{ID: uuid.NewString(), Phase: phase, Date: day.Date}
		if err := o.pub.PublishPhase(ev); err != nil {
			return o.finish(day, start, fmt.Errorf("publish %s: %w", phase, err))
		}
		if o.log != nil {
			o.log.Infof("published %s for %s", phase, model.DateKey(day.Date))
		}
		if phase == model.PhaseClearDayAhead && o.barrier != nil {
			if err := o.barrier.Wait(ctx, day.Date); err != nil {
				if o.log != nil {
					o.log.Warnf("clearing barrier for %s: %v", model.DateKey(day.Date), err)
				}
			}
		}
	}
	return o.finish(day, start, nil)
}

func (o *Orchestrator) finish(day model.SimulationDay, start time.Time, err error) Outcome {
	out := Outcome{Day: day, Err: err}
	if err != nil && o.log != nil {
		o.log.Errorf("day %s failed: %v", model.DateKey(day.Date), err)
	}
	if o.sink != nil {
		ev := metrics.DayOutcomeEvent{
			Date:     day.Date,
			Success:  err == nil,
			Duration: time.Since(start),
		}
		if err != nil {
			ev.Reason = err.Error()
		}
		if rerr := o.sink.RecordDayOutcome(ev); rerr != nil && o.log != nil {
			o.log.Errorf("day outcome metrics: %v", rerr)
		}
	}
	return out
}

// Run advances the calendar from start up to but excluding stop.
// Cancellation stops the calendar between days; the outcomes collected so
// far are returned.
func (o *Orchestrator) Run(ctx context.Context, start, stop time.Time) []Outcome {
	var outcomes []Outcome
	day := model.NewSimulationDay(start, 0)
	end := model.Midnight(stop)
	for day.Date.Before(end) {
		if ctx.Err() != nil {
			if o.log != nil {
				o.log.Warnf("simulation cancelled after %d days", len(outcomes))
			}
			return outcomes
		}
		outcomes = append(outcomes, o.Advance(ctx, day))
		day = day.Next()
	}
	return outcomes
}
