package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dmas-energy/dmas/core/model"
)

// Barrier blocks the orchestrator after the clearing phase until the
// market has confirmed the day, or the barrier gives up.
type Barrier interface {
	Wait(ctx context.Context, date time.Time) error
}

// ClearedChecker reports whether a day's market has been cleared. The
// market operator implements it.
type ClearedChecker interface {
	Cleared(date time.Time) bool
}

// StatusBarrier polls a cleared-status flag with a periodic re-check
// until it is set or the timeout expires.
type StatusBarrier struct {
	Checker ClearedChecker
	Timeout time.Duration
	Poll    time.Duration
}

// Wait implements Barrier.
func (b StatusBarrier) Wait(ctx context.Context, date time.Time) error {
	poll := b.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(poll)
	defer tick.Stop()
	for {
		if b.Checker.Cleared(date) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("market not cleared within %s", timeout)
		case <-tick.C:
		}
	}
}

// AckBarrier waits for a number of clearing acknowledgments on a channel.
type AckBarrier struct {
	Acks     <-chan model.PhaseAck
	Expected int
	Timeout  time.Duration
}

// Wait implements Barrier.
func (b AckBarrier) Wait(ctx context.Context, date time.Time) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	expected := b.Expected
	if expected <= 0 {
		expected = 1
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	got := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("received %d of %d clearing acks within %s", got, expected, timeout)
		case ack, ok := <-b.Acks:
			if !ok {
				return fmt.Errorf("ack channel closed after %d of %d acks", got, expected)
			}
			if ack.Phase != model.PhaseClearDayAhead || !model.Midnight(ack.Date).Equal(model.Midnight(date)) {
				continue
			}
			got++
			if got >= expected {
				return nil
			}
		}
	}
}
