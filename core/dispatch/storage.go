package dispatch

import (
	"errors"
	"fmt"
)

// ErrStorageBounds marks a fatal invariant violation: the planned storage
// level left its configured bounds. Dispatch must abort, never clamp.
var ErrStorageBounds = errors.New("storage state out of bounds")

// boundsEps absorbs float rounding when checking storage bounds.
const boundsEps = 1e-9

// StorageState is the stored energy of a battery or thermal tank. It is
// exclusively owned by its asset and persists across simulated days.
type StorageState struct {
	Energy float64 // current level [kWh] (thermal kWh for tanks)
	Min    float64
	Max    float64
}

// Validate checks the configured bounds and the current level.
func (s StorageState) Validate() error {
	if s.Max < s.Min {
		return fmt.Errorf("storage: max %.3f below min %.3f", s.Max, s.Min)
	}
	return s.check(s.Energy)
}

// check verifies that v lies within the configured bounds.
func (s StorageState) check(v float64) error {
	if v < s.Min-boundsEps || v > s.Max+boundsEps {
		return fmt.Errorf("%w: %.6f not in [%.3f, %.3f]", ErrStorageBounds, v, s.Min, s.Max)
	}
	return nil
}
