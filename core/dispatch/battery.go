package dispatch

import (
	"context"
	"fmt"
)

// Battery plans storage use against the hourly residual to maximise
// self-consumption. Positive grid exchange means drawing from the grid.
type Battery struct {
	Store        *StorageState
	EtaCharge    float64
	EtaDischarge float64
}

// NewBattery builds a battery engine with bounds [vmin, vmax] starting at
// level v0.
func NewBattery(vmin, vmax, v0, etaCharge, etaDischarge float64) (*Battery, error) {
	if vmax <= vmin {
		return nil, fmt.Errorf("battery: vmax must exceed vmin")
	}
	if etaCharge <= 0 || etaCharge > 1 || etaDischarge <= 0 || etaDischarge > 1 {
		return nil, fmt.Errorf("battery: efficiencies must be in (0, 1]")
	}
	st := &StorageState{Energy: v0, Min: vmin, Max: vmax}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &Battery{Store: st, EtaCharge: etaCharge, EtaDischarge: etaDischarge}, nil
}

// Dispatch walks the hours in order, maintaining the planned storage level.
// The state is committed only after the whole day succeeded.
func (b *Battery) Dispatch(_ context.Context, day Context) (Result, error) {
	n, err := day.T()
	if err != nil {
		return Result{}, err
	}
	res := newResult(n)
	v := b.Store.Energy
	vmax := b.Store.Max

	for h := 0; h < n; h++ {
		gen := day.generationAt(h)
		dem := day.demandAt(h)
		r := dem - gen

		var grid float64
		usable := (v - b.Store.Min) * b.EtaDischarge
		switch {
		case r >= 0 && v <= b.Store.Min+boundsEps:
			// deficit, storage empty
			grid = r
			v = b.Store.Min
		case r >= 0 && usable <= r:
			// deficit larger than remaining storage, discharge fully
			grid = r - usable
			v = b.Store.Min
		case r >= 0:
			// deficit covered by storage
			grid = 0
			v -= r / b.EtaDischarge
		case v >= vmax-boundsEps:
			// surplus, storage full
			grid = r
			v = vmax
		case v-r*b.EtaCharge <= vmax:
			// store the whole surplus
			grid = 0
			v -= r * b.EtaCharge
		default:
			// store up to capacity, export the rest
			grid = r + (vmax-v)/b.EtaCharge
			v = vmax
		}

		if err := b.Store.check(v); err != nil {
			return Result{}, fmt.Errorf("battery hour %d: %w", h, err)
		}
		res.Generation[h] = gen
		res.Demand[h] = dem
		res.Grid[h] = grid
		res.CashFlow[h] = importCost(grid, day.priceAt(h))
	}

	b.Store.Energy = v
	return res, nil
}
