package dispatch

import (
	"context"
	"fmt"
)

// HeatPumpTank couples the electrical residual with an independent heat
// demand profile. Heat is served from the thermal tank first; unmet heat
// is produced on demand by the heat pump at electrical cost heat/COP.
// Electrical surplus charges the tank through the heat pump.
type HeatPumpTank struct {
	Store *StorageState // thermal [kWh]
	COP   float64
}

// NewHeatPumpTank builds a heat pump engine with tank bounds [0, tankMax].
func NewHeatPumpTank(tankMax, v0, cop float64) (*HeatPumpTank, error) {
	if tankMax <= 0 {
		return nil, fmt.Errorf("heat pump: tank_max must be positive")
	}
	if cop <= 0 {
		return nil, fmt.Errorf("heat pump: cop must be positive")
	}
	st := &StorageState{Energy: v0, Min: 0, Max: tankMax}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &HeatPumpTank{Store: st, COP: cop}, nil
}

// Dispatch serves the heat demand and balances the resulting electrical
// residual hour by hour. Thermal quantities cross the electrical boundary
// divided or multiplied by COP.
func (hp *HeatPumpTank) Dispatch(_ context.Context, day Context) (Result, error) {
	n, err := day.T()
	if err != nil {
		return Result{}, err
	}
	res := newResult(n)
	v := hp.Store.Energy
	tankMax := hp.Store.Max

	for h := 0; h < n; h++ {
		gen := day.generationAt(h)
		dem := day.demandAt(h)
		heat := day.heatAt(h)
		r := dem - gen

		if heat > v+boundsEps {
			// tank cannot cover the hour, the pump produces all of it;
			// no discharge below zero is attempted
			r += heat / hp.COP
		} else {
			v -= heat
		}

		var grid float64
		switch {
		case r >= 0:
			// the tank cannot serve electrical demand, remaining deficit
			// comes from the grid
			grid = r
		case v >= tankMax-boundsEps:
			// surplus, tank full
			grid = r
			v = tankMax
		case v-r*hp.COP <= tankMax:
			// convert the whole surplus to heat
			grid = 0
			v -= r * hp.COP
		default:
			// charge up to tank capacity, export the rest
			grid = r + (tankMax-v)/hp.COP
			v = tankMax
		}

		if err := hp.Store.check(v); err != nil {
			return Result{}, fmt.Errorf("heat pump hour %d: %w", h, err)
		}
		res.Generation[h] = gen
		res.Demand[h] = dem
		res.Grid[h] = grid
		res.CashFlow[h] = importCost(grid, day.priceAt(h))
	}

	hp.Store.Energy = v
	return res, nil
}
