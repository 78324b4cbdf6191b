package dispatch

import (
	"context"
	"fmt"
	"time"
)

// Kind tags the closed set of dispatch engine variants.
type Kind string

const (
	KindPassThrough Kind = "pass_through"
	KindBattery     Kind = "battery"
	KindHeatPump    Kind = "heat_pump_tank"
	KindBlackBox    Kind = "black_box"
)

// Profile holds the hourly series an engine balances for one day.
// Generation and Demand are electrical [kW], Heat is thermal [kW].
type Profile struct {
	Generation []float64
	Demand     []float64
	Heat       []float64
}

// Context is the per-day input of an engine.
type Context struct {
	Date    time.Time
	Profile Profile
	Prices  []float64 // [EUR/MWh], one entry per hour
}

// Result is the per-asset output for one day. All series have exactly
// T entries.
type Result struct {
	Generation []float64 // [kW]
	Demand     []float64 // [kW]
	Grid       []float64 // grid exchange [kW]
	CashFlow   []float64 // [EUR]
}

// Engine produces a Result from one day's context, mutating the asset's
// storage state in place on success only.
type Engine interface {
	Dispatch(ctx context.Context, day Context) (Result, error)
}

// T returns the number of hours covered by the context, validating that
// all provided series agree on it.
func (c Context) T() (int, error) {
	n := len(c.Profile.Demand)
	if n == 0 {
		n = len(c.Profile.Generation)
	}
	if n == 0 {
		return 0, fmt.Errorf("dispatch: empty day profile")
	}
	if len(c.Profile.Generation) != 0 && len(c.Profile.Generation) != n {
		return 0, fmt.Errorf("dispatch: generation length %d != %d", len(c.Profile.Generation), n)
	}
	if len(c.Profile.Demand) != 0 && len(c.Profile.Demand) != n {
		return 0, fmt.Errorf("dispatch: demand length %d != %d", len(c.Profile.Demand), n)
	}
	if len(c.Profile.Heat) != 0 && len(c.Profile.Heat) != n {
		return 0, fmt.Errorf("dispatch: heat length %d != %d", len(c.Profile.Heat), n)
	}
	return n, nil
}

// generationAt and demandAt treat missing series as zero so pure
// generators and pure consumers can share one Profile shape.
func (c Context) generationAt(h int) float64 {
	if h < len(c.Profile.Generation) {
		return c.Profile.Generation[h]
	}
	return 0
}

func (c Context) demandAt(h int) float64 {
	if h < len(c.Profile.Demand) {
		return c.Profile.Demand[h]
	}
	return 0
}

func (c Context) heatAt(h int) float64 {
	if h < len(c.Profile.Heat) {
		return c.Profile.Heat[h]
	}
	return 0
}

func (c Context) priceAt(h int) float64 {
	if h < len(c.Prices) {
		return c.Prices[h]
	}
	return 0
}

// newResult allocates a zeroed Result for n hours.
func newResult(n int) Result {
	return Result{
		Generation: make([]float64, n),
		Demand:     make([]float64, n),
		Grid:       make([]float64, n),
		CashFlow:   make([]float64, n),
	}
}

// importCost values an hourly import [kW] at the given price [EUR/MWh].
// A negative import (export) yields revenue.
func importCost(importKW, priceEURMWh float64) float64 {
	return -importKW * priceEURMWh / 1000
}
