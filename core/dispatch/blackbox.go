package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Constraints are the technical limits handed to the external optimizer.
type Constraints struct {
	PowerMin     float64 // minimum stable output [kW]
	PowerMax     float64 // rated output [kW]
	MarginalCost float64 // [EUR/MWh]
	StartEnergy  float64 // prior state carried into the solve [kWh]
}

// Solution is what an optimizer returns for one day.
type Solution struct {
	Result    Result
	EndEnergy float64
}

// Optimizer is the external unit-commitment solver collaborator. The core
// only implements the contract, not the solver.
type Optimizer interface {
	Solve(ctx context.Context, c Constraints, day Context) (Solution, error)
}

// InfeasibleError is returned by an optimizer when no feasible dispatch
// exists for the given constraints.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("solver infeasible: %s", e.Reason)
}

// IsInfeasible reports whether err stems from solver infeasibility.
func IsInfeasible(err error) bool {
	var ie *InfeasibleError
	return errors.As(err, &ie)
}

// BlackBox delegates dispatch to an external optimizer. The call is
// bounded by Timeout; a timeout counts as solver failure and the asset
// contributes zero for the day.
type BlackBox struct {
	Optimizer   Optimizer
	Constraints Constraints
	Store       *StorageState
	Timeout     time.Duration
}

// NewBlackBox builds a black-box engine around the given optimizer.
func NewBlackBox(opt Optimizer, c Constraints, store *StorageState, timeout time.Duration) (*BlackBox, error) {
	if opt == nil {
		return nil, fmt.Errorf("black box: nil optimizer")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BlackBox{Optimizer: opt, Constraints: c, Store: store, Timeout: timeout}, nil
}

// Dispatch runs the solver as one atomic call. State is committed only
// when the solve succeeded and the returned series have the right length.
func (b *BlackBox) Dispatch(ctx context.Context, day Context) (Result, error) {
	n, err := day.T()
	if err != nil {
		return Result{}, err
	}
	c := b.Constraints
	if b.Store != nil {
		c.StartEnergy = b.Store.Energy
	}
	cctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()
	sol, err := b.Optimizer.Solve(cctx, c, day)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("black box: solver timeout after %s: %w", b.Timeout, err)
		}
		return Result{}, fmt.Errorf("black box: %w", err)
	}
	for _, s := range [][]float64{sol.Result.Generation, sol.Result.Demand, sol.Result.Grid, sol.Result.CashFlow} {
		if len(s) != n {
			return Result{}, fmt.Errorf("black box: solver returned %d hours, want %d", len(s), n)
		}
	}
	if b.Store != nil {
		if err := b.Store.check(sol.EndEnergy); err != nil {
			return Result{}, err
		}
		b.Store.Energy = sol.EndEnergy
	}
	return sol.Result, nil
}

// MeritOrderOptimizer is a deterministic stand-in for the external MIP
// solver: the plant runs at rated power whenever the price covers its
// marginal cost and at minimum output otherwise.
type MeritOrderOptimizer struct{}

// Solve implements Optimizer.
func (MeritOrderOptimizer) Solve(ctx context.Context, c Constraints, day Context) (Solution, error) {
	if err := ctx.Err(); err != nil {
		return Solution{}, err
	}
	if c.PowerMax < c.PowerMin {
		return Solution{}, &InfeasibleError{Reason: fmt.Sprintf("power_max %.1f below power_min %.1f", c.PowerMax, c.PowerMin)}
	}
	n, err := day.T()
	if err != nil {
		return Solution{}, err
	}
	res := newResult(n)
	for h := 0; h < n; h++ {
		p := c.PowerMin
		if day.priceAt(h) >= c.MarginalCost {
			p = c.PowerMax
		}
		res.Generation[h] = p
		res.Grid[h] = p
		res.CashFlow[h] = p * (day.priceAt(h) - c.MarginalCost) / 1000
	}
	return Solution{Result: res, EndEnergy: c.StartEnergy}, nil
}
