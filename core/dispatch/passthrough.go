package dispatch

import "context"

// PassThrough feeds the difference between generation and demand straight
// into the grid. Solar parks, wind farms and must-run plants use it.
type PassThrough struct{}

// Dispatch computes grid[h] = generation[h] - demand[h] for every hour.
// Positive grid exchange is a feed-in.
func (PassThrough) Dispatch(_ context.Context, day Context) (Result, error) {
	n, err := day.T()
	if err != nil {
		return Result{}, err
	}
	res := newResult(n)
	for h := 0; h < n; h++ {
		res.Generation[h] = day.generationAt(h)
		res.Demand[h] = day.demandAt(h)
		res.Grid[h] = res.Generation[h] - res.Demand[h]
		// feed-in earns, consumption pays
		res.CashFlow[h] = importCost(-res.Grid[h], day.priceAt(h))
	}
	return res, nil
}
