package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/dmas-energy/dmas/core/dispatch"
	"github.com/dmas-energy/dmas/core/logger"
	"github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
)

// Totals are the aggregated hourly series of one category.
type Totals struct {
	Generation []float64
	Demand     []float64
	CashFlow   []float64
}

func newTotals() *Totals {
	return &Totals{
		Generation: make([]float64, model.HoursPerDay),
		Demand:     make([]float64, model.HoursPerDay),
		CashFlow:   make([]float64, model.HoursPerDay),
	}
}

func (t *Totals) add(res dispatch.Result) {
	floats.Add(t.Generation, res.Generation)
	floats.Add(t.Demand, res.Demand)
	floats.Add(t.CashFlow, res.CashFlow)
}

// Portfolio owns an insertion-ordered set of assets sharing one simulated
// day's forecast context. Assets are never removed.
type Portfolio struct {
	name          string
	workers       int
	solverTimeout time.Duration
	optimizer     dispatch.Optimizer
	log           logger.Logger
	sink          metrics.DispatchRecorder

	mu         sync.Mutex
	assets     []*Asset
	capacities map[Category]float64
	fc         model.ForecastContext
	hasContext bool

	totals   map[Category]*Totals
	netPower []float64
}

// Option tweaks portfolio construction.
type Option func(*Portfolio)

// WithOptimizer sets the external solver used by black-box assets.
func WithOptimizer(opt dispatch.Optimizer) Option {
	return func(p *Portfolio) { p.optimizer = opt }
}

// WithSolverTimeout bounds each black-box solver call.
func WithSolverTimeout(d time.Duration) Option {
	return func(p *Portfolio) { p.solverTimeout = d }
}

// WithDispatchRecorder records a per-asset dispatch event on every
// Optimize call.
func WithDispatchRecorder(sink metrics.DispatchRecorder) Option {
	return func(p *Portfolio) { p.sink = sink }
}

// New creates an empty portfolio. workers bounds the number of assets
// dispatched concurrently; values below one fall back to sequential.
func New(name string, workers int, log logger.Logger, opts ...Option) *Portfolio {
	if workers < 1 {
		workers = 1
	}
	p := &Portfolio{
		name:       name,
		workers:    workers,
		log:        log,
		capacities: make(map[Category]float64),
		totals:     make(map[Category]*Totals),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the portfolio identifier used on submitted orders.
func (p *Portfolio) Name() string { return p.name }

// AddAsset constructs an asset of the requested variant and registers it
// under its category. The rated capacity joins the category tally.
func (p *Portfolio) AddAsset(spec AssetSpec) error {
	a, err := newAsset(spec, p.optimizer, p.solverTimeout)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.assets = append(p.assets, a)
	p.capacities[spec.Category] += spec.CapacityKW
	p.mu.Unlock()
	return nil
}

// InstalledCapacity returns the capacity tally for a category in kW.
func (p *Portfolio) InstalledCapacity(c Category) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacities[c]
}

// AssetCount returns the number of registered assets.
func (p *Portfolio) AssetCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.assets)
}

// SetContext broadcasts the shared forecast context for the day. Assets
// ignore fields they do not need.
func (p *Portfolio) SetContext(date time.Time, weather model.Weather, prices model.PriceSignal) {
	p.mu.Lock()
	p.fc = model.ForecastContext{Date: model.Midnight(date), Weather: weather, Prices: prices}
	p.hasContext = true
	p.mu.Unlock()
}

// Optimize dispatches every asset for the current day and recomputes the
// category totals and the hourly net position. Assets carry no same-day
// dependency on one another, so a bounded worker pool runs them
// concurrently; the reduction into totals is an order-independent sum.
// A failing asset is logged and contributes zero for the day.
func (p *Portfolio) Optimize(ctx context.Context) error {
	p.mu.Lock()
	if !p.hasContext {
		p.mu.Unlock()
		return fmt.Errorf("portfolio %s: no forecast context set", p.name)
	}
	assets := append([]*Asset(nil), p.assets...)
	fc := p.fc
	p.mu.Unlock()

	results := make([]*dispatch.Result, len(assets))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, a := range assets {
		wg.Add(1)
		go func(i int, a *Asset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			day := dispatch.Context{Date: fc.Date, Profile: a.profile(fc), Prices: fc.Prices.Power}
			res, err := a.engine.Dispatch(ctx, day)
			if err != nil {
				if p.log != nil {
					p.log.Errorf("portfolio %s: asset %s failed for %s: %v", p.name, a.Spec.Name, model.DateKey(fc.Date), err)
				}
				p.recordDispatch(fc.Date, a, nil)
				return
			}
			results[i] = &res
			p.recordDispatch(fc.Date, a, &res)
		}(i, a)
	}
	wg.Wait()

	totals := map[Category]*Totals{TotalCategory: newTotals()}
	for i, a := range assets {
		if results[i] == nil {
			continue
		}
		t, ok := totals[a.Spec.Category]
		if !ok {
			t = newTotals()
			totals[a.Spec.Category] = t
		}
		t.add(*results[i])
		totals[TotalCategory].add(*results[i])
	}
	net := make([]float64, model.HoursPerDay)
	floats.AddScaled(net, 1, totals[TotalCategory].Generation)
	floats.AddScaled(net, -1, totals[TotalCategory].Demand)

	p.mu.Lock()
	p.totals = totals
	p.netPower = net
	p.mu.Unlock()
	return nil
}

// recordDispatch reports one asset's day to the dispatch sink. A nil
// result marks the dispatch as failed.
func (p *Portfolio) recordDispatch(date time.Time, a *Asset, res *dispatch.Result) {
	if p.sink == nil {
		return
	}
	ev := metrics.DispatchEvent{
		Date:      date,
		Portfolio: p.name,
		Asset:     a.Spec.Name,
		Category:  string(a.Spec.Category),
		Failed:    res == nil,
	}
	if res != nil {
		ev.EnergyKWh = floats.Sum(res.Grid)
	}
	if err := p.sink.RecordDispatch(ev); err != nil && p.log != nil {
		p.log.Errorf("portfolio %s: dispatch metrics: %v", p.name, err)
	}
}

// Totals returns the aggregated series for a category, or zeros when the
// category dispatched nothing today.
func (p *Portfolio) Totals(c Category) Totals {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.totals[c]; ok {
		out := newTotals()
		copy(out.Generation, t.Generation)
		copy(out.Demand, t.Demand)
		copy(out.CashFlow, t.CashFlow)
		return *out
	}
	return *newTotals()
}

// NetPower returns generation minus demand per hour for the current day.
func (p *Portfolio) NetPower() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, model.HoursPerDay)
	copy(out, p.netPower)
	return out
}

// BidOrders derives one bid per hour with positive net power, quoted at
// the given reservation price.
func (p *Portfolio) BidOrders(price float64) []model.Order {
	return p.orders(price, true)
}

// AskOrders derives one ask per hour with negative net power, quoted at
// the given reservation price.
func (p *Portfolio) AskOrders(price float64) []model.Order {
	return p.orders(price, false)
}

func (p *Portfolio) orders(price float64, bids bool) []model.Order {
	p.mu.Lock()
	net := append([]float64(nil), p.netPower...)
	date := p.fc.Date
	p.mu.Unlock()

	var out []model.Order
	for h, v := range net {
		if v == 0 {
			continue
		}
		if bids != (v > 0) {
			continue
		}
		out = append(out, model.Order{
			ID:          uuid.NewString(),
			Participant: p.name,
			Date:        date,
			Hour:        h,
			Price:       price,
			Quantity:    v,
		})
	}
	return out
}
