package portfolio

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/dmas-energy/dmas/core/dispatch"
	"github.com/dmas-energy/dmas/core/forecast"
	"github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
)

var testDay = time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

func testContext(t *testing.T, p *Portfolio) {
	t.Helper()
	prov := forecast.Static{}
	w, err := prov.Weather(testDay)
	require.NoError(t, err)
	prices, err := prov.Price(testDay)
	require.NoError(t, err)
	p.SetContext(testDay, w, prices)
}

func solarSpec(name string, capacity float64) AssetSpec {
	return AssetSpec{
		Name: name, Kind: dispatch.KindPassThrough, Category: CategorySolar,
		CapacityKW: capacity, Azimuth: 180, Tilt: 35,
	}
}

func TestAddAssetCapacityTally(t *testing.T) {
	p := New("res_1", 4, nil)
	require.NoError(t, p.AddAsset(solarSpec("pv_0", 100)))
	require.NoError(t, p.AddAsset(solarSpec("pv_1", 50)))
	require.NoError(t, p.AddAsset(AssetSpec{
		Name: "wind_0", Kind: dispatch.KindPassThrough, Category: CategoryWind, CapacityKW: 200,
	}))

	assert.InDelta(t, 150, p.InstalledCapacity(CategorySolar), 1e-9)
	assert.InDelta(t, 200, p.InstalledCapacity(CategoryWind), 1e-9)
	assert.Equal(t, 3, p.AssetCount())
}

func TestAddAssetValidation(t *testing.T) {
	p := New("res_1", 1, nil)
	assert.Error(t, p.AddAsset(AssetSpec{Kind: dispatch.KindPassThrough, Category: CategorySolar}))
	assert.Error(t, p.AddAsset(AssetSpec{Name: "b", Kind: dispatch.KindBattery, Category: CategoryStorage}))
	assert.Error(t, p.AddAsset(AssetSpec{Name: "x", Kind: "mystery", Category: CategorySolar}))
}

func TestOptimizeCategoryAggregation(t *testing.T) {
	p := New("res_1", 4, nil)
	require.NoError(t, p.AddAsset(solarSpec("pv_0", 100)))
	require.NoError(t, p.AddAsset(solarSpec("pv_1", 40)))
	testContext(t, p)
	require.NoError(t, p.Optimize(context.Background()))

	solar := p.Totals(CategorySolar)
	total := p.Totals(TotalCategory)
	single := New("single", 1, nil)
	require.NoError(t, single.AddAsset(solarSpec("pv", 140)))
	testContext(t, single)
	require.NoError(t, single.Optimize(context.Background()))
	combined := single.Totals(CategorySolar)

	for h := 0; h < model.HoursPerDay; h++ {
		// total equals the elementwise sum of the members
		assert.InDelta(t, solar.Generation[h], total.Generation[h], 1e-9)
		// two plants of 100 and 40 kW equal one of 140 kW
		assert.InDelta(t, combined.Generation[h], solar.Generation[h], 1e-9)
	}
}

func TestOptimizeNetPowerAndOrders(t *testing.T) {
	p := New("res_1", 2, nil)
	require.NoError(t, p.AddAsset(solarSpec("pv_0", 100)))
	require.NoError(t, p.AddAsset(AssetSpec{
		Name: "home_0", Kind: dispatch.KindPassThrough, Category: CategoryDemand, DemandKWhYear: 300000,
	}))
	testContext(t, p)
	require.NoError(t, p.Optimize(context.Background()))

	net := p.NetPower()
	total := p.Totals(TotalCategory)
	for h := 0; h < model.HoursPerDay; h++ {
		assert.InDelta(t, total.Generation[h]-total.Demand[h], net[h], 1e-9)
	}

	bids := p.BidOrders(30)
	asks := p.AskOrders(3000)
	seen := make(map[int]bool)
	for _, o := range bids {
		assert.True(t, o.Quantity > 0)
		assert.InDelta(t, net[o.Hour], o.Quantity, 1e-9)
		assert.Equal(t, 30.0, o.Price)
		assert.Equal(t, "res_1", o.Participant)
		seen[o.Hour] = true
	}
	for _, o := range asks {
		assert.True(t, o.Quantity < 0)
		assert.InDelta(t, net[o.Hour], o.Quantity, 1e-9)
		assert.False(t, seen[o.Hour], "hour %d produced both a bid and an ask", o.Hour)
		seen[o.Hour] = true
	}
	// every non-zero hour produced exactly one order
	nonZero := 0
	for _, v := range net {
		if v != 0 {
			nonZero++
		}
	}
	assert.Equal(t, nonZero, len(bids)+len(asks))
}

type failingOptimizer struct{}

func (failingOptimizer) Solve(context.Context, dispatch.Constraints, dispatch.Context) (dispatch.Solution, error) {
	return dispatch.Solution{}, &dispatch.InfeasibleError{Reason: "unit test"}
}

func TestOptimizeFailingAssetContributesZero(t *testing.T) {
	p := New("pwp_1", 2, nil, WithOptimizer(failingOptimizer{}))
	require.NoError(t, p.AddAsset(solarSpec("pv_0", 100)))
	require.NoError(t, p.AddAsset(AssetSpec{
		Name: "plant_0", Kind: dispatch.KindBlackBox, Category: CategoryFossil, CapacityKW: 500,
		Plant: &PlantParams{PowerMin: 100, PowerMax: 500, MarginalCost: 30},
	}))
	testContext(t, p)
	require.NoError(t, p.Optimize(context.Background()))

	fossil := p.Totals(CategoryFossil)
	total := p.Totals(TotalCategory)
	solar := p.Totals(CategorySolar)
	for h := 0; h < model.HoursPerDay; h++ {
		assert.Zero(t, fossil.Generation[h])
		assert.InDelta(t, solar.Generation[h], total.Generation[h], 1e-9)
	}
}

type recordingDispatchSink struct {
	mu     sync.Mutex
	events []metrics.DispatchEvent
}

func (s *recordingDispatchSink) RecordDispatch(ev metrics.DispatchEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func TestOptimizeRecordsDispatchEvents(t *testing.T) {
	sink := &recordingDispatchSink{}
	p := New("pwp_1", 2, nil, WithOptimizer(failingOptimizer{}), WithDispatchRecorder(sink))
	require.NoError(t, p.AddAsset(solarSpec("pv_0", 100)))
	require.NoError(t, p.AddAsset(AssetSpec{
		Name: "plant_0", Kind: dispatch.KindBlackBox, Category: CategoryFossil, CapacityKW: 500,
		Plant: &PlantParams{PowerMin: 100, PowerMax: 500, MarginalCost: 30},
	}))
	testContext(t, p)
	require.NoError(t, p.Optimize(context.Background()))

	require.Len(t, sink.events, 2)
	byAsset := make(map[string]metrics.DispatchEvent)
	for _, ev := range sink.events {
		assert.Equal(t, "pwp_1", ev.Portfolio)
		assert.True(t, ev.Date.Equal(testDay))
		byAsset[ev.Asset] = ev
	}
	assert.False(t, byAsset["pv_0"].Failed)
	assert.Equal(t, string(CategorySolar), byAsset["pv_0"].Category)
	assert.True(t, byAsset["plant_0"].Failed)
	assert.Zero(t, byAsset["plant_0"].EnergyKWh)

	total := p.Totals(TotalCategory)
	assert.InDelta(t, floats.Sum(total.Generation)-floats.Sum(total.Demand), byAsset["pv_0"].EnergyKWh, 1e-9)
}

func TestOptimizeWithoutContext(t *testing.T) {
	p := New("res_1", 1, nil)
	require.NoError(t, p.AddAsset(solarSpec("pv_0", 10)))
	assert.Error(t, p.Optimize(context.Background()))
}

func TestOptimizeWorkerPoolMatchesSequential(t *testing.T) {
	build := func(workers int) *Portfolio {
		p := New("res_1", workers, nil)
		for _, spec := range []AssetSpec{
			solarSpec("pv_0", 100),
			solarSpec("pv_1", 70),
			{Name: "bat_0", Kind: dispatch.KindBattery, Category: CategoryStorage, CapacityKW: 10,
				DemandKWhYear: 50000,
				Battery:       &BatteryParams{VMin: 0, VMax: 20, EtaCharge: 0.9, EtaDischarge: 0.9}},
			{Name: "hp_0", Kind: dispatch.KindHeatPump, Category: CategoryDemand, DemandKWhYear: 30000,
				HeatKWhYear: 80000, Tank: &TankParams{TankMax: 40, COP: 3}},
		} {
			if err := p.AddAsset(spec); err != nil {
				t.Fatalf("add asset: %v", err)
			}
		}
		testContext(t, p)
		if err := p.Optimize(context.Background()); err != nil {
			t.Fatalf("optimize: %v", err)
		}
		return p
	}
	seq := build(1)
	par := build(8)
	seqTotal := seq.Totals(TotalCategory)
	parTotal := par.Totals(TotalCategory)
	for h := 0; h < model.HoursPerDay; h++ {
		if math.Abs(seqTotal.Generation[h]-parTotal.Generation[h]) > 1e-9 ||
			math.Abs(seqTotal.Demand[h]-parTotal.Demand[h]) > 1e-9 {
			t.Fatalf("hour %d differs between sequential and parallel run", h)
		}
	}
}
