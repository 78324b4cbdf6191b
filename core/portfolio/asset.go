// Package portfolio composes many dispatch engines sharing one simulated
// day into a participant's net position and derived market orders.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/dmas-energy/dmas/core/dispatch"
	"github.com/dmas-energy/dmas/core/model"
)

// Category groups assets for aggregate totals and capacity tallies.
type Category string

const (
	CategorySolar   Category = "solar"
	CategoryWind    Category = "wind"
	CategoryFossil  Category = "fossil"
	CategoryStorage Category = "storage"
	CategoryDemand  Category = "demand"
)

// TotalCategory is the pseudo-category summing across all categories.
const TotalCategory Category = "total"

// BatteryParams configure a battery asset.
type BatteryParams struct {
	VMin         float64 `json:"vmin"`
	VMax         float64 `json:"vmax"`
	EtaCharge    float64 `json:"eta_charge"`
	EtaDischarge float64 `json:"eta_discharge"`
}

// TankParams configure a heat pump's thermal tank.
type TankParams struct {
	TankMax float64 `json:"tank_max"`
	COP     float64 `json:"cop"`
}

// PlantParams configure a black-box optimized plant.
type PlantParams struct {
	PowerMin     float64 `json:"power_min"`
	PowerMax     float64 `json:"power_max"`
	MarginalCost float64 `json:"marginal_cost"`
}

// AssetSpec is the enumerated configuration of one dispatch unit.
type AssetSpec struct {
	Name       string        `json:"name"`
	Kind       dispatch.Kind `json:"kind"`
	Category   Category      `json:"category"`
	CapacityKW float64       `json:"capacity_kw"`

	// pass-through solar orientation
	Azimuth float64 `json:"azimuth"`
	Tilt    float64 `json:"tilt"`

	// annual consumption driving the demand and heat profiles
	DemandKWhYear float64 `json:"demand_kwh_year"`
	HeatKWhYear   float64 `json:"heat_kwh_year"`

	Battery *BatteryParams `json:"battery,omitempty"`
	Tank    *TankParams    `json:"tank,omitempty"`
	Plant   *PlantParams   `json:"plant,omitempty"`
}

// Validate checks that the spec names everything its kind needs.
func (s AssetSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("asset: name is required")
	}
	if s.Category == "" {
		return fmt.Errorf("asset %s: category is required", s.Name)
	}
	switch s.Kind {
	case dispatch.KindPassThrough:
	case dispatch.KindBattery:
		if s.Battery == nil {
			return fmt.Errorf("asset %s: battery parameters are required", s.Name)
		}
	case dispatch.KindHeatPump:
		if s.Tank == nil {
			return fmt.Errorf("asset %s: tank parameters are required", s.Name)
		}
	case dispatch.KindBlackBox:
		if s.Plant == nil {
			return fmt.Errorf("asset %s: plant parameters are required", s.Name)
		}
	default:
		return fmt.Errorf("asset %s: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}

// Asset couples a spec with its engine. The engine owns the storage state
// across simulated days.
type Asset struct {
	Spec   AssetSpec
	engine dispatch.Engine
}

// newAsset builds the engine for the spec. The optimizer is only used by
// black-box assets.
func newAsset(spec AssetSpec, opt dispatch.Optimizer, solverTimeout time.Duration) (*Asset, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	var (
		engine dispatch.Engine
		err    error
	)
	switch spec.Kind {
	case dispatch.KindPassThrough:
		engine = dispatch.PassThrough{}
	case dispatch.KindBattery:
		engine, err = dispatch.NewBattery(spec.Battery.VMin, spec.Battery.VMax, spec.Battery.VMin, spec.Battery.EtaCharge, spec.Battery.EtaDischarge)
	case dispatch.KindHeatPump:
		engine, err = dispatch.NewHeatPumpTank(spec.Tank.TankMax, 0, spec.Tank.COP)
	case dispatch.KindBlackBox:
		if opt == nil {
			opt = dispatch.MeritOrderOptimizer{}
		}
		c := dispatch.Constraints{
			PowerMin:     spec.Plant.PowerMin,
			PowerMax:     spec.Plant.PowerMax,
			MarginalCost: spec.Plant.MarginalCost,
		}
		engine, err = dispatch.NewBlackBox(opt, c, nil, solverTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", spec.Name, err)
	}
	return &Asset{Spec: spec, engine: engine}, nil
}

// profile derives the asset's hourly series from the shared forecast
// context. Irradiance and wind physics live in external collaborators;
// these shapes only scale the forecast to the asset's rated capacity.
func (a *Asset) profile(fc model.ForecastContext) dispatch.Profile {
	p := dispatch.Profile{
		Generation: make([]float64, model.HoursPerDay),
		Demand:     make([]float64, model.HoursPerDay),
	}
	avgDemand := a.Spec.DemandKWhYear / 8760
	for h := 0; h < model.HoursPerDay; h++ {
		p.Generation[h] = a.generationAt(fc, h)
		p.Demand[h] = avgDemand * loadFactor(h)
	}
	if a.Spec.HeatKWhYear > 0 {
		p.Heat = make([]float64, model.HoursPerDay)
		avgHeat := a.Spec.HeatKWhYear / 8760
		for h := 0; h < model.HoursPerDay; h++ {
			p.Heat[h] = avgHeat * heatFactor(fc, h)
		}
	}
	return p
}

func (a *Asset) generationAt(fc model.ForecastContext, h int) float64 {
	switch a.Spec.Category {
	case CategorySolar:
		if h >= len(fc.Weather.Direct) || h >= len(fc.Weather.Diffuse) {
			return 0
		}
		ghi := fc.Weather.Direct[h] + fc.Weather.Diffuse[h]
		// tilt away from the reference plane derates the yield
		derate := 1 - math.Abs(a.Spec.Tilt-35)/180 - math.Abs(a.Spec.Azimuth-180)/720
		if derate < 0 {
			derate = 0
		}
		return a.Spec.CapacityKW * derate * ghi / 1000
	case CategoryWind:
		if h >= len(fc.Weather.WindSpeed) {
			return 0
		}
		return a.Spec.CapacityKW * windYield(fc.Weather.WindSpeed[h])
	default:
		return 0
	}
}

// windYield maps wind speed to a per-unit power output with cut-in at
// 3 m/s and rated output from 12 m/s.
func windYield(speed float64) float64 {
	switch {
	case speed < 3 || speed > 25:
		return 0
	case speed >= 12:
		return 1
	default:
		f := (speed - 3) / 9
		return f * f * f
	}
}

// loadFactor is the normalized household demand shape.
func loadFactor(h int) float64 {
	morning := math.Exp(-math.Pow(float64(h)-8, 2) / 8)
	evening := math.Exp(-math.Pow(float64(h)-19, 2) / 8)
	return 0.6 + 0.5*morning + 0.7*evening
}

// heatFactor rises linearly below the 18 degC heating threshold.
func heatFactor(fc model.ForecastContext, h int) float64 {
	temp := 10.0
	if h < len(fc.Weather.Temperature) {
		temp = fc.Weather.Temperature[h]
	}
	if temp >= 18 {
		return 0
	}
	return (18 - temp) / 10
}
