// Package forecast defines the forecast collaborator contracts consumed
// by participant agents, plus deterministic providers for tests and the
// in-process simulation.
package forecast

import (
	"math"
	"time"

	"github.com/dmas-energy/dmas/core/model"
)

// WeatherProvider returns the hourly weather forecast for a date.
type WeatherProvider interface {
	Weather(date time.Time) (model.Weather, error)
}

// DemandProvider returns the hourly system demand forecast for a date.
type DemandProvider interface {
	DemandForecast(date time.Time) ([]float64, error)
}

// PriceProvider returns the hourly price forecast for a date.
type PriceProvider interface {
	Price(date time.Time) (model.PriceSignal, error)
}

// Provider bundles all forecast contracts an agent needs.
type Provider interface {
	WeatherProvider
	DemandProvider
	PriceProvider
}

// Static is a deterministic provider: a bell-shaped irradiance curve
// around noon, a flat wind profile and a two-peak price signal. The same
// date always yields the same forecast.
type Static struct {
	PeakIrradiance float64 // [W/m2], default 600
	BasePrice      float64 // [EUR/MWh], default 35
	BaseDemand     float64 // [kW], default 50
}

// Weather implements WeatherProvider.
func (s Static) Weather(date time.Time) (model.Weather, error) {
	peak := s.PeakIrradiance
	if peak == 0 {
		peak = 600
	}
	w := model.Weather{
		Direct:      make([]float64, model.HoursPerDay),
		Diffuse:     make([]float64, model.HoursPerDay),
		WindSpeed:   make([]float64, model.HoursPerDay),
		Temperature: make([]float64, model.HoursPerDay),
	}
	// seasonal factor keeps summer days sunnier than winter days
	season := 0.75 + 0.25*math.Cos(2*math.Pi*float64(date.YearDay()-172)/365)
	for h := 0; h < model.HoursPerDay; h++ {
		sun := math.Sin(math.Pi * float64(h-6) / 12)
		if h < 6 || h > 18 || sun < 0 {
			sun = 0
		}
		w.Direct[h] = peak * season * sun
		w.Diffuse[h] = 0.3 * peak * season * sun
		w.WindSpeed[h] = 5.5
		w.Temperature[h] = 10 + 8*sun
	}
	return w, nil
}

// DemandForecast implements DemandProvider.
func (s Static) DemandForecast(date time.Time) ([]float64, error) {
	base := s.BaseDemand
	if base == 0 {
		base = 50
	}
	out := make([]float64, model.HoursPerDay)
	for h := 0; h < model.HoursPerDay; h++ {
		out[h] = base * loadShape(h)
	}
	return out, nil
}

// Price implements PriceProvider.
func (s Static) Price(date time.Time) (model.PriceSignal, error) {
	base := s.BasePrice
	if base == 0 {
		base = 35
	}
	prices := make([]float64, model.HoursPerDay)
	for h := 0; h < model.HoursPerDay; h++ {
		prices[h] = base * loadShape(h)
	}
	return model.PriceSignal{Power: prices}, nil
}

// loadShape is a normalized daily profile with a morning and an evening
// peak.
func loadShape(h int) float64 {
	morning := math.Exp(-math.Pow(float64(h)-8, 2) / 8)
	evening := math.Exp(-math.Pow(float64(h)-19, 2) / 8)
	return 0.6 + 0.5*morning + 0.7*evening
}
