package model

import "time"

// Weather carries the hourly weather forecast for one day. All series
// have HoursPerDay entries.
type Weather struct {
	Direct      []float64 `json:"dir"`  // direct irradiance [W/m2]
	Diffuse     []float64 `json:"dif"`  // diffuse irradiance [W/m2]
	WindSpeed   []float64 `json:"wind"` // wind speed [m/s]
	Temperature []float64 `json:"temp"` // air temperature [degC]
}

// PriceSignal is the hourly day-ahead price forecast.
type PriceSignal struct {
	Power []float64 `json:"power"` // [EUR/MWh]
}

// ForecastContext bundles the shared forecast data one portfolio
// broadcasts to its assets for a simulated day.
type ForecastContext struct {
	Date    time.Time
	Weather Weather
	Prices  PriceSignal
}

// PriceAt returns the power price for hour h, or 0 when the signal is
// shorter than the day.
func (f ForecastContext) PriceAt(h int) float64 {
	if h < 0 || h >= len(f.Prices.Power) {
		return 0
	}
	return f.Prices.Power[h]
}
