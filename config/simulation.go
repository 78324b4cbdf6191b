package config

import (
	"fmt"
	"time"

	"github.com/dmas-energy/dmas/core/forecast"
	"github.com/dmas-energy/dmas/core/portfolio"
)

const dateLayout = "2006-01-02"

// SimulationConfig defines the simulated calendar and the orchestrator's
// clearing barrier.
type SimulationConfig struct {
	// StartDate is the first simulated day, formatted 2006-01-02.
	StartDate string `json:"start_date"`
	// StopDate is exclusive: the simulation runs up to the day before.
	StopDate string `json:"stop_date"`
	// Barrier selects how the orchestrator waits for market clearing:
	// "none" (fire-and-forget), "status" or "ack".
	Barrier string `json:"barrier"`
	// BarrierTimeoutSeconds bounds the wait after CLEAR_DAY_AHEAD.
	BarrierTimeoutSeconds int `json:"barrier_timeout_seconds"`
	// BarrierPollMS is the re-check interval of the status barrier.
	BarrierPollMS int `json:"barrier_poll_ms"`
	// ExpectedAcks is the ack count the ack barrier waits for.
	ExpectedAcks int `json:"expected_acks"`
	// Workers bounds concurrent asset dispatches per portfolio.
	Workers int `json:"workers"`
	// SolverTimeoutSeconds bounds each black-box solver call.
	SolverTimeoutSeconds int `json:"solver_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.Barrier == "" {
		c.Barrier = "none"
	}
	if c.BarrierTimeoutSeconds <= 0 {
		c.BarrierTimeoutSeconds = 30
	}
	if c.BarrierPollMS <= 0 {
		c.BarrierPollMS = 100
	}
	if c.ExpectedAcks <= 0 {
		c.ExpectedAcks = 1
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.SolverTimeoutSeconds <= 0 {
		c.SolverTimeoutSeconds = 30
	}
}

// Validate checks the calendar and barrier mode.
func (c SimulationConfig) Validate() error {
	start, err := c.Start()
	if err != nil {
		return err
	}
	stop, err := c.Stop()
	if err != nil {
		return err
	}
	if !stop.After(start) {
		return fmt.Errorf("stop_date %s must be after start_date %s", c.StopDate, c.StartDate)
	}
	switch c.Barrier {
	case "none", "status", "ack":
	default:
		return fmt.Errorf("unknown barrier mode %q", c.Barrier)
	}
	return nil
}

// Start parses the first simulated day.
func (c SimulationConfig) Start() (time.Time, error) {
	t, err := time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	return t, nil
}

// Stop parses the exclusive end of the calendar.
func (c SimulationConfig) Stop() (time.Time, error) {
	t, err := time.Parse(dateLayout, c.StopDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("stop_date: %w", err)
	}
	return t, nil
}

// BarrierTimeout returns the configured barrier timeout.
func (c SimulationConfig) BarrierTimeout() time.Duration {
	return time.Duration(c.BarrierTimeoutSeconds) * time.Second
}

// BarrierPoll returns the status barrier's re-check interval.
func (c SimulationConfig) BarrierPoll() time.Duration {
	return time.Duration(c.BarrierPollMS) * time.Millisecond
}

// SolverTimeout returns the per-call solver bound.
func (c SimulationConfig) SolverTimeout() time.Duration {
	return time.Duration(c.SolverTimeoutSeconds) * time.Second
}

// MarketConfig defines the operator identity and the reservation prices
// participants quote when deriving orders from their net position.
type MarketConfig struct {
	OperatorName   string  `json:"operator_name"`
	BidPriceEURMWh float64 `json:"bid_price_eur_mwh"`
	AskPriceEURMWh float64 `json:"ask_price_eur_mwh"`
}

// SetDefaults applies the price cap and floor used when participants do
// not quote their own.
func (c *MarketConfig) SetDefaults() {
	if c.OperatorName == "" {
		c.OperatorName = "market"
	}
	if c.BidPriceEURMWh == 0 {
		c.BidPriceEURMWh = 3000
	}
}

// ForecastConfig parameterizes the deterministic forecast provider.
type ForecastConfig struct {
	PeakIrradiance float64 `json:"peak_irradiance"`
	BasePriceEUR   float64 `json:"base_price_eur_mwh"`
	BaseDemandKW   float64 `json:"base_demand_kw"`
}

// Provider builds the forecast provider from the config.
func (c ForecastConfig) Provider() forecast.Provider {
	return forecast.Static{
		PeakIrradiance: c.PeakIrradiance,
		BasePrice:      c.BasePriceEUR,
		BaseDemand:     c.BaseDemandKW,
	}
}

// ParticipantConfig declares one participant agent and its assets.
type ParticipantConfig struct {
	Name string `json:"name"`
	// BidPriceEURMWh and AskPriceEURMWh override the market defaults
	// when non-zero.
	BidPriceEURMWh float64               `json:"bid_price_eur_mwh"`
	AskPriceEURMWh float64               `json:"ask_price_eur_mwh"`
	Assets         []portfolio.AssetSpec `json:"assets"`
}

// Validate checks the participant and each asset spec.
func (c ParticipantConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("participant name is required")
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("participant %s: at least one asset is required", c.Name)
	}
	for _, a := range c.Assets {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("participant %s: %w", c.Name, err)
		}
	}
	return nil
}
