// Package dispatch implements the per-asset dispatch engines. An engine
// turns one day's residual power/heat profile into hourly grid exchange
// while keeping the asset's storage state within its bounds.
//
// Available engine kinds:
//   - PassThrough: grid = generation - demand, no state
//   - Battery: four-branch charge/discharge planning with efficiency losses
//   - HeatPumpTank: thermal tank coupled to the electrical residual via COP
//   - BlackBoxOptimized: delegates to an external Optimizer
package dispatch
