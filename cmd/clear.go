package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmas-energy/dmas/app"
	"github.com/dmas-energy/dmas/config"
	"github.com/dmas-energy/dmas/core/model"
	"github.com/dmas-energy/dmas/infra/logger"
	"github.com/dmas-energy/dmas/pkg/export"
)

var clearFormat string

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Simulate and clear a single day, printing the hourly results",
	RunE:  clearOnce,
}

func init() {
	clearCmd.Flags().StringVar(&clearFormat, "format", "csv", "output format: csv or json")
	rootCmd.AddCommand(clearCmd)
}

func clearOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.NewLocal(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("clear").Errorf("service close: %v", err)
		}
	}()

	start, err := cfg.Simulation.Start()
	if err != nil {
		return err
	}
	out := svc.Orchestrator.Advance(cmd.Context(), model.NewSimulationDay(start, 0))
	if !out.Success() {
		return fmt.Errorf("day %s failed: %w", model.DateKey(start), out.Err)
	}

	results := svc.Operator.Results(start)
	switch clearFormat {
	case "json":
		return export.WriteJSON(os.Stdout, results)
	case "csv":
		return export.WriteCSV(os.Stdout, results)
	default:
		return fmt.Errorf("unknown format %q", clearFormat)
	}
}
