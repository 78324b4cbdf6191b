package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmas-energy/dmas/app"
	"github.com/dmas-energy/dmas/config"
	"github.com/dmas-energy/dmas/infra/logger"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run all agents in-process without a broker",
	RunE:  simulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
			logger.New("simulate").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
