package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltq/stationd/config"
	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/station"
	"github.com/voltq/stationd/core/storage"
	"github.com/voltq/stationd/infra/logger"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one scheduling pass against an in-memory station",
	RunE:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	engine, err := station.New(storage.NewMemory(), cfg.Station, cfg.Tariff, logger.New("simulate"))
	if err != nil {
		return fmt.Errorf("station engine: %w", err)
	}
	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	if _, err := engine.SetupPiles(ctx, 2, 3, 30, 7); err != nil {
		return fmt.Errorf("setup piles: %w", err)
	}
	if _, err := engine.Admit(ctx, "simulated-user", model.TierFast, 20); err != nil {
		return fmt.Errorf("admit: %w", err)
	}
	if err := engine.Schedule(ctx); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	for pileID, queue := range engine.PileQueues() {
		for _, req := range queue {
			fmt.Printf("%s -> %s (%s, %.1f kWh)\n", req.QueueNumber, pileID, req.Status, req.AmountKWh)
		}
	}
	return nil
}
