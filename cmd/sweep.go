package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkade/parkade/config"
	"github.com/parkade/parkade/core/reservation"
	"github.com/parkade/parkade/infra/logger"
	"github.com/parkade/parkade/store/sqlite"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale pending reservations once and exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "sqlite" {
		return fmt.Errorf("sweep requires a sqlite store, got %q", cfg.Store.Backend)
	}
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ledger := reservation.New(db.Stores().Reservations, nil, nil, logger.New("sweep"))
	n, err := ledger.ExpireStale(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("expired %d stale reservations\n", n)
	return nil
}
