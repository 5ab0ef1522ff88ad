package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkade/parkade/config"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/store/sqlite"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the configured store with a sample five-floor lot",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedRates are the hourly rates applied to the sample lot.
var seedRates = map[model.SpotCategory]float64{
	model.SpotCompact:     2.0,
	model.SpotRegular:     5.0,
	model.SpotHandicapped: 2.0,
	model.SpotReserved:    10.0,
	model.SpotElectric:    8.0,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "sqlite" {
		return fmt.Errorf("seed requires a sqlite store, got %q", cfg.Store.Backend)
	}
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	stores := db.Stores()
	ctx := context.Background()
	count := 0
	for _, spot := range SampleLot() {
		if err := stores.Spots.Save(ctx, spot); err != nil {
			return fmt.Errorf("save spot %s: %w", spot.ID, err)
		}
		count++
	}
	fmt.Printf("seeded %d spots into %s\n", count, cfg.Store.Path)
	return nil
}

// SampleLot builds a five-floor lot. Every floor carries compact,
// regular and handicapped spots; the ground floor adds reserved spots
// and the top floor adds electric chargers.
func SampleLot() []model.ParkingSpot {
	var spots []model.ParkingSpot
	add := func(id string, cat model.SpotCategory) {
		s, err := model.NewParkingSpot(id, cat, seedRates[cat])
		if err != nil {
			panic(err)
		}
		spots = append(spots, *s)
	}
	for floor := 1; floor <= 5; floor++ {
		for i := 1; i <= 2; i++ {
			add(fmt.Sprintf("F%d-C%d", floor, i), model.SpotCompact)
		}
		for i := 1; i <= 3; i++ {
			add(fmt.Sprintf("F%d-R%d", floor, i), model.SpotRegular)
		}
		add(fmt.Sprintf("F%d-H1", floor), model.SpotHandicapped)
	}
	for i := 1; i <= 2; i++ {
		add(fmt.Sprintf("F1-V%d", i), model.SpotReserved)
	}
	for i := 1; i <= 2; i++ {
		add(fmt.Sprintf("F5-E%d", i), model.SpotElectric)
	}
	return spots
}
