// Command mapgen renders the interactive facility map from the raw facility
// table and the corrected coordinates, writing facilities_map.html and the
// processed table it was built from.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/turnohealth/facility-map/internal/config"
	"github.com/turnohealth/facility-map/internal/maprender"
	"github.com/turnohealth/facility-map/internal/observability"
	"github.com/turnohealth/facility-map/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("map generation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	facilities, err := store.NewFacilityFile(cfg.RawFacilitiesPath(), logger).Load()
	if err != nil {
		return err
	}

	corrections := store.New(cfg.ManualCorrectionsPath(), cfg.GeocodedPath(), cfg.CombinedPath(), logger)

	// Prefer the combined table from a reconciliation run; fall back to the
	// manual file alone when geofix has not run yet.
	corrected := corrections.LoadCombined()
	if len(corrected) == 0 {
		corrected = corrections.LoadManual()
	}

	plottable := maprender.ProcessFacilities(facilities, corrected, logger)
	if len(plottable) == 0 {
		return fmt.Errorf("no plottable facilities after filtering")
	}

	mapFile, err := os.Create(cfg.MapPath())
	if err != nil {
		return fmt.Errorf("create %s: %w", cfg.MapPath(), err)
	}
	defer mapFile.Close()

	if err := maprender.Render(mapFile, plottable); err != nil {
		return err
	}
	logger.Info("wrote map", "path", cfg.MapPath(), "facilities", len(plottable))

	if err := maprender.WriteProcessedCSV(cfg.ProcessedPath(), plottable); err != nil {
		return err
	}
	logger.Info("wrote processed facilities", "path", cfg.ProcessedPath())

	return nil
}
