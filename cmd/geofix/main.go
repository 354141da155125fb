// Command geofix runs one coordinate reconciliation pass over the raw
// facility table: classify coordinate quality, geocode the problem rows, and
// write the corrected tables under DATA_DIR.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/turnohealth/facility-map/internal/adapter/geocode"
	"github.com/turnohealth/facility-map/internal/adapter/httpadapter"
	"github.com/turnohealth/facility-map/internal/config"
	"github.com/turnohealth/facility-map/internal/domain"
	"github.com/turnohealth/facility-map/internal/observability"
	"github.com/turnohealth/facility-map/internal/pipeline"
	"github.com/turnohealth/facility-map/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	geocoder := buildGeocoder(cfg, logger, metrics)

	source := store.NewFacilityFile(cfg.RawFacilitiesPath(), logger)
	corrections := store.New(cfg.ManualCorrectionsPath(), cfg.GeocodedPath(), cfg.CombinedPath(), logger)

	p := pipeline.New(source, corrections, geocoder, logger, metrics, clockwork.NewRealClock(), cfg.GeocodeDelay)
	attachProgressBar(p)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ops endpoints are opt-in; the tool is usually a one-shot batch run.
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	report, err := p.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("http server shutdown error", "error", shutdownErr)
		}
		cancel()
	}

	if err != nil {
		logger.Error("reconciliation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("reconciliation complete",
		"total", report.Total,
		"good", report.Good,
		"already_corrected", report.AlreadyCorrected,
		"geocoded", report.Geocoded,
		"unresolved", report.Unresolved,
		"anomalies", report.Anomalies,
		"combined", report.Combined)
}

// buildGeocoder assembles the provider chain: Google when a key is present,
// Nominatim unless disabled, and the city table as the last resort. The
// whole chain sits behind one LRU cache.
func buildGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.Geocoder {
	var providers []domain.Geocoder

	if cfg.GoogleMapsAPIKey != "" {
		providers = append(providers, geocode.NewGoogle(cfg.GoogleMapsAPIKey, cfg.GeocodeTimeout, logger))
	} else {
		logger.Info("google geocoding disabled, no api key")
	}
	if cfg.NominatimEnabled {
		providers = append(providers, geocode.NewNominatim(cfg.NominatimUserAgent, cfg.GeocodeTimeout, logger))
	}
	providers = append(providers, geocode.NewCityTable(logger))

	chain := geocode.NewChain(logger, metrics, providers...)
	logger.Info("geocoder chain ready", "providers", chain.Providers())

	return geocode.NewCached(chain, cfg.GeocodeCacheSize, metrics)
}

// attachProgressBar shows geocoding progress when stdout is a terminal.
func attachProgressBar(p *pipeline.Pipeline) {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return
	}

	var bar *progressbar.ProgressBar
	p.OnGeocodeProgress(func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("geocoding"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	})
}
