package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/turnohealth/facility-map/internal/domain"
	"github.com/turnohealth/facility-map/internal/observability"
)

// Chain tries an ordered list of geocoders, first success wins. A provider
// failure or no-match falls through to the next variant; a missing provider
// (nil, e.g. Google without an API key) is skipped without counting as a
// failure. Every attempt and outcome is logged.
type Chain struct {
	providers []domain.Geocoder
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewChain builds the provider chain in priority order. Nil entries are
// dropped so callers can pass conditionally-constructed providers directly.
func NewChain(logger *slog.Logger, metrics *observability.Metrics, providers ...domain.Geocoder) *Chain {
	kept := make([]domain.Geocoder, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain{
		providers: kept,
		logger:    logger,
		metrics:   metrics,
	}
}

func (c *Chain) Name() string { return "provider chain" }

// Providers returns the names of the active variants in order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

func (c *Chain) Geocode(ctx context.Context, req domain.GeocodeRequest) (domain.GeocodeResult, error) {
	for _, p := range c.providers {
		start := time.Now()
		res, err := p.Geocode(ctx, req)
		c.metrics.GeocodeDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			outcome := "error"
			if errors.Is(err, domain.ErrNoMatch) {
				outcome = "no_match"
			}
			c.metrics.GeocodeAttempts.WithLabelValues(p.Name(), outcome).Inc()
			c.logger.Warn("geocode attempt failed",
				"provider", p.Name(),
				"facility", req.Name,
				"city", req.City,
				"error", err,
			)
			if ctx.Err() != nil {
				return domain.GeocodeResult{}, ctx.Err()
			}
			continue
		}

		c.metrics.GeocodeAttempts.WithLabelValues(p.Name(), "success").Inc()
		c.logger.Info("geocoded",
			"provider", p.Name(),
			"facility", req.Name,
			"lat", res.Lat,
			"lon", res.Lon,
		)
		return res, nil
	}

	return domain.GeocodeResult{}, domain.ErrNoMatch
}
