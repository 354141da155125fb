// Package geocode implements the geocoding provider chain: Google Maps,
// OpenStreetMap Nominatim, and a static Spanish city-centroid table, tried
// strictly in that order.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/turnohealth/facility-map/internal/domain"
)

const googleProviderName = "Google Maps API"

// Google implements domain.Geocoder using the Google Maps Geocoding API.
// Requires an API key; construct it only when one is configured.
type Google struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewGoogle creates a Google Maps geocoding client.
func NewGoogle(apiKey string, timeout time.Duration, logger *slog.Logger) *Google {
	return &Google{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://maps.googleapis.com/maps/api/geocode/json",
		logger:  logger,
	}
}

func (g *Google) Name() string { return googleProviderName }

// Geocode resolves "<address>, <city>, Spain" to a coordinate.
func (g *Google) Geocode(ctx context.Context, req domain.GeocodeRequest) (domain.GeocodeResult, error) {
	fullAddress := fmt.Sprintf("%s, %s, Spain", req.Address, req.City)

	params := url.Values{
		"address": {fullAddress},
		"key":     {g.apiKey},
		"region":  {"es"}, // bias results toward Spain
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("google maps request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodeResult{}, fmt.Errorf("google maps API error: status %d: %s", resp.StatusCode, body)
	}

	var gResp googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("decode response: %w", err)
	}

	if gResp.Status == "ZERO_RESULTS" || len(gResp.Results) == 0 {
		return domain.GeocodeResult{}, fmt.Errorf("google maps status %s: %w", gResp.Status, domain.ErrNoMatch)
	}
	if gResp.Status != "OK" {
		return domain.GeocodeResult{}, fmt.Errorf("google maps status: %s", gResp.Status)
	}

	first := gResp.Results[0]
	return domain.GeocodeResult{
		Lat:              first.Geometry.Location.Lat,
		Lon:              first.Geometry.Location.Lng,
		FormattedAddress: first.FormattedAddress,
		Provider:         googleProviderName,
	}, nil
}

// Google Maps API response types.

type googleResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"` // OK, ZERO_RESULTS, OVER_QUERY_LIMIT, ...
}
