package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/turnohealth/facility-map/internal/domain"
)

const nominatimProviderName = "OpenStreetMap Nominatim"

// Nominatim implements domain.Geocoder using the free OpenStreetMap
// Nominatim service. The usage policy requires a descriptive User-Agent and
// no more than one request per second; the pipeline's inter-call delay keeps
// us under that.
type Nominatim struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewNominatim creates a Nominatim geocoding client.
func NewNominatim(userAgent string, timeout time.Duration, logger *slog.Logger) *Nominatim {
	return &Nominatim{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://nominatim.openstreetmap.org/search",
		logger:  logger,
	}
}

func (n *Nominatim) Name() string { return nominatimProviderName }

func (n *Nominatim) Geocode(ctx context.Context, req domain.GeocodeRequest) (domain.GeocodeResult, error) {
	fullAddress := fmt.Sprintf("%s, %s, Spain", req.Address, req.City)

	params := url.Values{
		"q":      {fullAddress},
		"format": {"json"},
		"limit":  {"1"},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodeResult{}, fmt.Errorf("nominatim error: status %d: %s", resp.StatusCode, body)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(places) == 0 {
		return domain.GeocodeResult{}, fmt.Errorf("nominatim: %w", domain.ErrNoMatch)
	}

	first := places[0]
	lat, errLat := strconv.ParseFloat(first.Lat, 64)
	lon, errLon := strconv.ParseFloat(first.Lon, 64)
	if errLat != nil || errLon != nil {
		return domain.GeocodeResult{}, fmt.Errorf("nominatim: unparsable coordinate %q,%q", first.Lat, first.Lon)
	}

	return domain.GeocodeResult{
		Lat:              lat,
		Lon:              lon,
		FormattedAddress: first.DisplayName,
		Provider:         nominatimProviderName,
	}, nil
}

// Nominatim returns coordinates as JSON strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
