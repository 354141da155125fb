package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoMatch indicates a provider responded but found no candidate for the
// requested location. Distinct from transport failures so callers can tell
// "nothing there" apart from "could not ask".
var ErrNoMatch = errors.New("no geocoding candidate")

// GeocodeRequest identifies the facility being geocoded.
type GeocodeRequest struct {
	Name    string
	Address string
	City    string
}

// GeocodeResult is a best-effort coordinate from one provider.
type GeocodeResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	Provider         string
}

// Geocoder converts a facility's address or city into a coordinate.
// Implementations are stateless strategies; a provider that cannot resolve
// the request returns an error wrapping ErrNoMatch.
type Geocoder interface {
	// Name identifies the provider in logs and provenance strings.
	Name() string

	Geocode(ctx context.Context, req GeocodeRequest) (GeocodeResult, error)
}

// NewGeocodedCorrection builds the correction row for a successful geocode,
// tagging SourceReason with the producing provider.
func NewGeocodedCorrection(f Facility, res GeocodeResult) Correction {
	return Correction{
		OriginalName:  f.Name,
		CorrectedName: f.Name,
		City:          f.City,
		Category:      "TO_BE_DETERMINED",
		Address:       f.Address,
		Lat:           res.Lat,
		Lon:           res.Lon,
		SourceReason:  fmt.Sprintf("Geocoded via %s - %s", res.Provider, res.FormattedAddress),
	}
}
