package geocode

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnohealth/facility-map/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCityTable_ExactMatch(t *testing.T) {
	table := NewCityTable(discardLogger())

	tests := []struct {
		name string
		city string
		lat  float64
		lon  float64
	}{
		{"lowercase", "madrid", 40.4168, -3.7038},
		{"capitalized", "Madrid", 40.4168, -3.7038},
		{"uppercase", "MADRID", 40.4168, -3.7038},
		{"surrounding whitespace", "  Valencia  ", 39.4699, -0.3763},
		{"accented city", "Málaga", 36.7213, -4.4217},
		{"multi-word city", "Jerez de la Frontera", 36.6866, -6.1372},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := table.Geocode(context.Background(), domain.GeocodeRequest{Name: "Test", City: tt.city})
			require.NoError(t, err)
			assert.Equal(t, tt.lat, res.Lat)
			assert.Equal(t, tt.lon, res.Lon)
			assert.Equal(t, "city lookup", res.Provider)
			assert.Equal(t, tt.city, res.FormattedAddress)
		})
	}
}

func TestCityTable_SubstringFallback(t *testing.T) {
	table := NewCityTable(discardLogger())

	t.Run("known city inside input", func(t *testing.T) {
		res, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: "Madrid Centro"})
		require.NoError(t, err)
		assert.Equal(t, 40.4168, res.Lat)
		assert.Equal(t, -3.7038, res.Lon)
	})

	t.Run("input inside known city", func(t *testing.T) {
		// "jerez" is a substring of "jerez de la frontera".
		res, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: "Jerez"})
		require.NoError(t, err)
		assert.Equal(t, 36.6866, res.Lat)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		first, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: "la"})
		require.NoError(t, err)
		for range 10 {
			res, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: "la"})
			require.NoError(t, err)
			assert.Equal(t, first, res)
		}
	})

	t.Run("ambiguous match resolves to first sorted key", func(t *testing.T) {
		// Contained in both "lleida" and "lérida"; sorted order picks "lleida".
		res, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: "Ciudad de Lleida"})
		require.NoError(t, err)
		assert.Equal(t, 41.6148, res.Lat)
		assert.Equal(t, 0.6268, res.Lon)
	})
}

func TestCityTable_NoMatch(t *testing.T) {
	table := NewCityTable(discardLogger())

	_, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: "Atlantis"})
	require.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestCityTable_EmptyCity(t *testing.T) {
	table := NewCityTable(discardLogger())

	// An empty city must not match every key via substring containment.
	_, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: ""})
	require.ErrorIs(t, err, domain.ErrNoMatch)

	_, err = table.Geocode(context.Background(), domain.GeocodeRequest{City: "   "})
	require.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestCityTable_CanaryIslandsOutsideRegion(t *testing.T) {
	table := NewCityTable(discardLogger())

	// The table deliberately carries Las Palmas even though the centroid
	// falls outside the bounding box; the pipeline surfaces the anomaly.
	res, err := table.Geocode(context.Background(), domain.GeocodeRequest{City: "Las Palmas"})
	require.NoError(t, err)
	assert.False(t, domain.InRegion(res.Lat, res.Lon))
}
