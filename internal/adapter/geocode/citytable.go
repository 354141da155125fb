package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/turnohealth/facility-map/internal/domain"
)

const cityTableProviderName = "city lookup"

// cityCoords maps lowercase Spanish city names to their centroid. Last
// resort after the remote providers: a centroid is coarse, but it puts the
// marker in the right city instead of the Atlantic.
var cityCoords = map[string]coordinate{
	"barcelona":             {41.3851, 2.1734},
	"madrid":                {40.4168, -3.7038},
	"valencia":              {39.4699, -0.3763},
	"sevilla":               {37.3891, -5.9845},
	"zaragoza":              {41.6488, -0.8891},
	"málaga":                {36.7213, -4.4217},
	"murcia":                {37.9922, -1.1307},
	"palma":                 {39.5696, 2.6502},
	"las palmas":            {28.1235, -15.4366},
	"bilbao":                {43.2627, -2.9253},
	"alicante":              {38.3452, -0.4815},
	"cordoba":               {37.8882, -4.7794},
	"valladolid":            {41.6523, -4.7245},
	"vigo":                  {42.2406, -8.7207},
	"gijón":                 {43.5453, -5.6619},
	"granada":               {37.1765, -3.5976},
	"oviedo":                {43.3623, -5.8493},
	"santander":             {43.4623, -3.8099},
	"tarrasa":               {41.5606, 2.0104},
	"sabadell":              {41.5463, 2.1074},
	"alcorcón":              {40.3494, -3.8313},
	"móstoles":              {40.3233, -3.8644},
	"fuenlabrada":           {40.2842, -3.7942},
	"badalona":              {41.4500, 2.2474},
	"hospitalet":            {41.3597, 2.0998},
	"alcalá de henares":     {40.4820, -3.3635},
	"terrassa":              {41.5606, 2.0104},
	"jerez de la frontera":  {36.6866, -6.1372},
	"marbella":              {36.5097, -4.8860},
	"león":                  {42.5987, -5.5671},
	"tarragona":             {41.1187, 1.2453},
	"lleida":                {41.6148, 0.6268},
	"castellón":             {39.9864, -0.0513},
	"burgos":                {42.3408, -3.6997},
	"salamanca":             {40.9645, -5.6630},
	"albacete":              {38.9952, -1.8557},
	"huelva":                {37.2614, -6.9447},
	"logroño":               {42.4627, -2.4449},
	"cádiz":                 {36.5297, -6.2926},
	"lucena":                {37.4088, -4.4852},
	"jaén":                  {37.7796, -3.7849},
	"orense":                {42.3355, -7.8639},
	"girona":                {41.9794, 2.8214},
	"lugo":                  {43.0097, -7.5560},
	"cáceres":               {39.4765, -6.3722},
	"talavera de la reina":  {39.9603, -4.8303},
	"santiago de compostela": {42.8805, -8.5456},
	"lérida":                {41.6148, 0.6268},
	"cartagena":             {37.6057, -0.9913},
	"toledo":                {39.8584, -4.0226},
	"elche":                 {38.2672, -0.6987},
	"guadalajara":           {40.6296, -3.1665},
	"tudela":                {42.0644, -1.6044},
	"ceuta":                 {35.8894, -5.3213},
	"melilla":               {35.2923, -2.9381},
}

type coordinate struct {
	lat float64
	lon float64
}

// CityTable implements domain.Geocoder against the static city-centroid
// table. Exact case-insensitive match first, then substring containment in
// either direction over keys in sorted order, so an ambiguous partial match
// always resolves the same way.
type CityTable struct {
	coords map[string]coordinate
	keys   []string
	logger *slog.Logger
}

// NewCityTable creates the static lookup provider.
func NewCityTable(logger *slog.Logger) *CityTable {
	keys := make([]string, 0, len(cityCoords))
	for k := range cityCoords {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &CityTable{
		coords: cityCoords,
		keys:   keys,
		logger: logger,
	}
}

func (c *CityTable) Name() string { return cityTableProviderName }

func (c *CityTable) Geocode(_ context.Context, req domain.GeocodeRequest) (domain.GeocodeResult, error) {
	city := strings.ToLower(strings.TrimSpace(req.City))
	if city == "" {
		return domain.GeocodeResult{}, fmt.Errorf("empty city: %w", domain.ErrNoMatch)
	}

	if coord, ok := c.coords[city]; ok {
		return c.result(req, coord), nil
	}

	// Low-precision fallback: first containment match in either direction
	// wins. Deliberately coarse; "Madrid Centro" still lands on Madrid.
	for _, known := range c.keys {
		if strings.Contains(city, known) || strings.Contains(known, city) {
			return c.result(req, c.coords[known]), nil
		}
	}

	return domain.GeocodeResult{}, fmt.Errorf("no city match for %q: %w", req.City, domain.ErrNoMatch)
}

func (c *CityTable) result(req domain.GeocodeRequest, coord coordinate) domain.GeocodeResult {
	return domain.GeocodeResult{
		Lat:              coord.lat,
		Lon:              coord.lon,
		FormattedAddress: req.City,
		Provider:         cityTableProviderName,
	}
}
