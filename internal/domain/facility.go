package domain

import "strings"

// Spain bounding box used as the sanity bound for plausible coordinates.
// Covers the mainland and the Balearic Islands; the Canary Islands fall
// outside it.
const (
	RegionMinLat = 35.0
	RegionMaxLat = 44.0
	RegionMinLon = -10.0
	RegionMaxLon = 5.0
)

// InRegion reports whether a coordinate lies inside the Spain bounding box.
func InRegion(lat, lon float64) bool {
	return lat >= RegionMinLat && lat <= RegionMaxLat &&
		lon >= RegionMinLon && lon <= RegionMaxLon
}

// Facility is one row of the raw facility table. It is owned by the upstream
// data source and read-only to the pipeline.
//
// Latitude and Longitude are pointers because upstream rows may lack
// coordinates entirely; nil means absent.
type Facility struct {
	ID        string
	Name      string
	Address   string
	City      string
	Latitude  *float64
	Longitude *float64

	// Presentation fields carried through to the map when present.
	Specialization string
	Capacity       string
	Phone          string
	Type           string
}

// Key returns the case-folded join key used to match a facility against
// corrections.
func (f Facility) Key() string {
	return strings.ToLower(strings.TrimSpace(f.Name))
}

// Correction is a replacement coordinate for a facility, keyed by the
// facility's original name. SourceReason records provenance: either the
// hand-entered problem description from the manual file or which geocoding
// variant produced the coordinate.
type Correction struct {
	OriginalName  string
	CorrectedName string
	City          string
	Category      string
	Address       string
	Lat           float64
	Lon           float64
	SourceReason  string

	// FacilityID is an enrichment joined from the raw table at combine
	// time. Empty when no raw row matches; the identity key stays
	// OriginalName.
	FacilityID string
}

// Key returns the case-folded identity key of the correction.
func (c Correction) Key() string {
	return strings.ToLower(strings.TrimSpace(c.OriginalName))
}
