package domain

import "math"

// Reason classifies the quality of a facility's stored coordinate.
type Reason string

const (
	ReasonGood               Reason = "good"
	ReasonAlreadyCorrected   Reason = "already_corrected"
	ReasonMissing            Reason = "missing"
	ReasonZero               Reason = "zero"
	ReasonExtreme            Reason = "extreme"
	ReasonDefaultPlaceholder Reason = "default_placeholder"
	ReasonOutsideRegion      Reason = "outside_region"
)

// Description returns the operator-facing text for a reason, matching the
// wording used in the corrections files.
func (r Reason) Description() string {
	switch r {
	case ReasonMissing:
		return "Missing coordinates"
	case ReasonZero:
		return "Zero coordinates"
	case ReasonExtreme:
		return "Extreme coordinate values"
	case ReasonDefaultPlaceholder:
		return "Default coordinates"
	case ReasonOutsideRegion:
		return "Outside Spain bounds"
	case ReasonAlreadyCorrected:
		return "Already corrected"
	default:
		return "Good coordinates"
	}
}

// NeedsGeocoding reports whether a facility with this reason should be
// submitted to the geocoder chain. The reason itself never selects a
// different geocoding strategy; it is used for reporting only.
func (r Reason) NeedsGeocoding() bool {
	return r != ReasonGood && r != ReasonAlreadyCorrected
}

// Classify assigns exactly one reason to a facility's stored coordinate.
// Checks are evaluated in priority order, first match wins:
// missing, zero, extreme (|v| > 100), default placeholder (1,1), outside
// the region bounding box, good. Zero and the placeholder therefore take
// precedence over outside_region even though both also fall outside the
// bounding box.
func Classify(f Facility) Reason {
	if f.Latitude == nil || f.Longitude == nil {
		return ReasonMissing
	}
	lat, lon := *f.Latitude, *f.Longitude
	switch {
	case lat == 0 && lon == 0:
		return ReasonZero
	case math.Abs(lat) > 100 || math.Abs(lon) > 100:
		return ReasonExtreme
	case lat == 1 && lon == 1:
		return ReasonDefaultPlaceholder
	case !InRegion(lat, lon):
		return ReasonOutsideRegion
	default:
		return ReasonGood
	}
}
