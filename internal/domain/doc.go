// Package domain models healthcare facility records and their coordinate
// corrections.
//
// # Data Source
//
// Facility rows originate from a saved Metabase question maintained by the
// analytics team. The fetch tool runs the question and writes the result as
// data/raw_facilities.csv. Upstream column naming varies (id vs facility_id,
// name vs public_name, address_latitude vs latitude); the store layer
// normalizes headers to lowercase snake_case before rows reach this package.
//
// # Coordinate Quality
//
// Stored coordinates are frequently wrong in recognizable ways:
//
//	missing      latitude or longitude absent in the source row
//	zero         both exactly 0.0 (null island)
//	extreme      |lat| or |lon| > 100, usually a swapped numeric field
//	placeholder  both exactly 1.0, the upstream "unset" sentinel
//	outside      not within the Spain bounding box (lat 35–44, lon −10–5)
//
// [Classify] assigns exactly one reason per facility, in that priority
// order. Anything other than good routes the facility into the geocoding
// queue unless a correction for its name already exists.
//
// # Corrections
//
// A correction replaces a facility's coordinate and is keyed by the
// facility's original name, compared case-insensitively. Manual corrections
// are hand-curated in a long-lived semicolon-separated file with Spanish
// column headers (Nombre_Original, Latitud_Corregida, ...); geocoded
// corrections are produced per run and written to a separate artifact so the
// manual file is never overwritten. On merge, manual entries win.
package domain
