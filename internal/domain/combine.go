package domain

// Combine merges manual and machine-produced corrections. Manual entries
// come first and win on duplicate facility names. Facility ids are filled in
// from the raw table where a name matches.
func Combine(manual, geocoded []Correction, facilities []Facility) []Correction {
	idByName := make(map[string]string, len(facilities))
	for _, f := range facilities {
		if f.ID != "" {
			idByName[f.Key()] = f.ID
		}
	}

	seen := make(map[string]struct{}, len(manual)+len(geocoded))
	combined := make([]Correction, 0, len(manual)+len(geocoded))

	for _, c := range append(append([]Correction{}, manual...), geocoded...) {
		key := c.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if c.FacilityID == "" {
			c.FacilityID = idByName[key]
		}
		combined = append(combined, c)
	}

	return combined
}
