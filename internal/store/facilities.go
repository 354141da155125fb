// Package store reads and writes the pipeline's tabular artifacts. Raw
// tables are comma-separated with upstream column naming; correction tables
// are semicolon-separated with the Spanish headers the long-lived manual
// file has always used.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/turnohealth/facility-map/internal/domain"
)

// ErrMissingInput marks a required input file that is absent at pipeline
// start. Fatal, unlike the tolerant corrections load.
var ErrMissingInput = errors.New("required input file missing")

// FacilityFile loads the raw facility snapshot from disk.
type FacilityFile struct {
	path   string
	logger *slog.Logger
}

// NewFacilityFile creates a loader for the raw facility table.
func NewFacilityFile(path string, logger *slog.Logger) *FacilityFile {
	return &FacilityFile{path: path, logger: logger}
}

// Load reads the raw facility table, normalizing headers to the canonical
// schema and repairing text-field encoding. The file is required; absence
// aborts the run.
func (f *FacilityFile) Load() ([]domain.Facility, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (run fetch first)", ErrMissingInput, f.path)
		}
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", f.path)
	}

	cols := normalizeHeader(records[0])
	facilities := make([]domain.Facility, 0, len(records)-1)

	for _, row := range records[1:] {
		get := func(names ...string) string {
			for _, name := range names {
				if idx, ok := cols[name]; ok && idx < len(row) {
					return strings.TrimSpace(row[idx])
				}
			}
			return ""
		}

		facilities = append(facilities, domain.Facility{
			ID:             get("facility_id", "id"),
			Name:           domain.RepairEncoding(get("facility_name", "name", "public_name")),
			Address:        domain.RepairEncoding(get("address")),
			City:           domain.RepairEncoding(get("address_city", "city")),
			Latitude:       parseCoord(get("latitude", "address_latitude")),
			Longitude:      parseCoord(get("longitude", "address_longitude")),
			Specialization: domain.RepairEncoding(get("specialization")),
			Capacity:       get("capacity"),
			Phone:          get("phone", "phone_number"),
			Type:           get("type"),
		})
	}

	f.logger.Info("loaded raw facilities", "path", f.path, "count", len(facilities))
	return facilities, nil
}

// normalizeHeader maps canonical lowercase snake_case column names to their
// index. Upstream naming varies run to run.
func normalizeHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		if _, exists := cols[key]; !exists {
			cols[key] = i
		}
	}
	return cols
}

// parseCoord parses a coordinate cell. Empty or unparsable cells count as
// absent, which the classifier reports as missing.
func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
