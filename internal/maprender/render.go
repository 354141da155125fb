// Package maprender turns the corrected facility table into a
// self-contained interactive HTML map. All data is embedded in the page, so
// the artifact can be opened from disk or attached to a message.
package maprender

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/turnohealth/facility-map/internal/domain"
)

//go:embed map.tmpl
var templates embed.FS

// ProcessFacilities applies corrections and filters the facility list down
// to rows that can be plotted: known coordinates inside the region bounds.
// Corrections match on the exact original facility name.
func ProcessFacilities(facilities []domain.Facility, corrections []domain.Correction, logger *slog.Logger) []domain.Facility {
	coords := make(map[string]domain.Correction, len(corrections))
	for _, c := range corrections {
		coords[c.OriginalName] = c
	}

	var noCoords, outside int
	plottable := make([]domain.Facility, 0, len(facilities))
	for _, f := range facilities {
		if c, ok := coords[f.Name]; ok {
			lat, lon := c.Lat, c.Lon
			f.Latitude, f.Longitude = &lat, &lon
		}
		if f.Latitude == nil || f.Longitude == nil {
			noCoords++
			continue
		}
		if !domain.InRegion(*f.Latitude, *f.Longitude) {
			outside++
			continue
		}
		plottable = append(plottable, f)
	}

	logger.Info("processed facilities for map",
		"initial", len(facilities),
		"removed_no_coordinates", noCoords,
		"removed_outside_region", outside,
		"final", len(plottable))
	return plottable
}

// mapFacility is the per-marker record embedded in the page.
type mapFacility struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	Specialization []string `json:"specialization"`
	Capacity       string   `json:"capacity"`
	Phone          string   `json:"phone"`
	Type           string   `json:"type"`
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func splitSkills(s string) []string {
	var skills []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			skills = append(skills, trimmed)
		}
	}
	if skills == nil {
		return []string{}
	}
	return skills
}

// Render writes the complete HTML map for the given plottable facilities.
func Render(w io.Writer, facilities []domain.Facility) error {
	records := make([]mapFacility, 0, len(facilities))
	for _, f := range facilities {
		if f.Latitude == nil || f.Longitude == nil {
			continue
		}
		facilityType := f.Type
		if strings.TrimSpace(facilityType) == "" {
			facilityType = "Healthcare Facility"
		}
		records = append(records, mapFacility{
			ID:             orNA(f.ID),
			Name:           orNA(f.Name),
			Latitude:       *f.Latitude,
			Longitude:      *f.Longitude,
			Address:        orNA(f.Address),
			City:           orNA(f.City),
			Specialization: splitSkills(f.Specialization),
			Capacity:       orNA(f.Capacity),
			Phone:          orNA(f.Phone),
			Type:           facilityType,
		})
	}

	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode facility data: %w", err)
	}

	tmpl, err := template.ParseFS(templates, "map.tmpl")
	if err != nil {
		return fmt.Errorf("parse map template: %w", err)
	}

	data := struct {
		Count      int
		Facilities template.JS
	}{
		Count:      len(records),
		Facilities: template.JS(blob),
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}

// WriteProcessedCSV persists the plottable facility list for reference
// alongside the map.
func WriteProcessedCSV(path string, facilities []domain.Facility) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"facility_id", "facility_name", "address", "city", "latitude", "longitude", "specialization", "capacity", "phone", "type"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header to %s: %w", path, err)
	}

	for _, f := range facilities {
		var lat, lon string
		if f.Latitude != nil {
			lat = fmt.Sprintf("%g", *f.Latitude)
		}
		if f.Longitude != nil {
			lon = fmt.Sprintf("%g", *f.Longitude)
		}
		row := []string{f.ID, f.Name, f.Address, f.City, lat, lon, f.Specialization, f.Capacity, f.Phone, f.Type}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row to %s: %w", path, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
