package store

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/turnohealth/facility-map/internal/domain"
)

// correctionHeader is the column set of the manually maintained correction
// file. Operators edit it in spreadsheet software, so the names and the
// semicolon delimiter stay as they are.
var correctionHeader = []string{
	"Nombre_Original",
	"Nombre_Correcto",
	"Ciudad",
	"Tipo",
	"Direccion",
	"Latitud_Corregida",
	"Longitud_Corregida",
	"Fuente_Problema",
}

const facilityIDColumn = "facility_id"

// Store reads and writes the three correction tables: the operator-owned
// manual file, the machine-written geocoded file, and their combination.
type Store struct {
	manualPath   string
	geocodedPath string
	combinedPath string
	logger       *slog.Logger
}

// New creates a correction store over the given artifact paths.
func New(manualPath, geocodedPath, combinedPath string, logger *slog.Logger) *Store {
	return &Store{
		manualPath:   manualPath,
		geocodedPath: geocodedPath,
		combinedPath: combinedPath,
		logger:       logger,
	}
}

// LoadManual reads the operator-maintained correction file. A missing or
// unreadable file is not an error: the pipeline proceeds with whatever
// corrections exist.
func (s *Store) LoadManual() []domain.Correction {
	return s.loadTolerant(s.manualPath, "manual corrections")
}

// LoadCombined reads the combined correction table written by a previous
// run, tolerating absence the same way LoadManual does.
func (s *Store) LoadCombined() []domain.Correction {
	return s.loadTolerant(s.combinedPath, "combined corrections")
}

func (s *Store) loadTolerant(path, label string) []domain.Correction {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info(label+" file absent, continuing without", "path", path)
			return nil
		}
		s.logger.Warn("could not open "+label, "path", path, "error", err)
		return nil
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		s.logger.Warn("could not parse "+label, "path", path, "error", err)
		return nil
	}
	if len(records) < 2 {
		return nil
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(name)] = i
	}

	corrections := make([]domain.Correction, 0, len(records)-1)
	for _, row := range records[1:] {
		get := func(name string) string {
			if idx, ok := cols[name]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		lat, latErr := strconv.ParseFloat(get("Latitud_Corregida"), 64)
		lon, lonErr := strconv.ParseFloat(get("Longitud_Corregida"), 64)
		if latErr != nil || lonErr != nil {
			s.logger.Warn("skipping correction row with unparsable coordinates",
				"path", path, "name", get("Nombre_Original"))
			continue
		}

		corrections = append(corrections, domain.Correction{
			OriginalName:  get("Nombre_Original"),
			CorrectedName: get("Nombre_Correcto"),
			City:          get("Ciudad"),
			Category:      get("Tipo"),
			Address:       get("Direccion"),
			Lat:           lat,
			Lon:           lon,
			SourceReason:  get("Fuente_Problema"),
			FacilityID:    get(facilityIDColumn),
		})
	}

	s.logger.Info("loaded "+label, "path", path, "count", len(corrections))
	return corrections
}

// SaveGeocoded writes the machine-produced corrections from this run.
func (s *Store) SaveGeocoded(corrections []domain.Correction) error {
	return s.save(s.geocodedPath, corrections, false)
}

// SaveCombined writes the merged correction table, including the facility id
// column used by the map stage.
func (s *Store) SaveCombined(corrections []domain.Correction) error {
	return s.save(s.combinedPath, corrections, true)
}

func (s *Store) save(path string, corrections []domain.Correction, withID bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = ';'

	header := correctionHeader
	if withID {
		header = append(append([]string{}, correctionHeader...), facilityIDColumn)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header to %s: %w", path, err)
	}

	for _, c := range corrections {
		row := []string{
			c.OriginalName,
			c.CorrectedName,
			c.City,
			c.Category,
			c.Address,
			strconv.FormatFloat(c.Lat, 'f', -1, 64),
			strconv.FormatFloat(c.Lon, 'f', -1, 64),
			c.SourceReason,
		}
		if withID {
			row = append(row, c.FacilityID)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row to %s: %w", path, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	s.logger.Info("wrote corrections", "path", path, "count", len(corrections))
	return nil
}
