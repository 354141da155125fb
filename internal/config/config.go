package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tool settings, populated from environment variables.
// A .env file in the working directory is loaded first when present, since
// operators keep the Metabase and Google credentials there.
type Config struct {
	// Metabase connection. Either an API key or username/password; the
	// fetch tool requires one of the two, the other tools ignore them.
	MetabaseURL      string
	MetabaseUsername string
	MetabasePassword string
	MetabaseAPIKey   string

	// Saved question IDs to run against Metabase.
	FacilityQuestionID int
	ShiftsQuestionID   int
	MetabaseTimeout    time.Duration

	DataDir         string
	HTTPAddr        string // empty disables the ops endpoints
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Geocoding configuration. The Google variant is attempted only when a
	// key is present; Nominatim can be switched off entirely.
	GoogleMapsAPIKey   string
	NominatimEnabled   bool
	NominatimUserAgent string
	GeocodeTimeout     time.Duration
	GeocodeDelay       time.Duration
	GeocodeCacheSize   int
}

// Load reads configuration from the environment, applying defaults where
// unset.
func Load() (*Config, error) {
	// Optional; credentials may come from the real environment instead.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocodeDelay, err := parseDuration("GEOCODE_DELAY", "100ms")
	if err != nil {
		return nil, err
	}
	// Question exports can take a while on large result sets.
	metabaseTimeout, err := parseDuration("METABASE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	facilityQuestion, err := parseInt("FACILITY_QUESTION_ID", 4846)
	if err != nil {
		return nil, err
	}
	shiftsQuestion, err := parseInt("SHIFTS_QUESTION_ID", 4659)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		return nil, errors.New("GEOCODE_CACHE_SIZE must be positive")
	}

	cfg := &Config{
		MetabaseURL:      trimTrailingSlash(os.Getenv("METABASE_URL")),
		MetabaseUsername: os.Getenv("METABASE_USERNAME"),
		MetabasePassword: os.Getenv("METABASE_PASSWORD"),
		MetabaseAPIKey:   os.Getenv("METABASE_API_KEY"),

		FacilityQuestionID: facilityQuestion,
		ShiftsQuestionID:   shiftsQuestion,
		MetabaseTimeout:    metabaseTimeout,

		DataDir:         envOrDefault("DATA_DIR", "data"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		GoogleMapsAPIKey:   os.Getenv("GOOGLE_MAPS_API_KEY"),
		NominatimEnabled:   envOrDefault("NOMINATIM_ENABLED", "true") == "true",
		NominatimUserAgent: envOrDefault("NOMINATIM_USER_AGENT", "facility_map_geocoder"),
		GeocodeTimeout:     geocodeTimeout,
		GeocodeDelay:       geocodeDelay,
		GeocodeCacheSize:   cacheSize,
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR must not be empty")
	}

	return cfg, nil
}

// RequireMetabase validates the settings the fetch tool needs. Either an API
// key or a username/password pair must be present alongside the URL.
func (c *Config) RequireMetabase() error {
	if c.MetabaseURL == "" {
		return errors.New("METABASE_URL is required")
	}
	if c.MetabaseAPIKey != "" {
		return nil
	}
	if c.MetabaseUsername != "" && c.MetabasePassword != "" {
		return nil
	}
	return errors.New("set METABASE_API_KEY, or both METABASE_USERNAME and METABASE_PASSWORD")
}

// Artifact paths under DataDir.

func (c *Config) RawFacilitiesPath() string { return filepath.Join(c.DataDir, "raw_facilities.csv") }
func (c *Config) RawShiftsPath() string     { return filepath.Join(c.DataDir, "raw_shifts.csv") }

func (c *Config) ManualCorrectionsPath() string {
	return filepath.Join(c.DataDir, "facilities_corrected_coords.csv")
}

func (c *Config) GeocodedPath() string {
	return filepath.Join(c.DataDir, "newly_geocoded_facilities.csv")
}

func (c *Config) CombinedPath() string {
	return filepath.Join(c.DataDir, "all_corrected_facilities.csv")
}

func (c *Config) ProcessedPath() string {
	return filepath.Join(c.DataDir, "processed_facilities.csv")
}

func (c *Config) MapPath() string { return "facilities_map.html" }

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
