package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/UnknownOlympus/skolmap/internal/dataset"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the enrichment pipeline.
//
// Values come from an optional skolmap.yaml in the working directory,
// overridden by SKOLMAP_* environment variables (dots become underscores,
// e.g. SKOLMAP_GEOCODER_PROVIDER).
type Config struct {
	Env      string         `mapstructure:"env"`      // Env is the current environment: local, development, production.
	Input    InputConfig    `mapstructure:"input"`    // Input describes the school register export.
	Output   OutputConfig   `mapstructure:"output"`   // Output names the produced artifacts.
	Cache    CacheConfig    `mapstructure:"cache"`    // Cache holds the durable cache settings.
	Scraper  ScraperConfig  `mapstructure:"scraper"`  // Scraper configures the address source.
	Geocoder GeocoderConfig `mapstructure:"geocoder"` // Geocoder configures the coordinate provider.
	Monitor  MonitorConfig  `mapstructure:"monitor"`  // Monitor configures the metrics endpoint.
}

// InputConfig describes the delimited register export.
type InputConfig struct {
	Path      string          `mapstructure:"path"`      // Path to the export file.
	Separator string          `mapstructure:"separator"` // Field separator, one character.
	SkipRows  int             `mapstructure:"skip_rows"` // Preamble lines before the header.
	Columns   dataset.Columns `mapstructure:"columns"`   // Header names of the required columns.
}

// OutputConfig names the artifacts of a run.
type OutputConfig struct {
	Enriched  string `mapstructure:"enriched"`   // Enriched dataset file.
	MeritMap  string `mapstructure:"merit_map"`  // Merit map HTML file.
	RankedMap string `mapstructure:"ranked_map"` // Ranked map HTML file.
}

// CacheConfig holds the two durable cache files and the checkpoint cadence.
type CacheConfig struct {
	AddressPath    string `mapstructure:"address_path"`
	CoordinatePath string `mapstructure:"coordinate_path"`
	FlushEvery     int    `mapstructure:"flush_every"` // Rows between cache checkpoints.
}

// ScraperConfig configures the address detail-page source.
type ScraperConfig struct {
	BaseURL   string  `mapstructure:"base_url"`   // Detail page URL, the unit code goes into the query string.
	RateLimit float64 `mapstructure:"rate_limit"` // Max uncached rows per second.
}

// GeocoderConfig configures the coordinate provider.
type GeocoderConfig struct {
	Provider   string        `mapstructure:"provider"`    // "google" or "nominatim".
	KeyFile    string        `mapstructure:"key_file"`    // File holding the API key (google only).
	Country    string        `mapstructure:"country"`     // Country appended to every candidate query.
	RateLimit  int           `mapstructure:"rate_limit"`  // Requests per second for the provider.
	RetryDelay time.Duration `mapstructure:"retry_delay"` // Sleep between attempts on a candidate.
}

// MonitorConfig configures the monitoring HTTP server.
type MonitorConfig struct {
	Port int `mapstructure:"port"` // Port for /healthz and /metrics; 0 disables the server.
}

// MustLoad loads the configuration and panics on malformed values. Missing
// optional files are fine; a broken config is a startup failure.
func MustLoad() *Config {
	v := viper.New()

	v.SetDefault("env", "production")
	v.SetDefault("input.path", "schools.csv")
	v.SetDefault("input.separator", ";")
	v.SetDefault("input.skip_rows", 5)
	v.SetDefault("input.columns.id", "Skol-enhetskod")
	v.SetDefault("input.columns.name", "Skola")
	v.SetDefault("input.columns.municipality", "Skolkommun")
	v.SetDefault("input.columns.metric", "Genomsnittligt meritvärde (17 ämnen)")
	v.SetDefault("output.enriched", "schools_with_coordinates.csv")
	v.SetDefault("output.merit_map", "schools_merit_map.html")
	v.SetDefault("output.ranked_map", "schools_ranked_map.html")
	v.SetDefault("cache.address_path", "address_cache.json")
	v.SetDefault("cache.coordinate_path", "coord_cache.json")
	v.SetDefault("cache.flush_every", 100)
	v.SetDefault("scraper.base_url", "https://utbildningsguiden.skolverket.se/skolenhet")
	v.SetDefault("scraper.rate_limit", 5.0)
	v.SetDefault("geocoder.provider", "google")
	v.SetDefault("geocoder.key_file", "google_maps_api_key.txt")
	v.SetDefault("geocoder.country", "Sweden")
	v.SetDefault("geocoder.rate_limit", 50)
	v.SetDefault("geocoder.retry_delay", time.Second)
	v.SetDefault("monitor.port", 0)

	v.SetConfigName("skolmap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SKOLMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("failed to read configuration file: " + err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("failed to parse configuration: " + err.Error())
	}

	if len([]rune(cfg.Input.Separator)) != 1 {
		panic("input separator must be exactly one character")
	}

	return &cfg
}

// SeparatorRune returns the configured input separator as a rune.
func (c *InputConfig) SeparatorRune() rune {
	return []rune(c.Separator)[0]
}

// LoadAPIKey reads the geocoding credential from its file. A missing or empty
// key file is an error: the paid provider path must fail loudly at startup,
// not degrade silently.
func LoadAPIKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %q: %w", path, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("API key file %q is empty", path)
	}

	return key, nil
}
