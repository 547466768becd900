// Package config loads typed application configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all application settings.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Providers     ProvidersConfig
	Search        SearchConfig
	Merge         MergeConfig
	Enrichment    EnrichmentConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ProvidersConfig struct {
	OverpassEndpoint  string
	OverpassTimeout   time.Duration
	GoogleAPIKey      string
	GoogleBaseURL     string
	GoogleTimeout     time.Duration
	GoogleRateLimit   float64
	AdapterCallBudget time.Duration
}

type SearchConfig struct {
	MaxRadiusMeters     float64
	DefaultRadiusMeters float64
	DefaultLimit        int
}

type MergeConfig struct {
	ProximityMeters     float64
	ConfidenceThreshold float64
}

type EnrichmentConfig struct {
	MaxRadiusMeters       float64
	MaxResults            int
	MaxPaidCallsPerSearch int
	MinPopularity         int
}

type CacheConfig struct {
	TTL      time.Duration
	Capacity int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

// Load reads configuration from the environment. A missing .env file is not
// an error; unset variables fall back to defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "loci_places"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Providers: ProvidersConfig{
			OverpassEndpoint:  getEnv("OVERPASS_ENDPOINT", "https://overpass-api.de/api/interpreter"),
			OverpassTimeout:   getDuration("OVERPASS_TIMEOUT", 10*time.Second),
			GoogleAPIKey:      os.Getenv("GOOGLE_PLACES_API_KEY"),
			GoogleBaseURL:     getEnv("GOOGLE_PLACES_BASE_URL", "https://places.googleapis.com/v1"),
			GoogleTimeout:     getDuration("GOOGLE_PLACES_TIMEOUT", 10*time.Second),
			GoogleRateLimit:   getFloat("GOOGLE_PLACES_RATE_LIMIT", 5),
			AdapterCallBudget: getDuration("ADAPTER_CALL_BUDGET", 10*time.Second),
		},
		Search: SearchConfig{
			MaxRadiusMeters:     getFloat("SEARCH_MAX_RADIUS_M", 10000),
			DefaultRadiusMeters: getFloat("SEARCH_DEFAULT_RADIUS_M", 2000),
			DefaultLimit:        getInt("SEARCH_DEFAULT_LIMIT", 10),
		},
		Merge: MergeConfig{
			ProximityMeters:     getFloat("MERGE_PROXIMITY_M", 200),
			ConfidenceThreshold: getFloat("MERGE_CONFIDENCE_THRESHOLD", 0.7),
		},
		Enrichment: EnrichmentConfig{
			MaxRadiusMeters:       getFloat("ENRICHMENT_MAX_RADIUS_M", 5000),
			MaxResults:            getInt("ENRICHMENT_MAX_RESULTS", 20),
			MaxPaidCallsPerSearch: getInt("ENRICHMENT_MAX_PAID_CALLS", 1),
			MinPopularity:         getInt("ENRICHMENT_MIN_POPULARITY", 10),
		},
		Cache: CacheConfig{
			TTL:      getDuration("CACHE_TTL", 5*time.Minute),
			Capacity: getInt("CACHE_CAPACITY", 100),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
