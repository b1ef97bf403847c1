package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	RegistryModeHTTP = "http"
	RegistryModeSeed = "seed"
)

type Provider struct {
	APIKey string
	URL    string
}

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Providers struct {
		Weather        Provider
		Elevation      Provider
		Infrastructure Provider
		Registry       Provider

		RegistryMode     string
		RegistrySeedFile string

		Timeout   time.Duration
		RateLimit float64
		RateBurst int
	}

	Assessment struct {
		Deadline               time.Duration
		ForecastDays           int
		BBoxRadiusKm           float64
		ElevationSampleRadiusM float64
		FallbackScore          int
	}

	Scheduler struct {
		Provinces []string
		Schedule  string
	}

	Cache struct {
		Duration       time.Duration
		MaxSize        int
		CoordPrecision int
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Provider configuration
	cfg.Providers.Weather = Provider{
		APIKey: getEnv("WEATHER_API_KEY", ""),
		URL:    getEnv("WEATHER_API_URL", "https://api.openweathermap.org/data/3.0"),
	}
	cfg.Providers.Elevation = Provider{
		APIKey: getEnv("ELEVATION_API_KEY", ""),
		URL:    getEnv("ELEVATION_API_URL", "https://maps.googleapis.com/maps/api/elevation"),
	}
	cfg.Providers.Infrastructure = Provider{
		APIKey: getEnv("INFRASTRUCTURE_API_KEY", ""),
		URL:    getEnv("INFRASTRUCTURE_API_URL", "https://overpass.kumi.systems/api"),
	}
	cfg.Providers.Registry = Provider{
		APIKey: getEnv("REGISTRY_API_KEY", ""),
		URL:    getEnv("REGISTRY_API_URL", "https://registry.example.gov.vn/api/v1"),
	}
	cfg.Providers.RegistryMode = strings.ToLower(getEnv("REGISTRY_MODE", RegistryModeHTTP))
	cfg.Providers.RegistrySeedFile = getEnv("REGISTRY_SEED_FILE", "")
	cfg.Providers.Timeout = parseDuration(getEnv("PROVIDER_TIMEOUT", "5s"))
	cfg.Providers.RateLimit = parseFloat(getEnv("RATE_LIMIT_RPS", "10"))
	cfg.Providers.RateBurst = parseInt(getEnv("RATE_LIMIT_BURST", "5"))

	// Assessment configuration
	cfg.Assessment.Deadline = parseDuration(getEnv("ASSESSMENT_DEADLINE", "8s"))
	cfg.Assessment.ForecastDays = parseInt(getEnv("FORECAST_DAYS", "3"))
	cfg.Assessment.BBoxRadiusKm = parseFloat(getEnv("BBOX_RADIUS_KM", "1"))
	cfg.Assessment.ElevationSampleRadiusM = parseFloat(getEnv("ELEVATION_SAMPLE_RADIUS_M", "500"))
	cfg.Assessment.FallbackScore = parseInt(getEnv("FALLBACK_SCORE", "25"))

	// Scheduler configuration
	cfg.Scheduler.Provinces = splitList(getEnv("ALERT_PROVINCES", "Hanoi,Ho Chi Minh City,Da Nang"))
	cfg.Scheduler.Schedule = getEnv("ALERT_SCHEDULE", "@every 15m")

	// Cache configuration
	cfg.Cache.Duration = parseDuration(getEnv("CACHE_DURATION", "10m"))
	cfg.Cache.MaxSize = parseInt(getEnv("MAX_CACHE_SIZE", "1000"))
	cfg.Cache.CoordPrecision = parseInt(getEnv("CACHE_COORD_PRECISION", "2"))

	// Circuit breaker configuration
	cfg.CircuitBreaker.Threshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "5"))
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	// Retry configuration
	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "2"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "200ms"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if c.Providers.Timeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.Assessment.Deadline <= 0 {
		errs = append(errs, errors.New("ASSESSMENT_DEADLINE must be positive"))
	} else if c.Providers.Timeout > c.Assessment.Deadline {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT (%s) must not exceed ASSESSMENT_DEADLINE (%s)",
			c.Providers.Timeout, c.Assessment.Deadline))
	}
	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 2 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be between 0 and 2, got %d", c.Retry.MaxRetries))
	}
	if c.Assessment.ForecastDays < 1 || c.Assessment.ForecastDays > 8 {
		errs = append(errs, fmt.Errorf("FORECAST_DAYS must be between 1 and 8, got %d", c.Assessment.ForecastDays))
	}
	if c.Assessment.FallbackScore < 0 || c.Assessment.FallbackScore > 100 {
		errs = append(errs, fmt.Errorf("FALLBACK_SCORE must be between 0 and 100, got %d", c.Assessment.FallbackScore))
	}
	if c.Assessment.BBoxRadiusKm <= 0 {
		errs = append(errs, errors.New("BBOX_RADIUS_KM must be positive"))
	}
	if c.Assessment.ElevationSampleRadiusM <= 0 {
		errs = append(errs, errors.New("ELEVATION_SAMPLE_RADIUS_M must be positive"))
	}
	if c.Cache.MaxSize <= 0 {
		errs = append(errs, errors.New("MAX_CACHE_SIZE must be positive"))
	}
	switch c.Providers.RegistryMode {
	case RegistryModeHTTP, RegistryModeSeed:
	default:
		errs = append(errs, fmt.Errorf("REGISTRY_MODE must be %q or %q, got %q",
			RegistryModeHTTP, RegistryModeSeed, c.Providers.RegistryMode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
