package services

import (
	"fmt"

	"flood-risk-aggregator/internal/config"
	"flood-risk-aggregator/internal/observability"
	"flood-risk-aggregator/internal/registry"
	"flood-risk-aggregator/pkg/client"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Service bundles what the HTTP server, the CLI and the scheduler need.
type Service struct {
	Risk      *RiskAggregator
	Alerts    *AlertAggregator
	Cache     *ResultCache
	Provinces *registry.Directory
}

// NewService builds every provider client from cfg and wires them into the
// aggregators. A client without an API key is still registered: it reports
// itself unavailable on each call.
func NewService(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*Service, error) {
	provinces, err := registry.Load(cfg.Providers.RegistrySeedFile)
	if err != nil {
		return nil, fmt.Errorf("loading province directory: %w", err)
	}

	clientConfig := func(p config.Provider) client.ClientConfig {
		return client.ClientConfig{
			BaseURL:        p.URL,
			APIKey:         p.APIKey,
			Timeout:        cfg.Providers.Timeout,
			MaxRetries:     cfg.Retry.MaxRetries,
			RetryDelay:     cfg.Retry.Delay,
			Multiplier:     cfg.Retry.Multiplier,
			Threshold:      cfg.CircuitBreaker.Threshold,
			BreakerTimeout: cfg.CircuitBreaker.Timeout,
			RateLimit:      cfg.Providers.RateLimit,
			RateBurst:      cfg.Providers.RateBurst,
		}
	}

	weather := client.NewWeatherClient(clientConfig(cfg.Providers.Weather), cfg.Assessment.ForecastDays, logger)
	elevation := client.NewElevationClient(clientConfig(cfg.Providers.Elevation), cfg.Assessment.ElevationSampleRadiusM, logger)
	infrastructure := client.NewInfrastructureClient(clientConfig(cfg.Providers.Infrastructure), logger)

	providers := []ProviderClient{weather, elevation, infrastructure}
	alertSources := []AlertSource{weather}

	switch cfg.Providers.RegistryMode {
	case config.RegistryModeSeed:
		static := registry.NewStaticRegistry(provinces)
		providers = append(providers, static)
		alertSources = append(alertSources, static)
		logger.Info("Using seed government registry", zap.Strings("provinces", provinces.Names()))
	default:
		gov := client.NewRegistryClient(clientConfig(cfg.Providers.Registry), logger)
		providers = append(providers, gov)
		alertSources = append(alertSources, gov)
	}

	keys := map[string]string{
		"weather":        cfg.Providers.Weather.APIKey,
		"elevation":      cfg.Providers.Elevation.APIKey,
		"infrastructure": cfg.Providers.Infrastructure.APIKey,
	}
	if cfg.Providers.RegistryMode != config.RegistryModeSeed {
		keys["government_registry"] = cfg.Providers.Registry.APIKey
	}
	for provider, key := range keys {
		if key == "" {
			logger.Warn("Provider has no API key and will report unavailable", zap.String("provider", provider))
		}
	}

	clock := clockwork.NewRealClock()
	risk, err := NewRiskAggregator(providers, logger.Named("risk"),
		WithClock(clock),
		WithMetrics(metrics),
		WithDeadline(cfg.Assessment.Deadline),
		WithBoundingBoxRadius(cfg.Assessment.BBoxRadiusKm),
		WithFallbackScore(cfg.Assessment.FallbackScore),
	)
	if err != nil {
		return nil, fmt.Errorf("building risk aggregator: %w", err)
	}

	alerts := NewAlertAggregator(alertSources, provinces, logger.Named("alerts"),
		WithClock(clock),
		WithMetrics(metrics),
		WithDeadline(cfg.Assessment.Deadline),
	)

	cache := NewResultCache(cfg.Cache.Duration, cfg.Cache.MaxSize, cfg.Cache.CoordPrecision, clock, logger.Named("cache"))

	return &Service{
		Risk:      risk,
		Alerts:    alerts,
		Cache:     cache,
		Provinces: provinces,
	}, nil
}

// Close stops background work.
func (s *Service) Close() {
	s.Cache.Stop()
}
