package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flood-risk-aggregator/internal/models"
	"go.uber.org/zap"
)

// RegistryClient talks to the government statistics registry.
type RegistryClient struct {
	*BaseClient
}

type RegistryStatisticsResponse struct {
	Province   string `json:"province"`
	Population *struct {
		Year          int     `json:"year"`
		DensityPerKm2 float64 `json:"density_per_km2"`
	} `json:"population"`
	Disasters *struct {
		FloodEvents   int `json:"flood_events"`
		LookbackYears int `json:"lookback_years"`
	} `json:"disasters"`
}

type RegistryAlertsResponse struct {
	Alerts []struct {
		ID          string `json:"id"`
		Severity    string `json:"severity"`
		IssuedAt    string `json:"issued_at"`
		Description string `json:"description"`
	} `json:"alerts"`
}

func NewRegistryClient(config ClientConfig, logger *zap.Logger) *RegistryClient {
	return &RegistryClient{
		BaseClient: NewBaseClient("government_registry", config, logger.Named("registry")),
	}
}

func (c *RegistryClient) Kind() models.ProviderKind {
	return models.GovernmentRegistry
}

// Fetch returns population density and flood history for the location's
// province.
func (c *RegistryClient) Fetch(ctx context.Context, q models.Query) (models.RawResult, error) {
	province := strings.TrimSpace(q.Location.Province)
	if province == "" {
		return nil, fmt.Errorf("registry: location has no province: %w", models.ErrProviderUnavailable)
	}

	data, err := c.GetWithRetry(ctx, c.provinceURL(province, "statistics", nil), c.authHeader())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registry statistics: %w", err)
	}

	var response RegistryStatisticsResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, models.Malformed("registry: %v", err)
	}
	if response.Population == nil || response.Disasters == nil {
		return nil, models.Malformed("registry: statistics for %q are incomplete", province)
	}

	return models.RegistryReading{
		Province:          province,
		Year:              response.Population.Year,
		PopulationDensity: response.Population.DensityPerKm2,
		FloodEvents:       response.Disasters.FloodEvents,
		LookbackYears:     response.Disasters.LookbackYears,
	}, nil
}

// FetchAlerts lists active flood alerts the registry has issued for the province.
func (c *RegistryClient) FetchAlerts(ctx context.Context, region models.Region) ([]models.FloodAlert, error) {
	params := url.Values{"status": {"active"}, "hazard": {"flood"}}
	data, err := c.GetWithRetry(ctx, c.provinceURL(region.Province, "alerts", params), c.authHeader())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registry alerts: %w", err)
	}

	var response RegistryAlertsResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, models.Malformed("registry alerts: %v", err)
	}

	alerts := make([]models.FloodAlert, 0, len(response.Alerts))
	for _, a := range response.Alerts {
		issued, err := time.Parse(time.RFC3339, a.IssuedAt)
		if err != nil {
			return nil, models.Malformed("registry alerts: issued_at %q", a.IssuedAt)
		}
		alerts = append(alerts, models.FloodAlert{
			ID:          a.ID,
			Province:    region.Province,
			Severity:    models.ParseAlertSeverity(a.Severity),
			IssuedAt:    issued.UTC(),
			Description: a.Description,
			Source:      models.GovernmentRegistry,
		})
	}
	return alerts, nil
}

func (c *RegistryClient) provinceURL(province, resource string, params url.Values) string {
	u := fmt.Sprintf("%s/provinces/%s/%s", c.baseURL, url.PathEscape(province), resource)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *RegistryClient) authHeader() http.Header {
	return http.Header{"X-Api-Key": {c.apiKey}}
}
