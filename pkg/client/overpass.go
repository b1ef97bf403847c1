package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flood-risk-aggregator/internal/geo"
	"flood-risk-aggregator/internal/models"
	"go.uber.org/zap"
)

// InfrastructureClient counts waterways, roads and buildings through an
// Overpass compatible endpoint.
type InfrastructureClient struct {
	*BaseClient
}

type OverpassCountResponse struct {
	Elements []struct {
		Type string            `json:"type"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

func NewInfrastructureClient(config ClientConfig, logger *zap.Logger) *InfrastructureClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://overpass.kumi.systems/api"
	}
	return &InfrastructureClient{
		BaseClient: NewBaseClient("infrastructure", config, logger.Named("infrastructure")),
	}
}

func (c *InfrastructureClient) Kind() models.ProviderKind {
	return models.Infrastructure
}

func (c *InfrastructureClient) Fetch(ctx context.Context, q models.Query) (models.RawResult, error) {
	form := url.Values{"data": {overpassQuery(q.BBox, c.timeout)}}
	endpoint := c.baseURL + "/interpreter"

	data, err := c.DoWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch infrastructure: %w", err)
	}

	var response OverpassCountResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, models.Malformed("infrastructure: %v", err)
	}

	counts := make([]int, 0, 3)
	for _, el := range response.Elements {
		if el.Type != "count" {
			continue
		}
		n, err := strconv.Atoi(el.Tags["ways"])
		if err != nil {
			return nil, models.Malformed("infrastructure: bad way count %q", el.Tags["ways"])
		}
		counts = append(counts, n)
	}
	if len(counts) != 3 {
		return nil, models.Malformed("infrastructure: expected 3 counts, got %d", len(counts))
	}

	return models.InfrastructureReading{
		Rivers:    counts[0],
		Roads:     counts[1],
		Buildings: counts[2],
		AreaKm2:   geo.AreaKm2(q.BBox),
	}, nil
}

func overpassQuery(b models.BoundingBox, timeout time.Duration) string {
	seconds := int(timeout.Seconds())
	if seconds < 1 {
		seconds = 5
	}
	bbox := fmt.Sprintf("(%.6f,%.6f,%.6f,%.6f)", b.South, b.West, b.North, b.East)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];", seconds)
	for _, tag := range []string{"waterway", "highway", "building"} {
		fmt.Fprintf(&sb, "way[%q]%s;out count;", tag, bbox)
	}
	return sb.String()
}
