package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"flood-risk-aggregator/internal/geo"
	"flood-risk-aggregator/internal/models"
	"go.uber.org/zap"
)

const ringSamples = 8

type ElevationClient struct {
	*BaseClient
	sampleRadiusM float64
}

type ElevationResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Elevation  float64 `json:"elevation"`
		Resolution float64 `json:"resolution"`
	} `json:"results"`
}

func NewElevationClient(config ClientConfig, sampleRadiusM float64, logger *zap.Logger) *ElevationClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://maps.googleapis.com/maps/api/elevation"
	}
	if sampleRadiusM <= 0 {
		sampleRadiusM = 500
	}
	return &ElevationClient{
		BaseClient:    NewBaseClient("elevation", config, logger.Named("elevation")),
		sampleRadiusM: sampleRadiusM,
	}
}

func (c *ElevationClient) Kind() models.ProviderKind {
	return models.Elevation
}

// Fetch samples the centre point and a ring around it in one request.
func (c *ElevationClient) Fetch(ctx context.Context, q models.Query) (models.RawResult, error) {
	points := append([]models.Location{q.Location}, geo.Ring(q.Location, c.sampleRadiusM, ringSamples)...)

	coords := make([]string, 0, len(points))
	for _, p := range points {
		coords = append(coords, fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude))
	}
	params := url.Values{
		"locations": {strings.Join(coords, "|")},
		"key":       {c.apiKey},
	}
	u := fmt.Sprintf("%s/json?%s", c.baseURL, params.Encode())

	data, err := c.GetWithRetry(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch elevation: %w", err)
	}

	var response ElevationResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, models.Malformed("elevation: %v", err)
	}

	switch response.Status {
	case "OK":
	case "REQUEST_DENIED", "INVALID_REQUEST", "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT", "UNKNOWN_ERROR":
		return nil, fmt.Errorf("elevation: status %s %s: %w", response.Status, response.ErrorMessage, models.ErrProviderUnavailable)
	default:
		return nil, models.Malformed("elevation: status %q", response.Status)
	}

	if len(response.Results) != len(points) {
		return nil, models.Malformed("elevation: got %d results for %d points", len(response.Results), len(points))
	}

	samples := make([]float64, len(response.Results))
	for i, r := range response.Results {
		samples[i] = r.Elevation
	}

	return models.TerrainReading{
		ElevationM:     samples[0],
		WaterProximity: WaterProximity(samples[0], samples[1:]),
		Samples:        len(samples),
	}, nil
}

// WaterProximity places the centre within the local relief: 1 at the lowest
// sampled point, 0 at the highest. Flat terrain and samples at or below sea
// level count as next to water.
func WaterProximity(center float64, ring []float64) float64 {
	lo, hi := center, center
	for _, e := range ring {
		if e <= 0 {
			return 1
		}
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	if center <= 0 || hi-lo < 1e-6 {
		return 1
	}
	return 1 - (center-lo)/(hi-lo)
}
