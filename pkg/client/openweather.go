package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flood-risk-aggregator/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// advisoryNamespace seeds deterministic IDs for advisories, which the
// weather provider publishes without one.
var advisoryNamespace = uuid.MustParse("8f6d3c1e-2b7a-4f5e-9a41-6c0d2e7b9f13")

var floodKeywords = []string{"flood", "rain", "storm", "typhoon", "tropical", "inundation", "lũ", "mưa"}

type WeatherClient struct {
	*BaseClient
	forecastDays int
}

type OneCallResponse struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"timezone"`
	Current  *struct {
		Dt      int64   `json:"dt"`
		Temp    float64 `json:"temp"`
		Weather []struct {
			ID          int    `json:"id"`
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"current"`
	Daily []struct {
		Dt   int64    `json:"dt"`
		Rain *float64 `json:"rain"`
		Pop  float64  `json:"pop"`
	} `json:"daily"`
	Alerts []struct {
		SenderName  string   `json:"sender_name"`
		Event       string   `json:"event"`
		Start       int64    `json:"start"`
		End         int64    `json:"end"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	} `json:"alerts"`
}

func NewWeatherClient(config ClientConfig, forecastDays int, logger *zap.Logger) *WeatherClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openweathermap.org/data/3.0"
	}
	if forecastDays <= 0 {
		forecastDays = 3
	}
	return &WeatherClient{
		BaseClient:   NewBaseClient("weather", config, logger.Named("weather")),
		forecastDays: forecastDays,
	}
}

func (c *WeatherClient) Kind() models.ProviderKind {
	return models.Weather
}

// Fetch returns current conditions and the rainfall forecast for the point.
func (c *WeatherClient) Fetch(ctx context.Context, q models.Query) (models.RawResult, error) {
	response, err := c.oneCall(ctx, q.Location)
	if err != nil {
		return nil, err
	}
	return c.toReading(response)
}

// FetchAlerts returns flood related advisories around the region centre.
func (c *WeatherClient) FetchAlerts(ctx context.Context, region models.Region) ([]models.FloodAlert, error) {
	if region.Center == nil {
		return nil, fmt.Errorf("weather: no coordinates for province %q: %w", region.Province, models.ErrProviderUnavailable)
	}

	response, err := c.oneCall(ctx, *region.Center)
	if err != nil {
		return nil, err
	}

	advisories := toAdvisories(response)
	alerts := make([]models.FloodAlert, 0, len(advisories))
	for _, adv := range advisories {
		if !isFloodRelated(adv) {
			continue
		}
		alerts = append(alerts, models.FloodAlert{
			ID:          advisoryID(region.Province, adv),
			Province:    region.Province,
			Severity:    models.ParseAlertSeverity(adv.Event + " " + strings.Join(adv.Tags, " ")),
			IssuedAt:    adv.Start,
			Description: strings.TrimSpace(adv.Event + ": " + adv.Description),
			Source:      models.Weather,
		})
	}
	return alerts, nil
}

func (c *WeatherClient) oneCall(ctx context.Context, loc models.Location) (*OneCallResponse, error) {
	params := url.Values{
		"lat":     {strconv.FormatFloat(loc.Latitude, 'f', 4, 64)},
		"lon":     {strconv.FormatFloat(loc.Longitude, 'f', 4, 64)},
		"appid":   {c.apiKey},
		"units":   {"metric"},
		"exclude": {"minutely,hourly"},
	}
	u := fmt.Sprintf("%s/onecall?%s", c.baseURL, params.Encode())

	data, err := c.GetWithRetry(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}

	var response OneCallResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, models.Malformed("weather: %v", err)
	}
	return &response, nil
}

func (c *WeatherClient) toReading(response *OneCallResponse) (models.RawResult, error) {
	if response.Current == nil {
		return nil, models.Malformed("weather: response has no current conditions")
	}
	if len(response.Daily) == 0 {
		return nil, models.Malformed("weather: response has no daily forecast")
	}

	reading := models.WeatherReading{
		TemperatureC: response.Current.Temp,
		ObservedAt:   time.Unix(response.Current.Dt, 0).UTC(),
	}
	if len(response.Current.Weather) > 0 {
		reading.ConditionCode = response.Current.Weather[0].ID
		reading.Condition = response.Current.Weather[0].Description
	}

	for i := 0; i < c.forecastDays && i < len(response.Daily); i++ {
		rain := 0.0
		if response.Daily[i].Rain != nil {
			rain = *response.Daily[i].Rain
		}
		reading.DailyRainfallMM = append(reading.DailyRainfallMM, rain)
	}

	reading.Advisories = toAdvisories(response)

	return reading, nil
}

func toAdvisories(response *OneCallResponse) []models.WeatherAdvisory {
	advisories := make([]models.WeatherAdvisory, 0, len(response.Alerts))
	for _, a := range response.Alerts {
		advisories = append(advisories, models.WeatherAdvisory{
			Sender:      a.SenderName,
			Event:       a.Event,
			Start:       time.Unix(a.Start, 0).UTC(),
			End:         time.Unix(a.End, 0).UTC(),
			Description: a.Description,
			Tags:        a.Tags,
		})
	}
	return advisories
}

func isFloodRelated(adv models.WeatherAdvisory) bool {
	text := strings.ToLower(adv.Event + " " + strings.Join(adv.Tags, " "))
	for _, kw := range floodKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func advisoryID(province string, adv models.WeatherAdvisory) string {
	key := fmt.Sprintf("%s|%s|%s|%d", strings.ToLower(province), adv.Sender, adv.Event, adv.Start.Unix())
	return uuid.NewSHA1(advisoryNamespace, []byte(key)).String()
}
