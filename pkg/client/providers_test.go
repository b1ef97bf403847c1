package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flood-risk-aggregator/internal/geo"
	"flood-risk-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var hanoi = models.Location{Latitude: 21.0285, Longitude: 105.8542, Name: "Hanoi", Province: "Hanoi"}

func hanoiQuery() models.Query {
	return models.Query{Location: hanoi, BBox: geo.BoundingBoxAround(hanoi, 1)}
}

func jsonServer(t *testing.T, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const oneCallBody = `{
  "lat": 21.0285, "lon": 105.8542, "timezone": "Asia/Bangkok",
  "current": {"dt": 1760425200, "temp": 29.5, "weather": [{"id": 502, "main": "Rain", "description": "heavy intensity rain"}]},
  "daily": [
    {"dt": 1760425200, "rain": 60.5},
    {"dt": 1760511600, "rain": 45},
    {"dt": 1760598000},
    {"dt": 1760684400, "rain": 80}
  ],
  "alerts": [
    {"sender_name": "NCHMF", "event": "Severe Flood Warning", "start": 1760421600, "end": 1760508000, "description": "River levels rising", "tags": ["Flood"]},
    {"sender_name": "NCHMF", "event": "Heat advisory", "start": 1760418000, "end": 1760500000, "description": "Hot", "tags": ["Extreme temperature value"]}
  ]
}`

func TestWeatherClient_Fetch(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, "/onecall", r.URL.Path)
		assert.Equal(t, testKey, r.URL.Query().Get("appid"))
		assert.Equal(t, "21.0285", r.URL.Query().Get("lat"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
	}, oneCallBody)

	c := NewWeatherClient(testConfig(srv.URL), 3, zap.NewNop())
	raw, err := c.Fetch(context.Background(), hanoiQuery())
	require.NoError(t, err)

	reading, ok := raw.(models.WeatherReading)
	require.True(t, ok)
	assert.Equal(t, 29.5, reading.TemperatureC)
	assert.Equal(t, 502, reading.ConditionCode)
	assert.Equal(t, []float64{60.5, 45, 0}, reading.DailyRainfallMM)
	assert.InDelta(t, 105.5, reading.ForecastRainfallMM(), 1e-9)
	assert.Len(t, reading.Advisories, 2)
}

func TestWeatherClient_FetchMalformed(t *testing.T) {
	srv := jsonServer(t, nil, `{"lat": 1, "daily": []}`)
	c := NewWeatherClient(testConfig(srv.URL), 3, zap.NewNop())

	_, err := c.Fetch(context.Background(), hanoiQuery())
	assert.ErrorIs(t, err, models.ErrMalformedResponse)

	srv2 := jsonServer(t, nil, `not json`)
	c2 := NewWeatherClient(testConfig(srv2.URL), 3, zap.NewNop())
	_, err = c2.Fetch(context.Background(), hanoiQuery())
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestWeatherClient_FetchAlertsKeepsFloodAdvisories(t *testing.T) {
	srv := jsonServer(t, nil, oneCallBody)
	c := NewWeatherClient(testConfig(srv.URL), 3, zap.NewNop())

	center := hanoi
	alerts, err := c.FetchAlerts(context.Background(), models.Region{Province: "Hanoi", Center: &center})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, models.AlertSeverityHigh, a.Severity)
	assert.Equal(t, "Hanoi", a.Province)
	assert.Equal(t, models.Weather, a.Source)
	assert.Equal(t, time.Unix(1760421600, 0).UTC(), a.IssuedAt)
	assert.Contains(t, a.Description, "River levels rising")

	again, err := c.FetchAlerts(context.Background(), models.Region{Province: "Hanoi", Center: &center})
	require.NoError(t, err)
	assert.Equal(t, a.ID, again[0].ID)
}

func TestWeatherClient_FetchAlertsNeedsCoordinates(t *testing.T) {
	c := NewWeatherClient(testConfig("http://127.0.0.1:1"), 3, zap.NewNop())
	_, err := c.FetchAlerts(context.Background(), models.Region{Province: "Atlantis"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestElevationClient_Fetch(t *testing.T) {
	results := make([]map[string]float64, 0, 9)
	results = append(results, map[string]float64{"elevation": 4})
	for i := 0; i < 8; i++ {
		results = append(results, map[string]float64{"elevation": 4 + float64(i)*2})
	}
	body, err := json.Marshal(map[string]any{"status": "OK", "results": results})
	require.NoError(t, err)

	srv := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, "/json", r.URL.Path)
		assert.Equal(t, testKey, r.URL.Query().Get("key"))
		assert.Len(t, strings.Split(r.URL.Query().Get("locations"), "|"), 9)
	}, string(body))

	c := NewElevationClient(testConfig(srv.URL), 500, zap.NewNop())
	raw, err := c.Fetch(context.Background(), hanoiQuery())
	require.NoError(t, err)

	reading := raw.(models.TerrainReading)
	assert.Equal(t, 4.0, reading.ElevationM)
	assert.Equal(t, 1.0, reading.WaterProximity)
	assert.Equal(t, 9, reading.Samples)
}

func TestElevationClient_StatusHandling(t *testing.T) {
	denied := jsonServer(t, nil, `{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`)
	c := NewElevationClient(testConfig(denied.URL), 500, zap.NewNop())
	_, err := c.Fetch(context.Background(), hanoiQuery())
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)

	invalid := jsonServer(t, nil, `{"status":"INVALID_REQUEST","results":[]}`)
	c = NewElevationClient(testConfig(invalid.URL), 500, zap.NewNop())
	_, err = c.Fetch(context.Background(), hanoiQuery())
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, models.ErrMalformedResponse)

	short := jsonServer(t, nil, `{"status":"OK","results":[{"elevation":3}]}`)
	c = NewElevationClient(testConfig(short.URL), 500, zap.NewNop())
	_, err = c.Fetch(context.Background(), hanoiQuery())
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestWaterProximity(t *testing.T) {
	cases := []struct {
		name   string
		center float64
		ring   []float64
		want   float64
	}{
		{"lowest point", 2, []float64{5, 8, 10}, 1},
		{"highest point", 10, []float64{2, 5, 8}, 0},
		{"midway", 6, []float64{2, 10}, 0.5},
		{"flat", 7, []float64{7, 7, 7}, 1},
		{"sea level sample", 40, []float64{60, 0, 80}, 1},
		{"below sea level centre", -2, []float64{1, 3}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, WaterProximity(tc.center, tc.ring), 1e-9)
		})
	}
}

func TestInfrastructureClient_Fetch(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/interpreter", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		q := r.PostForm.Get("data")
		assert.Contains(t, q, `way["waterway"]`)
		assert.Contains(t, q, `way["building"]`)
		assert.Equal(t, 3, strings.Count(q, "out count;"))
	}, `{"elements":[
		{"type":"count","tags":{"nodes":"0","ways":"6","total":"6"}},
		{"type":"count","tags":{"nodes":"0","ways":"310","total":"310"}},
		{"type":"count","tags":{"nodes":"0","ways":"1450","total":"1450"}}
	]}`)

	c := NewInfrastructureClient(testConfig(srv.URL), zap.NewNop())
	raw, err := c.Fetch(context.Background(), hanoiQuery())
	require.NoError(t, err)

	reading := raw.(models.InfrastructureReading)
	assert.Equal(t, 6, reading.Rivers)
	assert.Equal(t, 310, reading.Roads)
	assert.Equal(t, 1450, reading.Buildings)
	assert.InDelta(t, 4.0, reading.AreaKm2, 0.05)
}

func TestInfrastructureClient_MissingCounts(t *testing.T) {
	srv := jsonServer(t, nil, `{"elements":[{"type":"count","tags":{"ways":"1"}}]}`)
	c := NewInfrastructureClient(testConfig(srv.URL), zap.NewNop())

	_, err := c.Fetch(context.Background(), hanoiQuery())
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestRegistryClient_Fetch(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, "/provinces/Hanoi/statistics", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("X-Api-Key"))
	}, `{"province":"Hanoi","population":{"year":2024,"density_per_km2":2555},"disasters":{"flood_events":12,"lookback_years":20}}`)

	c := NewRegistryClient(testConfig(srv.URL), zap.NewNop())
	raw, err := c.Fetch(context.Background(), hanoiQuery())
	require.NoError(t, err)

	assert.Equal(t, models.RegistryReading{
		Province:          "Hanoi",
		Year:              2024,
		PopulationDensity: 2555,
		FloodEvents:       12,
		LookbackYears:     20,
	}, raw)
}

func TestRegistryClient_NoProvince(t *testing.T) {
	c := NewRegistryClient(testConfig("http://127.0.0.1:1"), zap.NewNop())
	q := hanoiQuery()
	q.Location.Province = ""

	_, err := c.Fetch(context.Background(), q)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestRegistryClient_FetchAlerts(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, "/provinces/Ho Chi Minh City/alerts", r.URL.Path)
		assert.Equal(t, "active", r.URL.Query().Get("status"))
	}, `{"alerts":[
		{"id":"gov-1","severity":"HIGH","issued_at":"2026-10-13T06:00:00+07:00","description":"Saigon river tide peak"},
		{"id":"gov-2","severity":"moderate","issued_at":"2026-10-12T18:00:00Z","description":"Urban flooding"}
	]}`)

	c := NewRegistryClient(testConfig(srv.URL), zap.NewNop())
	alerts, err := c.FetchAlerts(context.Background(), models.Region{Province: "Ho Chi Minh City"})
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, models.AlertSeverityHigh, alerts[0].Severity)
	assert.Equal(t, time.Date(2026, 10, 12, 23, 0, 0, 0, time.UTC), alerts[0].IssuedAt)
	assert.Equal(t, models.AlertSeverityMedium, alerts[1].Severity)
	assert.Equal(t, models.GovernmentRegistry, alerts[1].Source)
}

func TestRegistryClient_FetchAlertsBadTimestamp(t *testing.T) {
	srv := jsonServer(t, nil, `{"alerts":[{"id":"x","severity":"low","issued_at":"yesterday"}]}`)
	c := NewRegistryClient(testConfig(srv.URL), zap.NewNop())

	_, err := c.FetchAlerts(context.Background(), models.Region{Province: "Hanoi"})
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}
