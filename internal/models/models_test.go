package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_Validate(t *testing.T) {
	cases := []struct {
		name    string
		loc     Location
		wantErr string
	}{
		{"hanoi", Location{Latitude: 21.0285, Longitude: 105.8542, Name: "Hanoi", Province: "Hanoi"}, ""},
		{"origin", Location{}, ""},
		{"poles and antimeridian", Location{Latitude: -90, Longitude: 180}, ""},
		{"latitude too high", Location{Latitude: 95, Longitude: 10}, "latitude 95"},
		{"longitude too low", Location{Latitude: 10, Longitude: -180.5}, "longitude -180.5"},
		{"nan latitude", Location{Latitude: math.NaN()}, "latitude"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.loc.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidLocation))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLocation_Validate_ReportsEveryField(t *testing.T) {
	err := Location{Latitude: 100, Longitude: 200}.Validate()

	var invalid *InvalidLocationError
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, invalid.Problems, 2)
}

func TestClassifyRisk_Boundaries(t *testing.T) {
	cases := map[int]RiskLevel{
		0:   RiskLow,
		24:  RiskLow,
		25:  RiskMedium,
		49:  RiskMedium,
		50:  RiskHigh,
		74:  RiskHigh,
		75:  RiskSevere,
		100: RiskSevere,
	}
	for score, want := range cases {
		assert.Equal(t, want, ClassifyRisk(score), "score %d", score)
	}
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, ConfidenceLow, ConfidenceFor(0))
	assert.Equal(t, ConfidenceLow, ConfidenceFor(1))
	assert.Equal(t, ConfidenceMedium, ConfidenceFor(2))
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(3))
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(4))
}

func TestProviderKind_TextRoundTrip(t *testing.T) {
	for _, k := range ProviderKinds() {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var back ProviderKind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}

	_, err := ProviderKind(42).MarshalText()
	assert.Error(t, err)
}

func TestAssessment_JSONUsesNames(t *testing.T) {
	a := FloodRiskAssessment{
		RiskLevel:       RiskHigh,
		ConfidenceLevel: ConfidenceMedium,
		DataSources:     []ProviderKind{Weather, Elevation},
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"risk_level":"high"`)
	assert.Contains(t, string(data), `"confidence_level":"medium"`)
	assert.Contains(t, string(data), `"data_sources":["weather","elevation"]`)
}

func TestParseAlertSeverity(t *testing.T) {
	cases := map[string]AlertSeverity{
		"HIGH":              AlertSeverityHigh,
		"Extreme rainfall":  AlertSeverityHigh,
		"Red warning":       AlertSeverityHigh,
		"moderate":          AlertSeverityMedium,
		"Flood Warning":     AlertSeverityMedium,
		"medium":            AlertSeverityMedium,
		"low":               AlertSeverityLow,
		"advisory":          AlertSeverityLow,
		"Scattered showers": AlertSeverityLow,
		"":                  AlertSeverityLow,
	}
	for text, want := range cases {
		assert.Equal(t, want, ParseAlertSeverity(text), "text %q", text)
	}
}

func TestWeatherReading_ForecastRainfallIgnoresNegatives(t *testing.T) {
	w := WeatherReading{DailyRainfallMM: []float64{10, -5, 22.5}}
	assert.InDelta(t, 32.5, w.ForecastRainfallMM(), 1e-9)
}

func TestUnavailable_WrapsOnce(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := Unavailable(base)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, err, Unavailable(err))
	assert.NoError(t, Unavailable(nil))
	assert.ErrorIs(t, ErrMissingCredentials, ErrProviderUnavailable)
}
