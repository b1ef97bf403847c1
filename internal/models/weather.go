package models

import "time"

// WeatherReading is the weather provider's raw answer.
type WeatherReading struct {
	TemperatureC    float64           `json:"temperature_c"`
	ConditionCode   int               `json:"condition_code"`
	Condition       string            `json:"condition"`
	DailyRainfallMM []float64         `json:"daily_rainfall_mm"`
	Advisories      []WeatherAdvisory `json:"advisories,omitempty"`
	ObservedAt      time.Time         `json:"observed_at"`
}

// ForecastRainfallMM is the accumulated rainfall over the forecast window.
func (w WeatherReading) ForecastRainfallMM() float64 {
	total := 0.0
	for _, mm := range w.DailyRainfallMM {
		if mm > 0 {
			total += mm
		}
	}
	return total
}

// WeatherAdvisory is an alert as published by the weather provider.
type WeatherAdvisory struct {
	Sender      string    `json:"sender"`
	Event       string    `json:"event"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
}

func (WeatherReading) Kind() ProviderKind { return Weather }
func (WeatherReading) isRawResult() {}
