package services

import (
	"context"
	"sync/atomic"
	"time"

	"flood-risk-aggregator/internal/models"
)

type fakeProvider struct {
	kind  models.ProviderKind
	raw   models.RawResult
	err   error
	delay time.Duration

	// stubborn providers sleep through cancellation.
	stubborn bool
	panics   bool
	calls    atomic.Int32
}

func (f *fakeProvider) Kind() models.ProviderKind { return f.kind }

func (f *fakeProvider) Fetch(ctx context.Context, q models.Query) (models.RawResult, error) {
	f.calls.Add(1)
	if f.panics {
		panic("provider exploded")
	}
	if f.delay > 0 {
		if f.stubborn {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, models.Unavailable(ctx.Err())
			}
		}
	}
	return f.raw, f.err
}

var (
	heavyRain   = models.WeatherReading{TemperatureC: 27, DailyRainfallMM: []float64{60, 50, 20}}
	lowland     = models.TerrainReading{ElevationM: 3, WaterProximity: 0.9, Samples: 9}
	denseCity   = models.InfrastructureReading{Roads: 200, Buildings: 600, AreaKm2: 4}
	floodRecord = models.RegistryReading{Province: "Hanoi", Year: 2023, PopulationDensity: 2480, FloodEvents: 9, LookbackYears: 20}
)

func healthyProviders() []*fakeProvider {
	return []*fakeProvider{
		{kind: models.Weather, raw: heavyRain},
		{kind: models.Elevation, raw: lowland},
		{kind: models.Infrastructure, raw: denseCity},
		{kind: models.GovernmentRegistry, raw: floodRecord},
	}
}

func asClients(fakes []*fakeProvider) []ProviderClient {
	out := make([]ProviderClient, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

func hanoi() models.Location {
	return models.Location{Latitude: 21.0285, Longitude: 105.8542, Name: "Hanoi", Province: "Hanoi"}
}

type fakeAlertSource struct {
	kind   models.ProviderKind
	alerts []models.FloodAlert
	err    error
	calls  atomic.Int32
	region atomic.Pointer[models.Region]

	// hang, when set, blocks FetchAlerts until closed whatever ctx says.
	hang chan struct{}
}

func (f *fakeAlertSource) Kind() models.ProviderKind { return f.kind }

func (f *fakeAlertSource) FetchAlerts(ctx context.Context, region models.Region) ([]models.FloodAlert, error) {
	f.calls.Add(1)
	f.region.Store(&region)
	if f.hang != nil {
		<-f.hang
	}
	return f.alerts, f.err
}

type fakeResolver map[string]models.Location

func (r fakeResolver) Resolve(province string) (models.Location, bool) {
	loc, ok := r[province]
	return loc, ok
}
