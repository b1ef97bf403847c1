package services

import (
	"fmt"
	"math"

	"flood-risk-aggregator/internal/models"
)

// referenceLookbackYears is the window FloodEventsHigh is expressed in.
const referenceLookbackYears = 20

// NormalizerConfig holds the thresholds that map raw provider readings onto
// [0,1]. Zero fields fall back to the defaults.
type NormalizerConfig struct {
	// RainfallSevereMM is the forecast-window rainfall total that scores 1.
	RainfallSevereMM float64

	// ElevationSafeM is the elevation at and above which terrain risk is 0.
	ElevationSafeM float64

	// ImperviousSaturationPerKm2 is the roads+buildings density that scores 1.
	ImperviousSaturationPerKm2 float64

	// DrainageSaturationPerKm2 is the waterway density treated as full drainage.
	DrainageSaturationPerKm2 float64

	// DrainageRelief is the share of impervious pressure full drainage removes.
	DrainageRelief float64

	// PopulationDensityHigh is the density (people/km²) that scores 1.
	PopulationDensityHigh float64

	// FloodEventsHigh is the number of flood events per 20 years that scores 1.
	FloodEventsHigh float64
}

func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		RainfallSevereMM:           100,
		ElevationSafeM:             30,
		ImperviousSaturationPerKm2: 400,
		DrainageSaturationPerKm2:   4,
		DrainageRelief:             0.5,
		PopulationDensityHigh:      2000,
		FloodEventsHigh:            10,
	}
}

func (c NormalizerConfig) withDefaults() NormalizerConfig {
	d := DefaultNormalizerConfig()
	if c.RainfallSevereMM <= 0 {
		c.RainfallSevereMM = d.RainfallSevereMM
	}
	if c.ElevationSafeM <= 0 {
		c.ElevationSafeM = d.ElevationSafeM
	}
	if c.ImperviousSaturationPerKm2 <= 0 {
		c.ImperviousSaturationPerKm2 = d.ImperviousSaturationPerKm2
	}
	if c.DrainageSaturationPerKm2 <= 0 {
		c.DrainageSaturationPerKm2 = d.DrainageSaturationPerKm2
	}
	if c.DrainageRelief <= 0 {
		c.DrainageRelief = d.DrainageRelief
	}
	if c.PopulationDensityHigh <= 0 {
		c.PopulationDensityHigh = d.PopulationDensityHigh
	}
	if c.FloodEventsHigh <= 0 {
		c.FloodEventsHigh = d.FloodEventsHigh
	}
	c.DrainageRelief = clamp01(c.DrainageRelief)
	return c
}

// Normalizer turns raw readings into risk factor values. It is pure and safe
// for concurrent use.
type Normalizer struct {
	cfg NormalizerConfig
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	return &Normalizer{cfg: cfg.withDefaults()}
}

// Normalize maps raw onto [0,1]. Every formula is monotonic in its inputs and
// out-of-range inputs are clamped.
func (n *Normalizer) Normalize(raw models.RawResult) (float64, error) {
	switch r := raw.(type) {
	case models.WeatherReading:
		return n.weather(r), nil
	case models.TerrainReading:
		return n.terrain(r), nil
	case models.InfrastructureReading:
		return n.infrastructure(r), nil
	case models.RegistryReading:
		return n.registry(r), nil
	case nil:
		return 0, models.Malformed("no reading to normalize")
	default:
		return 0, models.Malformed("unsupported reading %T", raw)
	}
}

// weather: forecast rainfall relative to the severe total.
func (n *Normalizer) weather(r models.WeatherReading) float64 {
	return clamp01(r.ForecastRainfallMM() / n.cfg.RainfallSevereMM)
}

// terrain: mean of inverse elevation and water proximity.
func (n *Normalizer) terrain(r models.TerrainReading) float64 {
	lowness := clamp01(1 - r.ElevationM/n.cfg.ElevationSafeM)
	if math.IsNaN(r.ElevationM) {
		lowness = 0
	}
	return clamp01((lowness + clamp01(r.WaterProximity)) / 2)
}

// infrastructure: impervious density, relieved by natural drainage.
func (n *Normalizer) infrastructure(r models.InfrastructureReading) float64 {
	impervious := clamp01(density(r.Roads+r.Buildings, r.AreaKm2) / n.cfg.ImperviousSaturationPerKm2)
	drainage := clamp01(density(r.Rivers, r.AreaKm2) / n.cfg.DrainageSaturationPerKm2)
	return clamp01(impervious * (1 - n.cfg.DrainageRelief*drainage))
}

// registry: mean of exposure (population density) and susceptibility (flood
// frequency over the reference window).
func (n *Normalizer) registry(r models.RegistryReading) float64 {
	exposure := clamp01(r.PopulationDensity / n.cfg.PopulationDensityHigh)

	events := float64(r.FloodEvents)
	if r.LookbackYears > 0 {
		events = events * referenceLookbackYears / float64(r.LookbackYears)
	}
	susceptibility := clamp01(events / n.cfg.FloodEventsHigh)

	return clamp01((exposure + susceptibility) / 2)
}

// density returns features per km². A positive count over an empty area is
// treated as saturated.
func density(count int, areaKm2 float64) float64 {
	if count <= 0 {
		return 0
	}
	if math.IsNaN(areaKm2) || areaKm2 <= 0 {
		return math.Inf(1)
	}
	return float64(count) / areaKm2
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// String describes the active thresholds, for logs.
func (c NormalizerConfig) String() string {
	return fmt.Sprintf("rain=%gmm elevation=%gm impervious=%g/km² drainage=%g/km² relief=%g population=%g/km² floods=%g/20y",
		c.RainfallSevereMM, c.ElevationSafeM, c.ImperviousSaturationPerKm2, c.DrainageSaturationPerKm2,
		c.DrainageRelief, c.PopulationDensityHigh, c.FloodEventsHigh)
}
