package models

// RawResult is the closed set of provider answers. Only the reading types in
// this package implement it.
type RawResult interface {
	Kind() ProviderKind
	isRawResult()
}

// TerrainReading is the elevation provider's answer. WaterProximity is in
// [0,1], closer to 1 meaning closer to where water collects.
type TerrainReading struct {
	ElevationM     float64 `json:"elevation_m"`
	WaterProximity float64 `json:"water_proximity"`
	Samples        int     `json:"samples"`
}

func (TerrainReading) Kind() ProviderKind { return Elevation }
func (TerrainReading) isRawResult() {}

// InfrastructureReading counts map features intersecting a bounding box.
type InfrastructureReading struct {
	Rivers    int     `json:"rivers"`
	Roads     int     `json:"roads"`
	Buildings int     `json:"buildings"`
	AreaKm2   float64 `json:"area_km2"`
}

func (InfrastructureReading) Kind() ProviderKind { return Infrastructure }
func (InfrastructureReading) isRawResult() {}

// RegistryReading is the government registry's answer for one province.
type RegistryReading struct {
	Province          string  `json:"province"`
	Year              int     `json:"year"`
	PopulationDensity float64 `json:"population_density"`
	FloodEvents       int     `json:"flood_events"`
	LookbackYears     int     `json:"lookback_years"`
}

func (RegistryReading) Kind() ProviderKind { return GovernmentRegistry }
func (RegistryReading) isRawResult() {}
