// Package registry serves province data from a YAML seed: a directory that
// resolves province names to coordinates, and a static stand-in for the
// government registry.
package registry

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"flood-risk-aggregator/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

type Seed struct {
	Provinces []Province `yaml:"provinces"`
}

type Province struct {
	Name       string   `yaml:"name"`
	Aliases    []string `yaml:"aliases"`
	Latitude   float64  `yaml:"latitude"`
	Longitude  float64  `yaml:"longitude"`
	Population *struct {
		Year          int     `yaml:"year"`
		DensityPerKm2 float64 `yaml:"density_per_km2"`
	} `yaml:"population"`
	Disasters *struct {
		FloodEvents   int `yaml:"flood_events"`
		LookbackYears int `yaml:"lookback_years"`
	} `yaml:"disasters"`
	Alerts []SeedAlert `yaml:"alerts"`
}

type SeedAlert struct {
	ID          string    `yaml:"id"`
	Severity    string    `yaml:"severity"`
	IssuedAt    time.Time `yaml:"issued_at"`
	Description string    `yaml:"description"`
}

// Directory indexes provinces by normalized name and alias.
type Directory struct {
	provinces []Province
	index     map[string]int
}

// Default returns the directory built from the embedded seed.
func Default() *Directory {
	d, err := Parse(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("registry: embedded seed is invalid: %v", err))
	}
	return d
}

// Load reads a seed file. An empty path yields the embedded seed.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry seed: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Directory, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing registry seed: %w", err)
	}
	return NewDirectory(seed)
}

func NewDirectory(seed Seed) (*Directory, error) {
	d := &Directory{index: make(map[string]int)}
	for _, p := range seed.Provinces {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("registry seed: province without a name")
		}
		loc := models.Location{Latitude: p.Latitude, Longitude: p.Longitude, Name: p.Name, Province: p.Name}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("registry seed: province %q: %w", p.Name, err)
		}

		i := len(d.provinces)
		d.provinces = append(d.provinces, p)
		for _, key := range append([]string{p.Name}, p.Aliases...) {
			k := normalize(key)
			if prev, dup := d.index[k]; dup {
				return nil, fmt.Errorf("registry seed: %q used by both %q and %q", key, d.provinces[prev].Name, p.Name)
			}
			d.index[k] = i
		}
	}
	return d, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (d *Directory) lookup(name string) (Province, bool) {
	i, ok := d.index[normalize(name)]
	if !ok {
		return Province{}, false
	}
	return d.provinces[i], true
}

// Resolve returns the centroid of the named province.
func (d *Directory) Resolve(province string) (models.Location, bool) {
	p, ok := d.lookup(province)
	if !ok {
		return models.Location{}, false
	}
	return models.Location{Latitude: p.Latitude, Longitude: p.Longitude, Name: p.Name, Province: p.Name}, true
}

// Names lists canonical province names in alphabetical order.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.provinces))
	for _, p := range d.provinces {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// StaticRegistry answers government registry queries from the seed. It is a
// development stand-in; production deployments use the HTTP registry.
type StaticRegistry struct {
	dir *Directory
}

func NewStaticRegistry(dir *Directory) *StaticRegistry {
	return &StaticRegistry{dir: dir}
}

func (r *StaticRegistry) Kind() models.ProviderKind {
	return models.GovernmentRegistry
}

func (r *StaticRegistry) Fetch(ctx context.Context, q models.Query) (models.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.Unavailable(err)
	}
	p, ok := r.dir.lookup(q.Location.Province)
	if !ok {
		return nil, fmt.Errorf("seed registry: unknown province %q: %w", q.Location.Province, models.ErrProviderUnavailable)
	}
	if p.Population == nil || p.Disasters == nil {
		return nil, models.Malformed("seed registry: province %q has no statistics", p.Name)
	}
	return models.RegistryReading{
		Province:          p.Name,
		Year:              p.Population.Year,
		PopulationDensity: p.Population.DensityPerKm2,
		FloodEvents:       p.Disasters.FloodEvents,
		LookbackYears:     p.Disasters.LookbackYears,
	}, nil
}

func (r *StaticRegistry) FetchAlerts(ctx context.Context, region models.Region) ([]models.FloodAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.Unavailable(err)
	}
	p, ok := r.dir.lookup(region.Province)
	if !ok {
		return nil, nil
	}
	alerts := make([]models.FloodAlert, 0, len(p.Alerts))
	for _, a := range p.Alerts {
		alerts = append(alerts, models.FloodAlert{
			ID:          a.ID,
			Province:    p.Name,
			Severity:    models.ParseAlertSeverity(a.Severity),
			IssuedAt:    a.IssuedAt.UTC(),
			Description: a.Description,
			Source:      models.GovernmentRegistry,
		})
	}
	return alerts, nil
}
