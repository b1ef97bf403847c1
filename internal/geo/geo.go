// Package geo holds the small amount of spherical geometry the providers need.
package geo

import (
	"math"

	"flood-risk-aggregator/internal/models"
)

const earthRadiusM = 6371008.8

// BoundingBoxAround returns a box extending radiusKm north, south, east and
// west of the location. Latitudes are clamped to the poles and longitudes
// wrapped into [-180, 180]; a box that would span all longitudes is
// returned as West -180, East 180.
func BoundingBoxAround(loc models.Location, radiusKm float64) models.BoundingBox {
	dLat := radiusKm * 1000 / earthRadiusM * 180 / math.Pi

	cosLat := math.Cos(loc.Latitude * math.Pi / 180)
	dLon := 180.0
	if cosLat > 1e-9 {
		dLon = math.Min(180, dLat/cosLat)
	}

	box := models.BoundingBox{
		South: math.Max(-90, loc.Latitude-dLat),
		North: math.Min(90, loc.Latitude+dLat),
		West:  wrapLongitude(loc.Longitude - dLon),
		East:  wrapLongitude(loc.Longitude + dLon),
	}
	// Near the poles the box spans every meridian.
	if dLon >= 180 {
		box.West, box.East = -180, 180
	}
	return box
}

// AreaKm2 approximates the surface area of a box.
func AreaKm2(b models.BoundingBox) float64 {
	width := b.East - b.West
	if width < 0 {
		width += 360
	}
	r := earthRadiusM / 1000
	lat1 := b.South * math.Pi / 180
	lat2 := b.North * math.Pi / 180
	return r * r * math.Abs(math.Sin(lat2)-math.Sin(lat1)) * width * math.Pi / 180
}

// Destination returns the point reached by travelling distanceM metres from
// loc on the given bearing (degrees clockwise from north).
func Destination(loc models.Location, bearingDeg, distanceM float64) models.Location {
	lat1 := loc.Latitude * math.Pi / 180
	lon1 := loc.Longitude * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	d := distanceM / earthRadiusM

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	return models.Location{
		Latitude:  lat2 * 180 / math.Pi,
		Longitude: wrapLongitude(lon2 * 180 / math.Pi),
	}
}

// Ring returns n points evenly spaced on a circle of radiusM around loc,
// starting due north.
func Ring(loc models.Location, radiusM float64, n int) []models.Location {
	points := make([]models.Location, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, Destination(loc, float64(i)*360/float64(n), radiusM))
	}
	return points
}

func wrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
