package domain

import "github.com/golang/geo/s2"

// EarthRadiusMeters is the Earth's volumetric mean radius (6371 km).
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two points.
//
// s2.LatLng.Distance evaluates the haversine formula in its atan2 form, which
// stays accurate for coincident and antipodal points. Inputs are not
// validated; callers pass resolved coordinates.
func Distance(a, b Coordinates) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}
