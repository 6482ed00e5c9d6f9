package geo

import "math"

// EarthRadiusKm is the mean radius of Earth used for Haversine distance.
const EarthRadiusKm = 6371.0088

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint returns a Point, reporting false when the coordinates are out of range.
func NewPoint(lat, lon float64) (Point, bool) {
	if !ValidateCoordinates(lat, lon) {
		return Point{}, false
	}
	return Point{Latitude: lat, Longitude: lon}, true
}

// Haversine returns the great-circle distance in kilometers between two points
// specified by latitude and longitude in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1r)*math.Cos(lat2r)*sinLon*sinLon
	// Rounding can push a a hair above 1 for antipodal points.
	if a > 1 {
		a = 1
	}

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// DistanceKm returns the Haversine distance between two points.
func DistanceKm(a, b Point) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// OffsetNorth returns the point reached by moving distKm due north along a meridian.
// Used to build fixtures at exact distances.
func OffsetNorth(p Point, distKm float64) Point {
	dLat := distKm / EarthRadiusKm * 180 / math.Pi
	return Point{Latitude: p.Latitude + dLat, Longitude: p.Longitude}
}
