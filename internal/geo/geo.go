package geo

import "math"

const earthRadiusKm = 6371

// Distance calculates the distance between two coordinates using the
// Haversine formula. Returns distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c * 1000
}

// BoundingBox is a lat/lng rectangle used as a cheap SQL prefilter before the
// exact haversine distance check.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoundsAround computes the bounding box enclosing the circle of radiusMeters
// around the given center. Longitude span widens with latitude; near the poles
// the box degenerates to the full longitude range.
func BoundsAround(lat, lng, radiusMeters float64) BoundingBox {
	latDelta := radiusMeters / 111320.0

	lngDelta := 180.0
	if cos := math.Cos(lat * math.Pi / 180); cos > 1e-6 {
		lngDelta = radiusMeters / (111320.0 * cos)
	}

	return BoundingBox{
		MinLat: math.Max(lat-latDelta, -90),
		MaxLat: math.Min(lat+latDelta, 90),
		MinLng: math.Max(lng-lngDelta, -180),
		MaxLng: math.Min(lng+lngDelta, 180),
	}
}
