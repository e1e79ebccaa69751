package attendance

import "math"

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between a and b in metres
// (haversine).
func Distance(a, b Coordinate) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
