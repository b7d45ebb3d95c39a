package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Clamp rounding drift so Sqrt(1-a) never sees a negative value.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// BoundingBox returns the lat/lon envelope enclosing a circle of radiusMeters
// around (lat, lon). Stores use it as an index-friendly prefilter before the
// exact haversine check. The longitude half-span is the reach of the circle's
// meridian tangent points, asin(sin(d)/cos(lat)). Near the poles or across the
// antimeridian the longitude span widens to the full range.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, maxLat, minLon, maxLon float64) {
	angular := radiusMeters / EarthRadiusMeters
	dLat := angular * 180 / math.Pi
	minLat = math.Max(-90, lat-dLat)
	maxLat = math.Min(90, lat+dLat)

	cosLat := math.Cos(toRadians(lat))
	if cosLat < 1e-9 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	reach := math.Sin(angular) / cosLat
	if reach >= 1 {
		return minLat, maxLat, -180, 180
	}
	dLon := math.Asin(reach) * 180 / math.Pi
	minLon, maxLon = lon-dLon, lon+dLon
	if minLon < -180 || maxLon > 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLon, maxLon
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
