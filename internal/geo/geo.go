// Package geo provides great-circle geometry over a spherical WGS-84 Earth.
// All functions are pure; distances are meters, angles are degrees.
package geo

import "math"

// EarthRadiusM is the mean Earth radius used for all spherical math.
const EarthRadiusM = 6371000.0

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Point is a geographic coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	rLat1 := lat1 * degToRad
	rLat2 := lat2 * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(rLat1)*math.Cos(rLat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Distance returns the great-circle distance between two points in meters.
func Distance(from, to Point) float64 {
	return Haversine(from.Lat, from.Lng, to.Lat, to.Lng)
}

// InitialBearing returns the forward azimuth from one point to another in
// degrees, normalized to [0, 360). The bearing is undefined for identical
// points; 0 is returned in that case.
func InitialBearing(from, to Point) float64 {
	rLat1 := from.Lat * degToRad
	rLat2 := to.Lat * degToRad
	dLng := (to.Lng - from.Lng) * degToRad

	y := math.Sin(dLng) * math.Cos(rLat2)
	x := math.Cos(rLat1)*math.Sin(rLat2) -
		math.Sin(rLat1)*math.Cos(rLat2)*math.Cos(dLng)
	brng := math.Atan2(y, x)

	return math.Mod(brng*radToDeg+360.0, 360.0)
}

// Destination returns the point reached by traveling distanceM meters from
// start along the given initial bearing.
func Destination(start Point, bearingDeg, distanceM float64) Point {
	rLat := start.Lat * degToRad
	rLng := start.Lng * degToRad
	brng := bearingDeg * degToRad
	frac := distanceM / EarthRadiusM

	lat2 := math.Asin(math.Sin(rLat)*math.Cos(frac) +
		math.Cos(rLat)*math.Sin(frac)*math.Cos(brng))
	lng2 := rLng + math.Atan2(math.Sin(brng)*math.Sin(frac)*math.Cos(rLat),
		math.Cos(frac)-math.Sin(rLat)*math.Sin(lat2))

	return Point{
		Lat: lat2 * radToDeg,
		Lng: normalizeLng(lng2 * radToDeg),
	}
}

// NormalizeRelativeAngle reduces an angle difference into (-180, 180].
// Crossing the 180/-180 meridian is handled by this normalization.
func NormalizeRelativeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg <= -180 {
		angleDeg += 360
	}
	return angleDeg
}

// ConeResult describes a point's relation to a view cone.
type ConeResult struct {
	In            bool
	DistanceM     float64
	RelativeAngle float64 // degrees in (-180, 180], relative to the cone heading
}

// PointInCone tests whether a point lies inside the circular sector anchored
// at apex, pointing along headingDeg, with the given aperture and range.
// A point coincident with the apex is inside the cone by definition.
func PointInCone(apex Point, headingDeg, apertureDeg, rangeM float64, point Point) ConeResult {
	d := Distance(apex, point)
	if d == 0 {
		return ConeResult{In: true, DistanceM: 0, RelativeAngle: 0}
	}

	bearing := InitialBearing(apex, point)
	rel := NormalizeRelativeAngle(bearing - headingDeg)

	return ConeResult{
		In:            d <= rangeM && math.Abs(rel) <= apertureDeg/2,
		DistanceM:     d,
		RelativeAngle: rel,
	}
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
