package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Quebec City to Montreal, roughly 233 km.
	d := Haversine(46.8139, -71.2080, 45.5017, -73.5673)
	assert.InDelta(t, 233000, d, 3000)
}

func TestHaversineZeroForIdenticalPoints(t *testing.T) {
	assert.Zero(t, Haversine(46.8, -71.2, 46.8, -71.2))
}

func TestHaversineEquatorLongitudeStep(t *testing.T) {
	// 0.001 degrees of longitude at the equator is about 111.19 m.
	d := Haversine(0, 0, 0, 0.001)
	assert.InDelta(t, 111.19, d, 0.1)
}

func TestDestinationRoundTrip(t *testing.T) {
	start := Point{Lat: 46.8139, Lng: -71.2080}
	for _, tc := range []struct {
		bearing  float64
		distance float64
	}{
		{0, 1}, {45, 250}, {90, 500}, {135, 1000},
		{180, 2500}, {225, 3333}, {270, 4000}, {359, 5000},
	} {
		dest := Destination(start, tc.bearing, tc.distance)
		got := Distance(start, dest)
		assert.InDelta(t, tc.distance, got, 0.5,
			"bearing %.0f distance %.0f", tc.bearing, tc.distance)
	}
}

func TestDestinationBearingConsistency(t *testing.T) {
	start := Point{Lat: 46.8, Lng: -71.2}
	dest := Destination(start, 20, 300)
	bearing := InitialBearing(start, dest)
	assert.InDelta(t, 20, bearing, 0.1)
}

func TestInitialBearingRange(t *testing.T) {
	b := InitialBearing(Point{Lat: 10, Lng: 10}, Point{Lat: 9, Lng: 9})
	require.GreaterOrEqual(t, b, 0.0)
	require.Less(t, b, 360.0)
}

func TestNormalizeRelativeAngle(t *testing.T) {
	assert.Equal(t, 180.0, NormalizeRelativeAngle(180))
	assert.Equal(t, 180.0, NormalizeRelativeAngle(-180))
	assert.Equal(t, -170.0, NormalizeRelativeAngle(190))
	assert.Equal(t, 170.0, NormalizeRelativeAngle(-190))
	assert.Equal(t, 0.0, NormalizeRelativeAngle(720))
}

func TestPointInConeContainment(t *testing.T) {
	apex := Point{Lat: 46.8, Lng: -71.2}

	// Any point generated inside the sector must test inside.
	for _, delta := range []float64{-25, -10, 0, 10, 25} {
		for _, r := range []float64{10, 100, 499} {
			p := Destination(apex, 0+delta, r)
			res := PointInCone(apex, 0, 60, 500, p)
			assert.True(t, res.In, "delta %.0f range %.0f", delta, r)
			assert.InDelta(t, r, res.DistanceM, 0.5)
			assert.InDelta(t, delta, res.RelativeAngle, 0.1)
		}
	}
}

func TestPointInConeRejectsOutsideAperture(t *testing.T) {
	apex := Point{Lat: 46.8, Lng: -71.2}

	p := Destination(apex, 40, 300)
	res := PointInCone(apex, 0, 60, 500, p)
	assert.False(t, res.In)
	assert.InDelta(t, 40, res.RelativeAngle, 0.1)
}

func TestPointInConeRejectsOutsideRange(t *testing.T) {
	apex := Point{Lat: 46.8, Lng: -71.2}

	p := Destination(apex, 0, 600)
	res := PointInCone(apex, 0, 60, 500, p)
	assert.False(t, res.In)
}

func TestPointInConeApexIsInside(t *testing.T) {
	apex := Point{Lat: 46.8, Lng: -71.2}
	res := PointInCone(apex, 0, 60, 500, apex)
	assert.True(t, res.In)
	assert.Zero(t, res.DistanceM)
}

func TestPointInConeAcrossAntimeridian(t *testing.T) {
	// Cone pointing east across the 180 meridian.
	apex := Point{Lat: 0, Lng: 179.999}
	p := Destination(apex, 90, 300)
	require.Less(t, p.Lng, 0.0, "destination should wrap past the antimeridian")

	res := PointInCone(apex, 90, 60, 500, p)
	assert.True(t, res.In)
	assert.True(t, math.Abs(res.RelativeAngle) < 1)
}
