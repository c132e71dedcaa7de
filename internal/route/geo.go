// Package route generates waypoint lists for land, rail, and ocean
// segments (spec.md §4.2).
package route

import (
	"math"

	"github.com/roieman/container-sim/internal/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle (haversine) distance between two
// points in kilometers.
func DistanceKm(a, b domain.Point) float64 {
	lat1, lon1 := radians(a.Lat), radians(a.Lon)
	lat2, lon2 := radians(b.Lat), radians(b.Lon)

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(h))

	return earthRadiusKm * c
}

// LengthKm sums the haversine distance across consecutive waypoints.
func LengthKm(waypoints []domain.Point) float64 {
	if len(waypoints) < 2 {
		return 0
	}
	var total float64
	for i := 0; i < len(waypoints)-1; i++ {
		total += DistanceKm(waypoints[i], waypoints[i+1])
	}
	return total
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// greatCirclePoints samples numPoints+1 points along the great circle
// arc between a and b using the standard spherical interpolation
// formula (slerp over unit vectors).
func greatCirclePoints(a, b domain.Point, numPoints int) []domain.Point {
	lat1, lon1 := radians(a.Lat), radians(a.Lon)
	lat2, lon2 := radians(b.Lat), radians(b.Lon)

	d := 2 * math.Asin(math.Sqrt(
		math.Pow(math.Sin((lat2-lat1)/2), 2)+
			math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin((lon2-lon1)/2), 2),
	))

	points := make([]domain.Point, 0, numPoints+1)
	for i := 0; i <= numPoints; i++ {
		f := float64(i) / float64(numPoints)

		var A, B float64
		if d > 0 {
			A = math.Sin((1-f)*d) / math.Sin(d)
			B = math.Sin(f*d) / math.Sin(d)
		} else {
			A = 1 - f
			B = f
		}

		x := A*math.Cos(lat1)*math.Cos(lon1) + B*math.Cos(lat2)*math.Cos(lon2)
		y := A*math.Cos(lat1)*math.Sin(lon1) + B*math.Cos(lat2)*math.Sin(lon2)
		z := A*math.Sin(lat1) + B*math.Sin(lat2)

		lat := math.Atan2(z, math.Sqrt(x*x+y*y))
		lon := math.Atan2(y, x)

		points = append(points, domain.Point{Lon: degrees(lon), Lat: degrees(lat)})
	}
	return points
}
