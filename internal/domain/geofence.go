// Package domain holds the simulator's core value types: geofences,
// containers, journeys, and the events the scheduler emits for them.
package domain

import "time"

// GeofenceType classifies a geofence polygon.
type GeofenceType string

const (
	GeofenceTerminal GeofenceType = "Terminal"
	GeofenceDepot    GeofenceType = "Depot"
	GeofenceRailRamp GeofenceType = "RailRamp"
)

// Point is a WGS-84 coordinate, longitude first to match GeoJSON ordering.
type Point struct {
	Lon float64
	Lat float64
}

// Geofence is a named polygon feature. The ring is closed (first point
// equals last) and stored in lon/lat order.
type Geofence struct {
	ID          int64
	Name        string
	TypeID      GeofenceType
	UNLOCode    string
	SMDGCode    string
	Description string
	Ring        []Point
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CountryCode returns the two-letter ISO prefix used for region
// classification and event_location_country: the UN/LOCODE prefix when
// present, otherwise the geofence name's prefix.
func (g *Geofence) CountryCode() string {
	if len(g.UNLOCode) >= 2 {
		return g.UNLOCode[:2]
	}
	if len(g.Name) >= 2 {
		return g.Name[:2]
	}
	return ""
}

// Centroid returns the arithmetic mean of the ring's vertices, dropping
// the closing duplicate vertex if present. Defined for every valid
// polygon; computed in Go rather than pushed to PostGIS so it matches the
// spec's "arithmetic mean of ring vertices" exactly rather than an
// area-weighted geometric centroid.
func (g *Geofence) Centroid() Point {
	pts := g.Ring
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) == 0 {
		return Point{}
	}
	var sumLon, sumLat float64
	for _, p := range pts {
		sumLon += p.Lon
		sumLat += p.Lat
	}
	n := float64(len(pts))
	return Point{Lon: sumLon / n, Lat: sumLat / n}
}
