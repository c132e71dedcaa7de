package route

import (
	"math"
	"math/rand"
	"strings"

	"github.com/roieman/container-sim/internal/domain"
)

const (
	landMaxDeviationKm = 5.0
	railMaxDeviationKm = 2.0
	oceanMaxDeviationKm = 50.0

	landWaypointCount = 10
	railWaypointCount = 15
	oceanWaypointsPerSegment = 10
)

// GeofenceLister lists the geofences of one type. Generator does not use
// it: SelectJourney takes its terminal, depot and rail-ramp pools as
// slices, and geofence.Store's ByType (which takes a context and returns
// an error) does not satisfy it.
type GeofenceLister interface {
	ByType(typeID domain.GeofenceType) []*domain.Geofence
}

// Generator produces waypoint lists and selects journeys. It holds its
// own random source so a fixed seed makes every output reproducible.
type Generator struct {
	rng *rand.Rand

	railRoutingProbability float64
	railEnabledCountries   map[string]bool
}

// NewGenerator builds a Generator. railEnabledCountries should be the
// two-letter codes from sim.rail_enabled_countries.
func NewGenerator(rng *rand.Rand, railRoutingProbability float64, railEnabledCountries []string) *Generator {
	enabled := make(map[string]bool, len(railEnabledCountries))
	for _, c := range railEnabledCountries {
		enabled[strings.ToUpper(c)] = true
	}
	return &Generator{
		rng:                    rng,
		railRoutingProbability: railRoutingProbability,
		railEnabledCountries:   enabled,
	}
}

// LandRoute linearly interpolates between two centroids with
// landWaypointCount+1 samples, each intermediate point perturbed by a
// ~5km Gaussian offset. Endpoints are exact.
func (g *Generator) LandRoute(origin, destination *domain.Geofence) []domain.Point {
	return g.interpolated(origin.Centroid(), destination.Centroid(), landWaypointCount, landMaxDeviationKm)
}

// RailRoute is the same shape as LandRoute with a tighter ~2km deviation,
// since tracks follow fixed alignments.
func (g *Generator) RailRoute(origin, destination *domain.Geofence) []domain.Point {
	return g.interpolated(origin.Centroid(), destination.Centroid(), railWaypointCount, railMaxDeviationKm)
}

func (g *Generator) interpolated(origin, dest domain.Point, numWaypoints int, maxDeviationKm float64) []domain.Point {
	points := make([]domain.Point, 0, numWaypoints+1)
	for i := 0; i <= numWaypoints; i++ {
		t := float64(i) / float64(numWaypoints)
		points = append(points, domain.Point{
			Lon: origin.Lon + t*(dest.Lon-origin.Lon),
			Lat: origin.Lat + t*(dest.Lat-origin.Lat),
		})
	}
	return g.addVariation(points, maxDeviationKm)
}

// addVariation perturbs every interior point by a Gaussian-distributed
// offset converted from kilometers to degrees at that point's latitude.
// Endpoints are never touched.
func (g *Generator) addVariation(waypoints []domain.Point, maxDeviationKm float64) []domain.Point {
	if len(waypoints) <= 2 {
		return waypoints
	}

	result := make([]domain.Point, len(waypoints))
	result[0] = waypoints[0]
	result[len(waypoints)-1] = waypoints[len(waypoints)-1]

	for i := 1; i < len(waypoints)-1; i++ {
		p := waypoints[i]

		kmToLat := 1.0 / 111.0
		kmToLon := 0.0
		if p.Lat != 90 {
			kmToLon = 1.0 / (111.0 * math.Cos(radians(p.Lat)))
		}

		deviation := g.rng.NormFloat64() * (maxDeviationKm / 3)
		angle := g.rng.Float64() * 2 * math.Pi

		lonOffset := deviation * kmToLon * math.Cos(angle)
		latOffset := deviation * kmToLat * math.Sin(angle)

		result[i] = domain.Point{Lon: p.Lon + lonOffset, Lat: p.Lat + latOffset}
	}

	return result
}

// OceanRoute builds a route from origin to destination through whichever
// chokepoints their region pair requires, validates it against known
// land masses, and applies a final ~50km perturbation pass.
func (g *Generator) OceanRoute(origin, destination *domain.Geofence) []domain.Point {
	originCentroid := origin.Centroid()
	destCentroid := destination.Centroid()

	originRegion := TerminalRegion(origin.Name, originCentroid.Lon)
	destRegion := TerminalRegion(destination.Name, destCentroid.Lon)

	keys := routeChokepointKeys(originRegion, destRegion)

	waypoints := g.buildChokepointRoute(originCentroid, destCentroid, keys)
	waypoints = validateOceanRoute(waypoints)
	waypoints = g.addVariation(waypoints, oceanMaxDeviationKm)

	return waypoints
}

func (g *Generator) buildChokepointRoute(origin, destination domain.Point, keys []string) []domain.Point {
	if len(keys) == 0 {
		return greatCirclePoints(origin, destination, oceanWaypointsPerSegment*2)
	}

	var all []domain.Point
	current := origin

	for _, key := range keys {
		cp, ok := chokepoints[key]
		if !ok || len(cp.Waypoints) == 0 {
			continue
		}

		segment := greatCirclePoints(current, cp.Waypoints[0], oceanWaypointsPerSegment)
		all = append(all, segment[:len(segment)-1]...)
		all = append(all, cp.Waypoints...)

		current = cp.Waypoints[len(cp.Waypoints)-1]
	}

	final := greatCirclePoints(current, destination, oceanWaypointsPerSegment)
	all = append(all, final...)

	return all
}

// validateOceanRoute snaps any interior waypoint that falls clearly on
// land to the nearest water region's bounds. Endpoints are never
// modified.
func validateOceanRoute(waypoints []domain.Point) []domain.Point {
	if len(waypoints) <= 2 {
		return waypoints
	}

	validated := make([]domain.Point, len(waypoints))
	validated[0] = waypoints[0]
	validated[len(waypoints)-1] = waypoints[len(waypoints)-1]

	for i := 1; i < len(waypoints)-1; i++ {
		p := waypoints[i]
		if IsClearlyOnLand(p.Lon, p.Lat) {
			validated[i] = NearestWaterPoint(p.Lon, p.Lat)
		} else {
			validated[i] = p
		}
	}

	return validated
}

// Journey holds the selected endpoints for one depot-to-depot leg,
// mirroring select_journey's output.
type Journey = domain.Journey

// SelectJourney picks random origin/destination terminals (distinct
// where possible), depots biased toward the terminal's country prefix,
// and probabilistically a same-country rail ramp on either side.
func (g *Generator) SelectJourney(terminals, depots, railRamps []*domain.Geofence) domain.Journey {
	originTerminal := g.randomTerminal(terminals, "")
	destTerminal := originTerminal
	if len(terminals) > 1 {
		destTerminal = g.randomTerminal(terminals, originTerminal.Name)
	}

	originDepot := g.nearCountry(depots, originTerminal.Name)
	destDepot := g.nearCountry(depots, destTerminal.Name)

	j := domain.Journey{
		OriginDepot:         originDepot,
		OriginTerminal:      originTerminal,
		DestinationTerminal: destTerminal,
		DestinationDepot:    destDepot,
	}

	if g.shouldUseRail(originDepot, originTerminal, railRamps) {
		if ramp := g.nearCountry(railRamps, originTerminal.Name); ramp != nil {
			j.OriginRamp = ramp
			j.UseRail = true
		}
	}
	if g.shouldUseRail(destDepot, destTerminal, railRamps) {
		if ramp := g.nearCountry(railRamps, destTerminal.Name); ramp != nil {
			j.DestinationRamp = ramp
			j.UseRail = true
		}
	}

	return j
}

func (g *Generator) randomTerminal(terminals []*domain.Geofence, exclude string) *domain.Geofence {
	candidates := terminals
	if exclude != "" {
		candidates = make([]*domain.Geofence, 0, len(terminals))
		for _, t := range terminals {
			if t.Name != exclude {
				candidates = append(candidates, t)
			}
		}
		if len(candidates) == 0 {
			candidates = terminals
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[g.rng.Intn(len(candidates))]
}

// nearCountry picks a random geofence from pool sharing anchorName's
// two-letter country prefix, falling back to any geofence in pool.
func (g *Generator) nearCountry(pool []*domain.Geofence, anchorName string) *domain.Geofence {
	if len(pool) == 0 {
		return nil
	}
	country := ""
	if len(anchorName) >= 2 {
		country = anchorName[:2]
	}

	var sameCountry []*domain.Geofence
	for _, gf := range pool {
		if strings.HasPrefix(gf.Name, country) {
			sameCountry = append(sameCountry, gf)
		}
	}
	if len(sameCountry) > 0 {
		return sameCountry[g.rng.Intn(len(sameCountry))]
	}
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) shouldUseRail(depot, terminal *domain.Geofence, railRamps []*domain.Geofence) bool {
	if depot == nil || terminal == nil {
		return false
	}
	country := ""
	if len(terminal.Name) >= 2 {
		country = terminal.Name[:2]
	}
	if !g.railEnabledCountries[country] {
		return false
	}

	hasCountryRamp := false
	for _, r := range railRamps {
		if strings.HasPrefix(r.Name, country) {
			hasCountryRamp = true
			break
		}
	}
	if !hasCountryRamp {
		return false
	}

	return g.rng.Float64() < g.railRoutingProbability
}
