package route

import "github.com/roieman/container-sim/internal/domain"

// bbox is a (minLon, minLat, maxLon, maxLat) bounding box. wrapsDateline
// marks boxes whose maxLon < minLon, which span across 180E/W.
type bbox struct {
	minLon, minLat, maxLon, maxLat float64
	wrapsDateline                  bool
}

// waterRegions are coastal/open-water bounding boxes used only to decide
// where to snap a waypoint that lands on one of landMasses below; they
// are not an exhaustive map of the oceans.
var waterRegions = map[string]bbox{
	"north_atlantic":      {-80, 0, 0, 65, false},
	"south_atlantic":      {-70, -60, 20, 0, false},
	"north_pacific":       {100, 0, -100, 65, true},
	"south_pacific":       {140, -60, -70, 0, true},
	"indian_ocean":        {20, -60, 120, 30, false},
	"mediterranean":       {-6, 30, 42, 47, false},
	"red_sea":             {32, 12, 44, 30, false},
	"arabian_sea":         {45, 5, 78, 26, false},
	"bay_of_bengal":       {78, 5, 100, 23, false},
	"south_china_sea":     {100, 0, 122, 25, false},
	"east_china_sea":      {117, 23, 132, 35, false},
	"sea_of_japan":        {127, 33, 142, 52, false},
	"caribbean":           {-90, 8, -60, 28, false},
	"gulf_of_mexico":      {-98, 18, -80, 31, false},
	"north_sea":           {-5, 50, 10, 62, false},
	"baltic_sea":          {9, 53, 30, 66, false},
	"persian_gulf":        {47, 23, 57, 31, false},
	"gulf_of_aden":        {43, 10, 52, 16, false},
	"malacca_strait":      {95, -1, 105, 8, false},
	"english_channel":     {-6, 48, 2, 52, false},
	"suez_canal_region":   {31, 29, 35, 32, false},
	"panama_canal_region": {-82, 7, -77, 11, false},
}

// waterRegionOrder fixes iteration order to match the source's dict
// insertion order, since nearest-region selection breaks ties by order
// when distances are equal.
var waterRegionOrder = []string{
	"north_atlantic", "south_atlantic", "north_pacific", "south_pacific",
	"indian_ocean", "mediterranean", "red_sea", "arabian_sea", "bay_of_bengal",
	"south_china_sea", "east_china_sea", "sea_of_japan", "caribbean",
	"gulf_of_mexico", "north_sea", "baltic_sea", "persian_gulf", "gulf_of_aden",
	"malacca_strait", "english_channel", "suez_canal_region", "panama_canal_region",
}

// landMasses are coarse "clearly on land" bounding boxes; a coastal
// tolerance is applied on top of these in IsClearlyOnLand so points near
// a shoreline are never flagged.
var landMasses = map[string][]bbox{
	"north_america": {{-170, 25, -52, 85, false}},
	"south_america": {{-82, -56, -34, 12, false}},
	"europe":        {{-10, 36, 40, 72, false}},
	"africa":        {{-18, -35, 52, 37, false}},
	"asia": {
		{25, 1, 180, 78, false},
		{-180, 50, -170, 72, false},
	},
	"australia": {{113, -45, 154, -10, false}},
	"india":     {{68, 6, 98, 38, false}},
}

const coastalToleranceDeg = 2.0

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func (b bbox) contains(lon, lat float64) bool {
	var lonMatch bool
	if b.wrapsDateline {
		lonMatch = lon >= b.minLon || lon <= b.maxLon
	} else {
		lonMatch = lon >= b.minLon && lon <= b.maxLon
	}
	return lonMatch && lat >= b.minLat && lat <= b.maxLat
}

// IsClearlyOnLand reports whether (lon, lat) falls within a land mass
// bounding box, shrunk inward by coastalToleranceDeg, and is not also
// inside a known water region (straits and canals cut through these
// coarse land boxes). Mirrors is_point_clearly_on_land.
func IsClearlyOnLand(lon, lat float64) bool {
	lon = normalizeLon(lon)

	for _, boxes := range landMasses {
		for _, b := range boxes {
			shrunk := bbox{
				minLon: b.minLon + coastalToleranceDeg,
				minLat: b.minLat + coastalToleranceDeg,
				maxLon: b.maxLon - coastalToleranceDeg,
				maxLat: b.maxLat - coastalToleranceDeg,
			}
			if lon < shrunk.minLon || lon > shrunk.maxLon || lat < shrunk.minLat || lat > shrunk.maxLat {
				continue
			}

			inWaterRegion := false
			for _, name := range waterRegionOrder {
				wr := waterRegions[name]
				if lon >= wr.minLon && lon <= wr.maxLon && lat >= wr.minLat && lat <= wr.maxLat {
					inWaterRegion = true
					break
				}
			}
			if !inWaterRegion {
				return true
			}
		}
	}
	return false
}

// NearestWaterPoint clamps (lon, lat) into the bounds of whichever water
// region's center is closest, per get_nearest_water_point. Distance is
// planar, not haversine — this is a nudge, not real routing.
func NearestWaterPoint(lon, lat float64) domain.Point {
	var best bbox
	bestDist := -1.0

	for _, name := range waterRegionOrder {
		b := waterRegions[name]
		centerLon := (b.minLon + b.maxLon) / 2
		centerLat := (b.minLat + b.maxLat) / 2
		dLon := lon - centerLon
		dLat := lat - centerLat
		dist := dLon*dLon + dLat*dLat
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = b
		}
	}

	clampedLon := clamp(lon, best.minLon, best.maxLon)
	clampedLat := clamp(lat, best.minLat, best.maxLat)
	return domain.Point{Lon: clampedLon, Lat: clampedLat}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
