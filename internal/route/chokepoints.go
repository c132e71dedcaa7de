package route

import "github.com/roieman/container-sim/internal/domain"

// Chokepoint is a named strait or canal that ocean routes between
// certain region pairs are forced to pass through.
type Chokepoint struct {
	Name      string
	Waypoints []domain.Point
}

var chokepoints = map[string]Chokepoint{
	"suez": {
		Name:      "Suez Canal",
		Waypoints: []domain.Point{{Lon: 32.37, Lat: 31.23}, {Lon: 32.55, Lat: 30.00}, {Lon: 32.53, Lat: 29.93}},
	},
	"panama": {
		Name:      "Panama Canal",
		Waypoints: []domain.Point{{Lon: -79.92, Lat: 9.38}, {Lon: -79.55, Lat: 8.95}},
	},
	"malacca": {
		Name:      "Strait of Malacca",
		Waypoints: []domain.Point{{Lon: 100.0, Lat: 5.0}, {Lon: 103.5, Lat: 1.2}},
	},
	"gibraltar": {
		Name:      "Strait of Gibraltar",
		Waypoints: []domain.Point{{Lon: -5.6, Lat: 35.95}, {Lon: -5.95, Lat: 35.9}},
	},
	"cape_good_hope": {
		Name:      "Cape of Good Hope",
		Waypoints: []domain.Point{{Lon: 18.47, Lat: -34.36}, {Lon: 20.0, Lat: -35.0}, {Lon: 25.0, Lat: -34.0}},
	},
	"english_channel": {
		Name:      "English Channel",
		Waypoints: []domain.Point{{Lon: -1.5, Lat: 50.0}, {Lon: 1.5, Lat: 51.0}},
	},
	"bab_el_mandeb": {
		Name:      "Bab el-Mandeb Strait",
		Waypoints: []domain.Point{{Lon: 43.3, Lat: 12.6}, {Lon: 43.5, Lat: 12.4}},
	},
	"singapore": {
		Name:      "Singapore Strait",
		Waypoints: []domain.Point{{Lon: 103.8, Lat: 1.25}, {Lon: 104.1, Lat: 1.2}},
	},
	"taiwan": {
		Name:      "Taiwan Strait",
		Waypoints: []domain.Point{{Lon: 119.5, Lat: 24.0}, {Lon: 120.0, Lat: 25.0}},
	},
	"hormuz": {
		Name:      "Strait of Hormuz",
		Waypoints: []domain.Point{{Lon: 56.4, Lat: 26.5}, {Lon: 56.0, Lat: 26.0}},
	},
}

// routeChokepoints maps an ordered (origin_region, dest_region) pair to
// the chokepoint keys a route between them should pass through, in
// order. A pair absent here (in both directions) yields a direct route.
var routeChokepoints = map[[2]string][]string{
	{"ASIA", "EU"}:       {"malacca", "singapore", "bab_el_mandeb", "suez", "gibraltar"},
	{"CHINA", "EU"}:      {"taiwan", "malacca", "singapore", "bab_el_mandeb", "suez", "gibraltar"},
	{"JAPAN", "EU"}:      {"malacca", "singapore", "bab_el_mandeb", "suez", "gibraltar"},
	{"KOREA", "EU"}:      {"malacca", "singapore", "bab_el_mandeb", "suez", "gibraltar"},
	{"ASIA", "US_EAST"}:  {"malacca", "singapore", "bab_el_mandeb", "suez", "gibraltar"},
	{"CHINA", "US_EAST"}: {"taiwan", "malacca", "singapore", "bab_el_mandeb", "suez", "gibraltar"},

	{"ASIA", "US_WEST"}:  {},
	{"CHINA", "US_WEST"}: {},
	{"JAPAN", "US_WEST"}: {},
	{"KOREA", "US_WEST"}: {},

	{"EU", "US_EAST"}:  {"english_channel"},
	{"EU", "US_WEST"}:  {"english_channel", "panama"},
	{"MED", "US_EAST"}: {"gibraltar"},
	{"MED", "US_WEST"}: {"gibraltar", "panama"},

	{"US_EAST", "US_WEST"}: {"panama"},

	{"MENA", "ASIA"}:    {"hormuz", "singapore", "malacca"},
	{"MENA", "EU"}:      {"suez", "gibraltar"},
	{"MENA", "US_EAST"}: {"suez", "gibraltar"},

	{"INDIA", "EU"}:      {"bab_el_mandeb", "suez", "gibraltar"},
	{"INDIA", "US_EAST"}: {"bab_el_mandeb", "suez", "gibraltar"},
	{"INDIA", "ASIA"}:    {"singapore", "malacca"},
	{"INDIA", "CHINA"}:   {"singapore", "malacca"},

	{"OCEANIA", "ASIA"}:    {"singapore"},
	{"OCEANIA", "EU"}:      {"singapore", "malacca", "bab_el_mandeb", "suez", "gibraltar"},
	{"OCEANIA", "US_WEST"}: {},

	{"AFRICA", "EU"}:      {"cape_good_hope", "gibraltar"},
	{"AFRICA", "ASIA"}:    {"cape_good_hope", "singapore"},
	{"AFRICA", "US_EAST"}: {"cape_good_hope"},
}

// routeChokepointKeys returns the chokepoint keys for a route between
// originRegion and destRegion, checking the reverse pair and returning
// its chokepoints in reverse order if the direct pair is absent.
func routeChokepointKeys(originRegion, destRegion string) []string {
	if keys, ok := routeChokepoints[[2]string{originRegion, destRegion}]; ok {
		return keys
	}
	if keys, ok := routeChokepoints[[2]string{destRegion, originRegion}]; ok {
		reversed := make([]string, len(keys))
		for i, k := range keys {
			reversed[len(keys)-1-i] = k
		}
		return reversed
	}
	return nil
}
