package route

// regionCountries lists the ISO country codes belonging to each shipping
// region, ported from the source's REGION_PREFIXES table. US is split
// east/west by a longitude filter rather than a country list.
var regionCountries = map[string][]string{
	"US_EAST": {"US"},
	"US_WEST": {"US"},
	"CANADA":  {"CA"},
	"EU":      {"GB", "DE", "NL", "BE", "FR", "ES", "IT", "PT", "PL", "SE", "NO", "DK", "FI", "IE"},
	"MED":     {"ES", "IT", "GR", "TR", "HR", "SI", "MT", "CY"},
	"CHINA":   {"CN", "HK"},
	"JAPAN":   {"JP"},
	"KOREA":   {"KR"},
	"ASIA":    {"CN", "JP", "KR", "TW", "HK", "SG", "MY", "TH", "VN", "ID", "PH"},
	"INDIA":   {"IN", "BD", "LK", "PK"},
	"MENA":    {"AE", "SA", "EG", "IL", "TR", "JO", "OM", "QA", "KW", "BH"},
	"OCEANIA": {"AU", "NZ"},
	"ATLANTIC": {"BR", "AR", "CL", "CO", "VE", "PE", "EC"},
	"AFRICA":  {"ZA", "KE", "NG", "GH", "TZ", "MA", "DZ", "TN"},
}

// countryToRegions is the inverse of regionCountries, built once at
// package init. A country can map to more than one region (e.g. US,
// resolved further by longitude; ES and IT which are both EU and MED).
var countryToRegions = func() map[string][]string {
	m := map[string][]string{}
	for _, region := range regionOrder {
		for _, country := range regionCountries[region] {
			m[country] = append(m[country], region)
		}
	}
	return m
}()

// regionOrder fixes iteration order so the first-matching-region
// behavior for ambiguous countries (ES, IT) is deterministic and matches
// the source's dict insertion order.
var regionOrder = []string{
	"US_EAST", "US_WEST", "CANADA", "EU", "MED", "CHINA", "JAPAN", "KOREA",
	"ASIA", "INDIA", "MENA", "OCEANIA", "ATLANTIC", "AFRICA",
}

// TerminalRegion classifies a terminal by the two-letter country prefix
// of its name, splitting the US into US_EAST/US_WEST by centroid
// longitude (east of -100 is US_EAST).
func TerminalRegion(name string, centroidLon float64) string {
	country := ""
	if len(name) >= 2 {
		country = name[:2]
	}

	regions, ok := countryToRegions[country]
	if !ok {
		return "UNKNOWN"
	}
	if len(regions) == 1 {
		return regions[0]
	}

	if country == "US" {
		for _, region := range regions {
			switch region {
			case "US_EAST":
				if centroidLon > -100 {
					return region
				}
			case "US_WEST":
				if centroidLon <= -100 {
					return region
				}
			}
		}
	}

	return regions[0]
}
