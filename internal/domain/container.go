package domain

import "time"

// State is a position in the container lifecycle state machine (§4.4).
type State string

const (
	AtOriginDepot    State = "AT_ORIGIN_DEPOT"
	InTransitToRamp  State = "IN_TRANSIT_TO_RAIL_RAMP"
	AtOriginRamp     State = "AT_ORIGIN_RAIL_RAMP"
	InTransitRail    State = "IN_TRANSIT_RAIL"
	InTransitToTerm  State = "IN_TRANSIT_TO_TERMINAL"
	AtOriginTerminal State = "AT_ORIGIN_TERMINAL"
	LoadedOnVessel   State = "LOADED_ON_VESSEL"
	InTransitOcean   State = "IN_TRANSIT_OCEAN"
	AtDestTerminal   State = "AT_DESTINATION_TERMINAL"
	InTransitFromTerm State = "IN_TRANSIT_FROM_TERMINAL"
	AtDestRamp       State = "AT_DESTINATION_RAIL_RAMP"
	InTransitRailToDepot State = "IN_TRANSIT_RAIL_TO_DEPOT"
	InTransitToDepot State = "IN_TRANSIT_TO_DEPOT"
	AtDestDepot      State = "AT_DESTINATION_DEPOT"
)

// SizeClass is the container's ISO size/type classification.
type SizeClass string

const (
	Size20ft SizeClass = "20ft"
	Size40ft SizeClass = "40ft"
	Size40HC SizeClass = "40ft HC"
	Size45HC SizeClass = "45ft HC"
)

// SizeClasses lists every valid size class, used by bootstrap to pick
// one uniformly at random.
var SizeClasses = []SizeClass{Size20ft, Size40ft, Size40HC, Size45HC}

// CargoClass broadly categorizes the lading, matching the fixed set
// carried by the original source's container metadata.
type CargoClass string

const (
	CargoGeneral     CargoClass = "General Cargo"
	CargoElectronics CargoClass = "Electronics"
	CargoTextiles    CargoClass = "Textiles"
	CargoMachinery   CargoClass = "Machinery"
	CargoFood        CargoClass = "Food Products"
	CargoChemicals   CargoClass = "Chemicals"
	CargoAutoParts   CargoClass = "Auto Parts"
	CargoFurniture   CargoClass = "Furniture"
)

// CargoClasses lists every valid cargo class, used by bootstrap to pick
// one uniformly at random.
var CargoClasses = []CargoClass{
	CargoGeneral, CargoElectronics, CargoTextiles, CargoMachinery,
	CargoFood, CargoChemicals, CargoAutoParts, CargoFurniture,
}

// Metadata holds the container's static identity and cargo attributes,
// set once at bootstrap and never mutated by the scheduler.
type Metadata struct {
	SizeClass    SizeClass
	Refrigerated bool
	CargoClass   CargoClass
}

// Journey is the set of endpoint geofences for one depot-to-depot leg.
// OriginRamp/DestinationRamp are only set when UseRail is true.
type Journey struct {
	OriginDepot        *Geofence
	OriginRamp         *Geofence
	OriginTerminal     *Geofence
	DestinationTerminal *Geofence
	DestinationRamp    *Geofence
	DestinationDepot   *Geofence
	UseRail            bool
}

// Valid reports whether the four mandatory endpoints are set. A container
// is expected to satisfy this in every state other than the brief
// post-creation moment before bootstrap assigns a journey.
func (j *Journey) Valid() bool {
	return j != nil &&
		j.OriginDepot != nil && j.OriginTerminal != nil &&
		j.DestinationTerminal != nil && j.DestinationDepot != nil
}

// Container is a trackable asset driven by the scheduler.
type Container struct {
	ContainerID string // 11-char shipping-line code, e.g. ZIMU3170479
	TrackerID   string // "A" + 7 digits
	AssetID     int

	Metadata Metadata

	Lat, Lon        float64
	CurrentGeofence string // empty when not inside any geofence

	Journey Journey

	State    State
	IsMoving bool
	DoorOpen bool

	Route      []Point
	RouteIndex int

	ReportSlot      int
	JourneyStartTime time.Time
	LastEventTime    time.Time
}

// AtWaypoint returns the route waypoint at RouteIndex, or the container's
// current position when RouteIndex lies outside the route.
func (c *Container) AtWaypoint() Point {
	if c.RouteIndex < 0 || c.RouteIndex >= len(c.Route) {
		return Point{Lon: c.Lon, Lat: c.Lat}
	}
	return c.Route[c.RouteIndex]
}
