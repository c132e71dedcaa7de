// Package container implements the container lifecycle state machine
// (spec.md §4.4). Transitions are validated against a fixed table; an
// invalid transition is a silent no-op, never an error.
package container

import "github.com/roieman/container-sim/internal/domain"

// transitions maps each state to the set of states reachable from it in
// one step. It holds both the plain and the rail-augmented edges;
// NextDepartureState picks between them for a given journey.
var transitions = map[domain.State][]domain.State{
	domain.AtOriginDepot:    {domain.InTransitToTerm, domain.InTransitToRamp},
	domain.InTransitToRamp:  {domain.AtOriginRamp},
	domain.AtOriginRamp:     {domain.InTransitRail},
	domain.InTransitRail:    {domain.InTransitToTerm},
	domain.InTransitToTerm:  {domain.AtOriginTerminal},
	domain.AtOriginTerminal: {domain.LoadedOnVessel},
	domain.LoadedOnVessel:   {domain.InTransitOcean},
	domain.InTransitOcean:   {domain.AtDestTerminal},
	domain.AtDestTerminal:   {domain.InTransitToDepot, domain.InTransitFromTerm},
	domain.InTransitFromTerm: {domain.AtDestRamp},
	domain.AtDestRamp:       {domain.InTransitRailToDepot},
	domain.InTransitRailToDepot: {domain.InTransitToDepot},
	domain.InTransitToDepot: {domain.AtDestDepot},
	domain.AtDestDepot:      {domain.AtOriginDepot},
}

// CanTransition reports whether from -> to is a valid edge in the table.
func CanTransition(from, to domain.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextDepartureState picks the single outbound edge to take when leaving
// a stationary state, given whether each leg of the journey has a rail
// ramp set. useOriginRail gates the AtOriginDepot departure and
// useDestRail gates the AtDestTerminal departure — a journey can use rail
// on one side only, so the two are independent, matching the original's
// per-leg "use_rail and origin_rail_ramp" / "use_rail and
// destination_rail_ramp" checks. Returns "" when the state has no
// outbound edge in this context (callers should treat that as staying
// put).
func NextDepartureState(current domain.State, useOriginRail, useDestRail bool) domain.State {
	switch current {
	case domain.AtOriginDepot:
		if useOriginRail {
			return domain.InTransitToRamp
		}
		return domain.InTransitToTerm
	case domain.AtDestTerminal:
		if useDestRail {
			return domain.InTransitFromTerm
		}
		return domain.InTransitToDepot
	case domain.AtOriginRamp:
		return domain.InTransitRail
	case domain.AtOriginTerminal:
		return domain.LoadedOnVessel
	case domain.LoadedOnVessel:
		return domain.InTransitOcean
	case domain.InTransitOcean:
		return domain.AtDestTerminal
	case domain.InTransitToRamp:
		return domain.AtOriginRamp
	case domain.InTransitRail:
		return domain.InTransitToTerm
	case domain.InTransitToTerm:
		return domain.AtOriginTerminal
	case domain.InTransitFromTerm:
		return domain.AtDestRamp
	case domain.AtDestRamp:
		return domain.InTransitRailToDepot
	case domain.InTransitRailToDepot:
		return domain.InTransitToDepot
	case domain.InTransitToDepot:
		return domain.AtDestDepot
	case domain.AtDestDepot:
		return domain.AtOriginDepot
	default:
		return ""
	}
}

// IsStationary reports whether a container in this state is parked
// (as opposed to mid-route).
func IsStationary(s domain.State) bool {
	switch s {
	case domain.AtOriginDepot, domain.AtOriginRamp, domain.AtOriginTerminal,
		domain.AtDestTerminal, domain.AtDestRamp, domain.AtDestDepot:
		return true
	default:
		return false
	}
}

// Advance attempts the single valid transition out of c.State for the
// given rail usage, returning the resulting state. If the target is not
// a valid edge in the table, the current state is returned unchanged —
// the silent no-op mandated by spec.md §4.4 and §7.
func Advance(c *domain.Container) domain.State {
	target := NextDepartureState(c.State, c.Journey.OriginRamp != nil, c.Journey.DestinationRamp != nil)
	if target == "" {
		return c.State
	}
	if !CanTransition(c.State, target) {
		return c.State
	}
	return target
}
