// Package eventmodel constructs well-typed telemetry events from
// container state, per spec.md §4.3.
package eventmodel

import (
	"math/rand"
	"time"

	"github.com/roieman/container-sim/internal/domain"
)

const (
	reportDelayMinSeconds = 30
	reportDelayMaxSeconds = 600

	defaultDoorEventProbability = 0.30

	doorOpenOffsetMinSeconds = 30
	doorOpenOffsetMaxSeconds = 300
	doorCloseOffsetMinSeconds = 60
	doorCloseOffsetMaxSeconds = 1800
)

// Emitter constructs events using an injected random source so output is
// reproducible under a fixed seed.
type Emitter struct {
	rng *rand.Rand

	doorEventProbability float64
}

// NewEmitter returns an Emitter. doorEventProbability overrides the
// spec's 0.30 default when positive; pass 0 to use the default.
func NewEmitter(rng *rand.Rand, doorEventProbability float64) *Emitter {
	p := doorEventProbability
	if p <= 0 {
		p = defaultDoorEventProbability
	}
	return &Emitter{rng: rng, doorEventProbability: p}
}

func (e *Emitter) reportDelay() time.Duration {
	span := reportDelayMaxSeconds - reportDelayMinSeconds
	secs := reportDelayMinSeconds + e.rng.Intn(span+1)
	return time.Duration(secs) * time.Second
}

// locationContext resolves the location name/country used on every event:
// the geofence's name/country code when gf is non-nil, otherwise the
// "In Transit" sentinel and an empty country.
func locationContext(gf *domain.Geofence) (name, country string) {
	if gf == nil {
		return domain.InTransitLocation, ""
	}
	return gf.Name, gf.CountryCode()
}

func (e *Emitter) base(c *domain.Container, t time.Time, et domain.EventType, gf *domain.Geofence) domain.IoTEvent {
	name, country := locationContext(gf)
	return domain.IoTEvent{
		TrackerID:       c.TrackerID,
		ContainerID:     c.ContainerID,
		AssetID:         c.AssetID,
		EventTime:       t,
		ReportTime:      t.Add(e.reportDelay()),
		Lat:             c.Lat,
		Lon:             c.Lon,
		EventType:       et,
		LocationName:    name,
		LocationCountry: country,
	}
}

// LocationUpdate builds a LocationUpdate event at the container's current
// position.
func (e *Emitter) LocationUpdate(c *domain.Container, t time.Time, gf *domain.Geofence) domain.IoTEvent {
	return e.base(c, t, domain.EventLocationUpdate, gf)
}

// MotionStart builds an InMotion event.
func (e *Emitter) MotionStart(c *domain.Container, t time.Time, gf *domain.Geofence) domain.IoTEvent {
	return e.base(c, t, domain.EventInMotion, gf)
}

// MotionStop builds a MotionStop event.
func (e *Emitter) MotionStop(c *domain.Container, t time.Time, gf *domain.Geofence) domain.IoTEvent {
	return e.base(c, t, domain.EventMotionStop, gf)
}

// DoorOpen builds a DoorOpened event at an arbitrary time offset.
func (e *Emitter) DoorOpen(c *domain.Container, t time.Time, gf *domain.Geofence) domain.IoTEvent {
	return e.base(c, t, domain.EventDoorOpened, gf)
}

// DoorClose builds a DoorClosed event at an arbitrary time offset.
func (e *Emitter) DoorClose(c *domain.Container, t time.Time, gf *domain.Geofence) domain.IoTEvent {
	return e.base(c, t, domain.EventDoorClosed, gf)
}

// GateIn builds a GateEvent for entry into gf.
func (e *Emitter) GateIn(c *domain.Container, t time.Time, gf *domain.Geofence) domain.GateEvent {
	return e.gateEvent(c, t, domain.EventGateIn, gf)
}

// GateOut builds a GateEvent for exit from gf.
func (e *Emitter) GateOut(c *domain.Container, t time.Time, gf *domain.Geofence) domain.GateEvent {
	return e.gateEvent(c, t, domain.EventGateOut, gf)
}

func (e *Emitter) gateEvent(c *domain.Container, t time.Time, et domain.EventType, gf *domain.Geofence) domain.GateEvent {
	ge := domain.GateEvent{IoTEvent: e.base(c, t, et, gf)}
	if gf != nil {
		ge.GeofenceName = gf.Name
		ge.GeofenceType = gf.TypeID
		ge.GeofenceID = gf.ID
	}
	return ge
}

// StopEvents emits a MotionStop event and, with probability
// doorEventProbability, a DoorOpened event offset by 30-300s and a
// matching DoorClosed event offset by a further 60-1800s. All three share
// gf as their geofence context.
func (e *Emitter) StopEvents(c *domain.Container, t time.Time, gf *domain.Geofence) []domain.IoTEvent {
	events := []domain.IoTEvent{e.MotionStop(c, t, gf)}

	if e.rng.Float64() >= e.doorEventProbability {
		return events
	}

	openOffset := doorOpenOffsetMinSeconds + e.rng.Intn(doorOpenOffsetMaxSeconds-doorOpenOffsetMinSeconds+1)
	openAt := t.Add(time.Duration(openOffset) * time.Second)
	events = append(events, e.DoorOpen(c, openAt, gf))

	closeOffset := doorCloseOffsetMinSeconds + e.rng.Intn(doorCloseOffsetMaxSeconds-doorCloseOffsetMinSeconds+1)
	closeAt := openAt.Add(time.Duration(closeOffset) * time.Second)
	events = append(events, e.DoorClose(c, closeAt, gf))

	return events
}
