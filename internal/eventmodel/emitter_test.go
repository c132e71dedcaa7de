package eventmodel

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roieman/container-sim/internal/domain"
)

func testContainer() *domain.Container {
	return &domain.Container{
		ContainerID: "ZIMU3170479",
		TrackerID:   "A1234567",
		AssetID:     31337,
		Lat:         33.7,
		Lon:         -118.2,
	}
}

func TestLocationUpdate_NoGeofence_UsesInTransitSentinel(t *testing.T) {
	e := NewEmitter(rand.New(rand.NewSource(1)), 0)
	c := testContainer()

	ev := e.LocationUpdate(c, time.Unix(0, 0), nil)

	assert.Equal(t, domain.EventLocationUpdate, ev.EventType)
	assert.Equal(t, domain.InTransitLocation, ev.LocationName)
	assert.Empty(t, ev.LocationCountry)
}

func TestLocationUpdate_WithGeofence_UsesNameAndCountry(t *testing.T) {
	e := NewEmitter(rand.New(rand.NewSource(1)), 0)
	c := testContainer()
	gf := &domain.Geofence{Name: "USLAX-APM", UNLOCode: "USLAX"}

	ev := e.LocationUpdate(c, time.Unix(0, 0), gf)

	assert.Equal(t, "USLAX-APM", ev.LocationName)
	assert.Equal(t, "US", ev.LocationCountry)
}

func TestReportDelay_WithinSpecRange(t *testing.T) {
	e := NewEmitter(rand.New(rand.NewSource(42)), 0)
	c := testContainer()

	for i := 0; i < 1000; i++ {
		ev := e.LocationUpdate(c, time.Unix(0, 0), nil)
		delay := ev.ReportTime.Sub(ev.EventTime)
		require.GreaterOrEqual(t, delay, 30*time.Second)
		require.LessOrEqual(t, delay, 600*time.Second)
	}
}

func TestReportDelay_MeanNearMidpoint(t *testing.T) {
	e := NewEmitter(rand.New(rand.NewSource(7)), 0)
	c := testContainer()

	var total time.Duration
	const n = 1000
	for i := 0; i < n; i++ {
		ev := e.LocationUpdate(c, time.Unix(0, 0), nil)
		total += ev.ReportTime.Sub(ev.EventTime)
	}
	meanSeconds := total.Seconds() / n

	assert.InDelta(t, 315, meanSeconds, 65)
}

func TestStopEvents_AlwaysEmitsMotionStop(t *testing.T) {
	e := NewEmitter(rand.New(rand.NewSource(1)), 0) // 0 selects the default door probability; MotionStop comes first either way
	c := testContainer()
	gf := &domain.Geofence{Name: "USLAX-APM"}

	events := e.StopEvents(c, time.Unix(0, 0), gf)

	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventMotionStop, events[0].EventType)
}

func TestStopEvents_DoorEventsShareGeofenceContext(t *testing.T) {
	// probability 1.0 means rng.Float64() (always < 1) never skips the
	// door events branch, so they fire deterministically.
	e := NewEmitter(rand.New(rand.NewSource(3)), 1.0)
	c := testContainer()
	gf := &domain.Geofence{Name: "USLAX-APM"}

	events := e.StopEvents(c, time.Unix(0, 0), gf)

	require.Len(t, events, 3)
	assert.Equal(t, domain.EventDoorOpened, events[1].EventType)
	assert.Equal(t, domain.EventDoorClosed, events[2].EventType)
	for _, ev := range events {
		assert.Equal(t, "USLAX-APM", ev.LocationName)
	}
	assert.True(t, events[1].EventTime.After(events[0].EventTime))
	assert.True(t, events[2].EventTime.After(events[1].EventTime))
}

func TestGateInOut_CarryGeofenceIdentity(t *testing.T) {
	e := NewEmitter(rand.New(rand.NewSource(1)), 0)
	c := testContainer()
	gf := &domain.Geofence{ID: 5, Name: "USLAX-APM", TypeID: domain.GeofenceTerminal}

	in := e.GateIn(c, time.Unix(0, 0), gf)
	out := e.GateOut(c, time.Unix(0, 0), gf)

	assert.Equal(t, domain.EventGateIn, in.EventType)
	assert.Equal(t, int64(5), in.GeofenceID)
	assert.Equal(t, domain.GeofenceTerminal, in.GeofenceType)
	assert.Equal(t, domain.EventGateOut, out.EventType)
}
