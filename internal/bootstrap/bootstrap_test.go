package bootstrap

import (
	"context"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roieman/container-sim/internal/domain"
)

type fakeRouteBuilder struct {
	journey domain.Journey
}

func (f *fakeRouteBuilder) SelectJourney(terminals, depots, railRamps []*domain.Geofence) domain.Journey {
	return f.journey
}

func (f *fakeRouteBuilder) LandRoute(origin, destination *domain.Geofence) []domain.Point {
	if origin == nil || destination == nil {
		return nil
	}
	return []domain.Point{origin.Centroid(), destination.Centroid()}
}

type fakeUpserter struct {
	batches [][]*domain.Container
}

func (f *fakeUpserter) UpsertBatches(ctx context.Context, containers []*domain.Container, batchSize int) error {
	f.batches = append(f.batches, containers)
	return nil
}

func testJourney() domain.Journey {
	depot := &domain.Geofence{ID: 1, Name: "USLAX-DEPOT1", TypeID: domain.GeofenceDepot,
		Ring: []domain.Point{{Lon: 0, Lat: 0}, {Lon: 2, Lat: 2}}}
	terminal := &domain.Geofence{ID: 2, Name: "USLAX-APM", TypeID: domain.GeofenceTerminal,
		Ring: []domain.Point{{Lon: 10, Lat: 10}, {Lon: 12, Lat: 12}}}
	destDepot := &domain.Geofence{ID: 3, Name: "CNSHA-DEPOT1", TypeID: domain.GeofenceDepot}
	destTerminal := &domain.Geofence{ID: 4, Name: "CNSHA-YGT", TypeID: domain.GeofenceTerminal}
	return domain.Journey{
		OriginDepot: depot, OriginTerminal: terminal,
		DestinationTerminal: destTerminal, DestinationDepot: destDepot,
	}
}

func TestBootstrap_Create_AssignsIdentityAndPosition(t *testing.T) {
	journey := testJourney()
	routes := &fakeRouteBuilder{journey: journey}
	store := &fakeUpserter{}
	rng := rand.New(rand.NewSource(1))

	b := New(routes, store, rng, nil, nil, nil)
	containers, err := b.Create(context.Background(), 5, 3, time.Unix(1000, 0))
	require.NoError(t, err)
	require.Len(t, containers, 5)

	idPattern := regexp.MustCompile(`^ZIMU\d{7}$`)
	trackerPattern := regexp.MustCompile(`^A\d{7}$`)

	for i, c := range containers {
		assert.Regexp(t, idPattern, c.ContainerID)
		assert.Regexp(t, trackerPattern, c.TrackerID)
		assert.GreaterOrEqual(t, c.AssetID, assetIDMin)
		assert.Less(t, c.AssetID, assetIDMax)
		assert.Equal(t, i%3, c.ReportSlot)
		assert.Equal(t, domain.AtOriginDepot, c.State)
		assert.Equal(t, journey.OriginDepot.Name, c.CurrentGeofence)
		assert.Equal(t, journey.OriginDepot.Centroid(), domain.Point{Lon: c.Lon, Lat: c.Lat})
		assert.NotEmpty(t, c.Route)
		assert.True(t, c.JourneyStartTime.Compare(time.Unix(1000, 0)) >= 0)
		assert.True(t, c.JourneyStartTime.Compare(time.Unix(1000, 0).Add(4*time.Hour)) <= 0)
		assert.Equal(t, c.JourneyStartTime, c.LastEventTime)
	}
}

func TestBootstrap_Create_RoutesToRailRampWhenUseRail(t *testing.T) {
	journey := testJourney()
	journey.UseRail = true
	journey.OriginRamp = &domain.Geofence{ID: 5, Name: "USLAX-RAMP1", TypeID: domain.GeofenceRailRamp,
		Ring: []domain.Point{{Lon: 5, Lat: 5}, {Lon: 7, Lat: 7}}}
	journey.DestinationRamp = &domain.Geofence{ID: 6, Name: "CNSHA-RAMP1", TypeID: domain.GeofenceRailRamp}

	routes := &fakeRouteBuilder{journey: journey}
	store := &fakeUpserter{}
	rng := rand.New(rand.NewSource(2))

	b := New(routes, store, rng, nil, nil, nil)
	containers, err := b.Create(context.Background(), 1, 1, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, containers, 1)

	c := containers[0]
	require.Len(t, c.Route, 2)
	assert.Equal(t, journey.OriginRamp.Centroid(), c.Route[1])
}

func TestBootstrap_Create_PersistsViaUpsertBatches(t *testing.T) {
	routes := &fakeRouteBuilder{journey: testJourney()}
	store := &fakeUpserter{}
	rng := rand.New(rand.NewSource(3))

	b := New(routes, store, rng, nil, nil, nil)
	_, err := b.Create(context.Background(), 10, 2, time.Unix(0, 0))
	require.NoError(t, err)

	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 10)
}

func TestBootstrap_Create_SizeAndCargoClassesAreValid(t *testing.T) {
	routes := &fakeRouteBuilder{journey: testJourney()}
	store := &fakeUpserter{}
	rng := rand.New(rand.NewSource(4))

	b := New(routes, store, rng, nil, nil, nil)
	containers, err := b.Create(context.Background(), 50, 5, time.Unix(0, 0))
	require.NoError(t, err)

	validSizes := map[domain.SizeClass]bool{}
	for _, s := range domain.SizeClasses {
		validSizes[s] = true
	}
	validCargo := map[domain.CargoClass]bool{}
	for _, c := range domain.CargoClasses {
		validCargo[c] = true
	}

	for _, c := range containers {
		assert.True(t, validSizes[c.Metadata.SizeClass])
		assert.True(t, validCargo[c.Metadata.CargoClass])
	}
}
