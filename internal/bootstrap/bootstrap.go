// Package bootstrap creates the initial container population (spec.md
// §4.7): identity, journey, starting position, staggered report slot,
// and staggered journey start time, persisted in bulk.
package bootstrap

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/logger"
	"github.com/roieman/container-sim/pkg/telemetry"
)

const (
	containerOwnerPrefix = "ZIMU"
	containerIDDigits    = 7
	trackerIDDigits      = 7
	assetIDMin           = 30000
	assetIDMax           = 40000
	reeferProbability    = 0.15

	journeyStartSpreadHours = 4
	upsertBatchSize         = 1000
)

// RouteBuilder is the subset of route.Generator bootstrap needs to pick
// an initial journey and pre-compute the first leg's route.
type RouteBuilder interface {
	SelectJourney(terminals, depots, railRamps []*domain.Geofence) domain.Journey
	LandRoute(origin, destination *domain.Geofence) []domain.Point
}

// ContainerUpserter is the subset of persistence.ContainerStore used to
// persist the freshly created population.
type ContainerUpserter interface {
	UpsertBatches(ctx context.Context, containers []*domain.Container, batchSize int) error
}

// Bootstrap builds and persists the initial container population.
type Bootstrap struct {
	routes RouteBuilder
	store  ContainerUpserter
	rng    *rand.Rand

	terminals, depots, railRamps []*domain.Geofence
}

// New wires a Bootstrap. terminals/depots/railRamps are the full
// geofence sets used for journey selection.
func New(routes RouteBuilder, store ContainerUpserter, rng *rand.Rand, terminals, depots, railRamps []*domain.Geofence) *Bootstrap {
	return &Bootstrap{routes: routes, store: store, rng: rng, terminals: terminals, depots: depots, railRamps: railRamps}
}

// Create builds numContainers containers, staggered across numSlots
// report slots, with journey_start_time spread uniformly over the next
// 0-4 hours of simulated time (spec.md §4.7), then upserts them in
// batches of ~1000 (matching the original's batch_size = 1000).
func (b *Bootstrap) Create(ctx context.Context, numContainers, numSlots int, simTime time.Time) ([]*domain.Container, error) {
	ctx, span := telemetry.StartSpan(ctx, "bootstrap.Bootstrap", "Create")
	defer span.End()

	containers := make([]*domain.Container, 0, numContainers)
	railCount := 0

	for i := 0; i < numContainers; i++ {
		c := b.newContainer(i, numSlots, simTime)
		if c.Journey.UseRail {
			railCount++
		}
		containers = append(containers, c)

		if (i+1)%10000 == 0 {
			logger.Info("bootstrap progress", "created", i+1, "total", numContainers)
		}
	}

	logger.Info("bootstrap population built",
		"containers", len(containers), "rail_routing", railCount, "slots", numSlots)

	if err := b.store.UpsertBatches(ctx, containers, upsertBatchSize); err != nil {
		return nil, fmt.Errorf("failed to persist bootstrap population: %w", err)
	}

	return containers, nil
}

func (b *Bootstrap) newContainer(index, numSlots int, simTime time.Time) *domain.Container {
	c := &domain.Container{
		ContainerID: b.generateContainerID(),
		TrackerID:   b.generateTrackerID(),
		AssetID:     assetIDMin + b.rng.Intn(assetIDMax-assetIDMin),
		Metadata: domain.Metadata{
			SizeClass:    randomSizeClass(b.rng),
			Refrigerated: b.rng.Float64() < reeferProbability,
			CargoClass:   randomCargoClass(b.rng),
		},
		State:      domain.AtOriginDepot,
		ReportSlot: index % numSlots,
	}

	c.Journey = b.routes.SelectJourney(b.terminals, b.depots, b.railRamps)

	if c.Journey.OriginDepot != nil {
		centroid := c.Journey.OriginDepot.Centroid()
		c.Lat, c.Lon = centroid.Lat, centroid.Lon
		c.CurrentGeofence = c.Journey.OriginDepot.Name

		if c.Journey.UseRail && c.Journey.OriginRamp != nil {
			c.Route = b.routes.LandRoute(c.Journey.OriginDepot, c.Journey.OriginRamp)
		} else if c.Journey.OriginTerminal != nil {
			c.Route = b.routes.LandRoute(c.Journey.OriginDepot, c.Journey.OriginTerminal)
		}
	}

	startOffset := time.Duration(b.rng.Float64() * float64(journeyStartSpreadHours) * float64(time.Hour))
	c.JourneyStartTime = simTime.Add(startOffset)
	c.LastEventTime = c.JourneyStartTime

	return c
}

func (b *Bootstrap) generateContainerID() string {
	return containerOwnerPrefix + b.digits(containerIDDigits)
}

func (b *Bootstrap) generateTrackerID() string {
	return "A" + b.digits(trackerIDDigits)
}

func (b *Bootstrap) digits(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + b.rng.Intn(10)))
	}
	return sb.String()
}

func randomSizeClass(rng *rand.Rand) domain.SizeClass {
	return domain.SizeClasses[rng.Intn(len(domain.SizeClasses))]
}

func randomCargoClass(rng *rand.Rand) domain.CargoClass {
	return domain.CargoClasses[rng.Intn(len(domain.CargoClasses))]
}
