// Package scheduler drives the simulation loop (spec.md §4.6): one tick
// per real second, staggered processing of the container population by
// report_slot, and the per-container update algorithm that resolves
// geofences, emits events, advances routes, and applies state
// transitions.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/roieman/container-sim/internal/container"
	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/internal/eventmodel"
	"github.com/roieman/container-sim/internal/persistence"
	"github.com/roieman/container-sim/pkg/apperror"
	"github.com/roieman/container-sim/pkg/logger"
	"github.com/roieman/container-sim/pkg/metrics"
	"github.com/roieman/container-sim/pkg/telemetry"
)

// GeofenceResolver is the subset of geofence.Store the scheduler needs
// for point-in-polygon resolution during ticks. Narrowed to an
// interface so the scheduler can be tested without a database.
type GeofenceResolver interface {
	FindContaining(ctx context.Context, lon, lat float64) (*domain.Geofence, error)
	ByName(ctx context.Context, name string) (*domain.Geofence, error)
}

// RouteBuilder is the subset of route.Generator the scheduler needs to
// install a new route on a state transition.
type RouteBuilder interface {
	LandRoute(origin, destination *domain.Geofence) []domain.Point
	RailRoute(origin, destination *domain.Geofence) []domain.Point
	OceanRoute(origin, destination *domain.Geofence) []domain.Point
	SelectJourney(terminals, depots, railRamps []*domain.Geofence) domain.Journey
}

// Config carries the tunables of spec.md §6 that affect per-tick
// behavior.
type Config struct {
	NumSlots              int
	EventInterval         time.Duration
	LoopInterval          time.Duration
	StatusInterval        time.Duration
	Terminals, Depots, RailRamps []*domain.Geofence
}

// Scheduler owns all mutable container state and drives the tick loop.
type Scheduler struct {
	cfg Config

	geofences GeofenceResolver
	routes    RouteBuilder
	emitter   *eventmodel.Emitter
	writer    *persistence.BatchWriter
	metrics   *metrics.Metrics

	containersBySlot map[int][]*domain.Container
	containers       []*domain.Container

	simTime        time.Time
	currentSlot    int
	eventsGenerated uint64

	mu sync.Mutex
}

// New builds a Scheduler over an already-bootstrapped population.
// containers must already have report_slot assigned (spec.md §4.7).
func New(cfg Config, containers []*domain.Container, geofences GeofenceResolver, routes RouteBuilder, emitter *eventmodel.Emitter, writer *persistence.BatchWriter, m *metrics.Metrics, simTime time.Time) *Scheduler {
	if cfg.NumSlots <= 0 {
		cfg.NumSlots = 900
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = time.Second
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 10 * time.Second
	}

	bySlot := make(map[int][]*domain.Container, cfg.NumSlots)
	for _, c := range containers {
		bySlot[c.ReportSlot] = append(bySlot[c.ReportSlot], c)
	}

	return &Scheduler{
		cfg:              cfg,
		geofences:        geofences,
		routes:           routes,
		emitter:          emitter,
		writer:           writer,
		metrics:          m,
		containersBySlot: bySlot,
		containers:       containers,
		simTime:          simTime,
	}
}

// SimTime returns the current simulated clock, for checkpointing.
func (s *Scheduler) SimTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime
}

// CurrentSlot returns the slot about to be processed next, for checkpointing.
func (s *Scheduler) CurrentSlot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSlot
}

// EventsGenerated returns the running total of events emitted, for
// checkpointing and status reporting.
func (s *Scheduler) EventsGenerated() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventsGenerated
}

// RestoreClock overlays resumed checkpoint fields onto a freshly built
// Scheduler; cmd/simulator calls it when resuming, before Run starts.
func (s *Scheduler) RestoreClock(simTime time.Time, currentSlot int, eventsGenerated uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simTime = simTime
	s.currentSlot = currentSlot
	s.eventsGenerated = eventsGenerated
}

// Run blocks, ticking once per LoopInterval, until ctx is cancelled. Per
// spec.md §5, cancellation lets the in-flight tick run to completion
// before returning.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LoopInterval)
	defer ticker.Stop()

	lastStatus := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tickStart := time.Now()
		s.tick(ctx)
		tickDuration := time.Since(tickStart)

		if s.metrics != nil {
			s.metrics.TickDuration.Observe(tickDuration.Seconds())
			if tickDuration > s.cfg.LoopInterval {
				s.metrics.TickOverruns.Inc()
			}
		}

		if time.Since(lastStatus) >= s.cfg.StatusInterval {
			s.logStatus()
			lastStatus = time.Now()
		}

		// tick itself advances sim_time by exactly one LoopInterval,
		// regardless of how long the tick actually took (spec.md §5's
		// overrun rule); ticker.C already self-corrects the wall-clock
		// wait, so this only checks for cancellation before the next tick.
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.Scheduler", "tick")
	defer span.End()

	s.mu.Lock()
	slot := s.currentSlot
	simTime := s.simTime
	slotContainers := s.containersBySlot[slot]
	s.mu.Unlock()

	batch := s.processSlot(ctx, slotContainers, simTime)

	if len(batch.Events) > 0 || len(batch.GateEvents) > 0 {
		if err := s.writer.Enqueue(ctx, batch); err != nil {
			logger.Warn("failed to enqueue batch, dropping", "slot", slot, "error", err)
		}
	}

	s.mu.Lock()
	s.eventsGenerated += uint64(len(batch.Events))
	s.currentSlot = (s.currentSlot + 1) % s.cfg.NumSlots
	s.simTime = s.simTime.Add(s.cfg.LoopInterval)
	s.mu.Unlock()
}

// processSlot partitions slotContainers across GOMAXPROCS goroutines
// (spec.md §9's "coroutine-like control flow" note: containers share no
// mutable state within a tick, so partitioning is safe) and merges their
// emitted events into one batch.
func (s *Scheduler) processSlot(ctx context.Context, slotContainers []*domain.Container, simTime time.Time) persistence.Batch {
	if len(slotContainers) == 0 {
		return persistence.Batch{}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(slotContainers) {
		workers = len(slotContainers)
	}
	if workers < 1 {
		workers = 1
	}

	chunks := make([][]*domain.Container, workers)
	for i, c := range slotContainers {
		chunks[i%workers] = append(chunks[i%workers], c)
	}

	results := make([]persistence.Batch, workers)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []*domain.Container) {
			defer wg.Done()
			results[i] = s.updateContainers(ctx, chunk, simTime)
		}(i, chunk)
	}
	wg.Wait()

	var merged persistence.Batch
	for _, r := range results {
		merged.Events = append(merged.Events, r.Events...)
		merged.GateEvents = append(merged.GateEvents, r.GateEvents...)
	}
	return merged
}

func (s *Scheduler) updateContainers(ctx context.Context, containers []*domain.Container, simTime time.Time) persistence.Batch {
	var batch persistence.Batch
	for _, c := range containers {
		events, gateEvents := s.updateContainer(ctx, c, simTime)
		batch.Events = append(batch.Events, events...)
		batch.GateEvents = append(batch.GateEvents, gateEvents...)
	}
	return batch
}

// updateContainer implements the 8-step per-container algorithm of
// spec.md §4.6. Per spec.md §7, the simulator never raises out of the
// main loop: an unexpected panic here (a malformed journey slipping past
// Valid, a nil route entry, etc.) is caught, logged with the container
// and cause, and that container is simply skipped for this tick rather
// than taking down the whole process.
func (s *Scheduler) updateContainer(ctx context.Context, c *domain.Container, simTime time.Time) (events []domain.IoTEvent, gateEvents []domain.GateEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in container update, skipping for this tick",
				"component", "scheduler.updateContainer",
				"container_id", c.ContainerID,
				"cause", r,
			)
			events, gateEvents = nil, nil
		}
	}()

	if simTime.Before(c.JourneyStartTime) {
		return nil, nil
	}
	if simTime.Sub(c.LastEventTime) < s.cfg.EventInterval {
		return nil, nil
	}
	if !c.Journey.Valid() {
		err := apperror.NewWithField(apperror.CodeMissingJourneyEndpoint,
			"container has no valid journey, skipping this tick", "journey").
			WithDetails(map[string]any{"container_id": c.ContainerID})
		logger.Warn("skipping container update", "error", err)
		return nil, nil
	}

	current, err := s.geofences.FindContaining(ctx, c.Lon, c.Lat)
	if err != nil {
		logger.Warn("geofence lookup failed, skipping container this tick", "container_id", c.ContainerID, "error", err)
		return nil, nil
	}

	currentName := ""
	if current != nil {
		currentName = current.Name
	}

	if currentName != c.CurrentGeofence {
		if c.CurrentGeofence != "" && currentName == "" {
			if old, err := s.geofences.ByName(ctx, c.CurrentGeofence); err == nil && old != nil {
				gateEvents = append(gateEvents, s.emitter.GateOut(c, simTime, old))
			}
		}
		if currentName != "" && currentName != c.CurrentGeofence {
			gateEvents = append(gateEvents, s.emitter.GateIn(c, simTime, current))
		}
		c.CurrentGeofence = currentName
	}

	events = append(events, s.emitter.LocationUpdate(c, simTime, current))
	c.LastEventTime = simTime

	if c.RouteIndex+1 < len(c.Route) {
		wasStationary := c.RouteIndex == 0
		c.RouteIndex++
		next := c.Route[c.RouteIndex]
		c.Lat, c.Lon = next.Lat, next.Lon

		if wasStationary {
			events = append(events, s.emitter.MotionStart(c, simTime, current))
			c.IsMoving = true
		}
	} else {
		if c.IsMoving {
			events = append(events, s.emitter.StopEvents(c, simTime, current)...)
			c.IsMoving = false
		}
		s.transition(c, current)
	}

	return events, gateEvents
}

// transition applies the state-machine rule (spec.md §4.4) and installs
// whatever route the new state requires.
func (s *Scheduler) transition(c *domain.Container, current *domain.Geofence) {
	next := container.Advance(c)
	if next == c.State {
		return
	}
	c.State = next
	c.RouteIndex = 0
	c.Route = nil

	switch next {
	case domain.InTransitToRamp:
		c.Route = s.routes.LandRoute(c.Journey.OriginDepot, c.Journey.OriginRamp)
	case domain.InTransitToTerm:
		origin := c.Journey.OriginRamp
		if origin == nil {
			origin = c.Journey.OriginDepot
		}
		c.Route = s.routes.LandRoute(origin, c.Journey.OriginTerminal)
	case domain.InTransitRail:
		c.Route = s.routes.RailRoute(c.Journey.OriginRamp, c.Journey.OriginTerminal)
	case domain.InTransitOcean:
		c.Route = s.routes.OceanRoute(c.Journey.OriginTerminal, c.Journey.DestinationTerminal)
	case domain.InTransitFromTerm:
		c.Route = s.routes.LandRoute(c.Journey.DestinationTerminal, c.Journey.DestinationRamp)
	case domain.InTransitRailToDepot:
		c.Route = s.routes.RailRoute(c.Journey.DestinationRamp, c.Journey.DestinationDepot)
	case domain.InTransitToDepot:
		origin := c.Journey.DestinationRamp
		if origin == nil {
			origin = c.Journey.DestinationTerminal
		}
		c.Route = s.routes.LandRoute(origin, c.Journey.DestinationDepot)
	case domain.AtOriginDepot:
		// AtDestDepot -> AtOriginDepot: journey complete, assign a new one.
		s.assignNewJourney(c)
	}
}

// assignNewJourney picks a fresh journey for a container that completed
// its previous one, matching the original's _assign_new_journey.
func (s *Scheduler) assignNewJourney(c *domain.Container) {
	journey := s.routes.SelectJourney(s.cfg.Terminals, s.cfg.Depots, s.cfg.RailRamps)
	c.Journey = journey
	if journey.OriginDepot != nil {
		centroid := journey.OriginDepot.Centroid()
		c.Lat, c.Lon = centroid.Lat, centroid.Lon
		c.CurrentGeofence = journey.OriginDepot.Name
	}
}

func (s *Scheduler) logStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := map[domain.State]int{}
	moving, rail := 0, 0
	for _, c := range s.containers {
		states[c.State]++
		if c.IsMoving {
			moving++
		}
		if c.Journey.UseRail {
			rail++
		}
	}

	if s.metrics != nil {
		for state, count := range states {
			s.metrics.ContainersByState.WithLabelValues(string(state)).Set(float64(count))
		}
		s.metrics.ContainersMoving.Set(float64(moving))
		s.metrics.ContainersOnRail.Set(float64(rail))
	}

	logger.Info("simulation status",
		"sim_time", s.simTime,
		"slot", s.currentSlot,
		"containers", len(s.containers),
		"states", states,
		"moving", moving,
		"rail", rail,
		"events_generated", s.eventsGenerated,
	)
}
