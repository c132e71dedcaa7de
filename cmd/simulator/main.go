package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roieman/container-sim/internal/bootstrap"
	"github.com/roieman/container-sim/internal/checkpoint"
	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/internal/eventmodel"
	"github.com/roieman/container-sim/internal/geofence"
	"github.com/roieman/container-sim/internal/persistence"
	"github.com/roieman/container-sim/internal/route"
	"github.com/roieman/container-sim/internal/scheduler"
	"github.com/roieman/container-sim/migrations"
	"github.com/roieman/container-sim/pkg/apperror"
	"github.com/roieman/container-sim/pkg/cache"
	"github.com/roieman/container-sim/pkg/config"
	"github.com/roieman/container-sim/pkg/database"
	"github.com/roieman/container-sim/pkg/logger"
	"github.com/roieman/container-sim/pkg/metrics"
	"github.com/roieman/container-sim/pkg/telemetry"
)

type cliFlags struct {
	numContainers int
	speed         float64
	slots         int
	startDate     string
	saveState     bool
	resume        bool
	stateFile     string
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "simulator",
		Short: "Container shipping IoT telemetry simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	root.Flags().IntVarP(&flags.numContainers, "num-containers", "n", 0, "number of containers to simulate (default: sim.num_containers from config)")
	root.Flags().Float64VarP(&flags.speed, "speed", "s", 0, "simulation speed multiplier (default: sim.simulation_speed from config)")
	root.Flags().IntVar(&flags.slots, "slots", 0, "number of time slots for staggered processing (default: sim.stagger_slots from config)")
	root.Flags().StringVar(&flags.startDate, "start-date", "", "start time for the simulation, RFC3339 (default: now)")
	root.Flags().BoolVar(&flags.saveState, "save-state", false, "save simulation state on exit, for resuming later")
	root.Flags().StringVar(&flags.stateFile, "state-file", "simulation_state.json", "file path for saving/loading simulation state")
	root.Flags().BoolVar(&flags.resume, "resume", false, "resume from a previously saved simulation state")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *cliFlags) error {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidConfig, "configuration failed validation")
	}
	applyFlagOverrides(cfg, flags)

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.Init(ctx, &cfg.Tracing, cfg.App.Name, cfg.App.Version)
		if err != nil {
			logger.Warn("failed to init telemetry", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Warn("failed to shutdown telemetry", "error", err)
				}
			}()
			logger.Info("telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	m := metrics.New(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	if cfg.Metrics.Enabled {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			if err := metrics.Serve(addr, cfg.Metrics.Path); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("metrics server listening", "addr", addr, "path", cfg.Metrics.Path)
	}

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeDatabaseUnreachable, "failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, &cfg.Database, db.Pool(), migrations.PostgresMigrations, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var geoCache cache.Cache = cache.NoopCache{}
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, &cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to connect to cache: %w", err)
		}
		defer redisCache.Close()
		geoCache = redisCache
	}

	geofenceStore := geofence.NewStore(db, geoCache)
	containerStore := persistence.NewContainerStore(db, geofenceStore.ByName)
	eventLogStore := persistence.NewEventLogStore(db)
	timeSeriesStore := persistence.NewTimeSeriesStore(db, cfg.Persistence.TimeSeriesRetention)
	gateEventStore := persistence.NewGateEventStore(db)

	writer := persistence.NewBatchWriter(eventLogStore, timeSeriesStore, gateEventStore,
		cfg.Persistence.QueueCapacity, cfg.Persistence.RetryBackoff, m)

	terminals, err := geofenceStore.ByType(ctx, domain.GeofenceTerminal)
	if err != nil {
		return fmt.Errorf("failed to load terminals: %w", err)
	}
	depots, err := geofenceStore.ByType(ctx, domain.GeofenceDepot)
	if err != nil {
		return fmt.Errorf("failed to load depots: %w", err)
	}
	railRamps, err := geofenceStore.ByType(ctx, domain.GeofenceRailRamp)
	if err != nil {
		return fmt.Errorf("failed to load rail ramps: %w", err)
	}
	if len(terminals) == 0 || len(depots) == 0 {
		return apperror.NewCritical(apperror.CodeMissingGeofences,
			"no terminal or depot geofences loaded; run geofence import before starting the simulator")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	routeGen := route.NewGenerator(rng, cfg.Sim.RailRoutingProbability, cfg.Sim.RailEnabledCountries)
	emitter := eventmodel.NewEmitter(rng, cfg.Sim.DoorEventProbability)

	startTime := time.Now().UTC()
	if flags.startDate != "" {
		parsed, err := time.Parse(time.RFC3339, flags.startDate)
		if err != nil {
			return fmt.Errorf("invalid --start-date %q: %w", flags.startDate, err)
		}
		startTime = parsed
	}

	boot := bootstrap.New(routeGen, containerStore, rng, terminals, depots, railRamps)
	containers, err := boot.Create(ctx, cfg.Sim.NumContainers, cfg.Sim.StaggerSlots, startTime)
	if err != nil {
		return fmt.Errorf("failed to bootstrap container population: %w", err)
	}

	simTime := startTime
	currentSlot := 0
	var eventsGenerated uint64

	if flags.resume {
		state, err := checkpoint.Load(flags.stateFile)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeCheckpointFailed, "checkpoint load failed")
		}
		if state != nil {
			state.Apply(containers)
			simTime = state.SimTime
			currentSlot = state.CurrentSlot
			eventsGenerated = state.EventsGenerated
		} else {
			logger.Warn("could not load checkpoint state, starting fresh", "file", flags.stateFile)
		}
	}

	schedCfg := scheduler.Config{
		NumSlots:       cfg.Sim.StaggerSlots,
		EventInterval:  time.Duration(cfg.Sim.EventIntervalSeconds) * time.Second,
		LoopInterval:   cfg.Sim.LoopInterval,
		StatusInterval: time.Duration(cfg.Sim.StatusIntervalSeconds) * time.Second,
		Terminals:      terminals,
		Depots:         depots,
		RailRamps:      railRamps,
	}
	sched := scheduler.New(schedCfg, containers, geofenceStore, routeGen, emitter, writer, m, simTime)
	sched.RestoreClock(simTime, currentSlot, eventsGenerated)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go writer.Run(runCtx)

	schedulerDone := make(chan struct{})
	go func() {
		sched.Run(runCtx)
		close(schedulerDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-runCtx.Done():
	}

	cancel()
	<-schedulerDone
	writer.Wait()

	if flags.saveState {
		if err := checkpoint.Save(flags.stateFile, sched.SimTime(), sched.CurrentSlot(), sched.EventsGenerated(),
			cfg.Sim.StaggerSlots, cfg.Sim.SimulationSpeed, containers); err != nil {
			logger.Error("failed to save checkpoint", "error", apperror.Wrap(err, apperror.CodeCheckpointFailed, "checkpoint save failed"))
		}
	}

	logger.Info("simulation stopped", "events_generated", sched.EventsGenerated())
	return nil
}

func applyFlagOverrides(cfg *config.Config, flags *cliFlags) {
	if flags.numContainers > 0 {
		cfg.Sim.NumContainers = flags.numContainers
	}
	if flags.speed > 0 {
		cfg.Sim.SimulationSpeed = flags.speed
	}
	if flags.slots > 0 {
		cfg.Sim.StaggerSlots = flags.slots
	}
}
