package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/database"
	"github.com/roieman/container-sim/pkg/telemetry"
)

// GeofenceLookup resolves a geofence by name, used to rehydrate a
// Container's Journey pointers when a row is loaded back from storage.
type GeofenceLookup func(ctx context.Context, name string) (*domain.Geofence, error)

// ContainerStore upserts and loads the container snapshot table.
type ContainerStore struct {
	db     database.DB
	lookup GeofenceLookup
}

// NewContainerStore wires db and the geofence lookup used by All.
func NewContainerStore(db database.DB, lookup GeofenceLookup) *ContainerStore {
	return &ContainerStore{db: db, lookup: lookup}
}

const containerColumns = 22

// UpsertBatch performs a bulk unordered upsert keyed by container_id, used
// at bootstrap and after any state transition (spec.md §4.5).
func (s *ContainerStore) UpsertBatch(ctx context.Context, containers []*domain.Container) error {
	if len(containers) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "persistence.ContainerStore", "UpsertBatch")
	defer span.End()

	var b strings.Builder
	b.WriteString(`INSERT INTO containers (
		container_id, tracker_id, asset_id, size_class, refrigerated, cargo_class,
		latitude, longitude, current_geofence, state, is_moving, door_open, use_rail,
		origin_depot, origin_rail_ramp, origin_terminal, destination_terminal,
		destination_rail_ramp, destination_depot, report_slot, journey_start_time, last_event_time
	) VALUES `)

	args := make([]any, 0, len(containers)*containerColumns)
	for i, c := range containers {
		if i > 0 {
			b.WriteString(",")
		}
		base := i * containerColumns
		b.WriteString("(")
		for col := 1; col <= containerColumns; col++ {
			if col > 1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", base+col)
		}
		b.WriteString(")")

		args = append(args,
			c.ContainerID, c.TrackerID, c.AssetID,
			string(c.Metadata.SizeClass), c.Metadata.Refrigerated, string(c.Metadata.CargoClass),
			c.Lat, c.Lon, nullableString(c.CurrentGeofence),
			string(c.State), c.IsMoving, c.DoorOpen, c.Journey.UseRail,
			geofenceNameOrNil(c.Journey.OriginDepot), geofenceNameOrNil(c.Journey.OriginRamp),
			geofenceNameOrNil(c.Journey.OriginTerminal), geofenceNameOrNil(c.Journey.DestinationTerminal),
			geofenceNameOrNil(c.Journey.DestinationRamp), geofenceNameOrNil(c.Journey.DestinationDepot),
			c.ReportSlot, c.JourneyStartTime, c.LastEventTime,
		)
	}

	b.WriteString(` ON CONFLICT (container_id) DO UPDATE SET
		tracker_id = EXCLUDED.tracker_id,
		asset_id = EXCLUDED.asset_id,
		size_class = EXCLUDED.size_class,
		refrigerated = EXCLUDED.refrigerated,
		cargo_class = EXCLUDED.cargo_class,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		current_geofence = EXCLUDED.current_geofence,
		state = EXCLUDED.state,
		is_moving = EXCLUDED.is_moving,
		door_open = EXCLUDED.door_open,
		use_rail = EXCLUDED.use_rail,
		origin_depot = EXCLUDED.origin_depot,
		origin_rail_ramp = EXCLUDED.origin_rail_ramp,
		origin_terminal = EXCLUDED.origin_terminal,
		destination_terminal = EXCLUDED.destination_terminal,
		destination_rail_ramp = EXCLUDED.destination_rail_ramp,
		destination_depot = EXCLUDED.destination_depot,
		report_slot = EXCLUDED.report_slot,
		journey_start_time = EXCLUDED.journey_start_time,
		last_event_time = EXCLUDED.last_event_time,
		updated_at = now()`)

	if _, err := s.db.Exec(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert container batch: %w", err)
	}
	return nil
}

// UpsertBatches splits containers into chunks of batchSize and upserts
// each in turn, matching spec.md §4.7's "bulk batches of ~1000".
func (s *ContainerStore) UpsertBatches(ctx context.Context, containers []*domain.Container, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(containers); start += batchSize {
		end := min(start+batchSize, len(containers))
		if err := s.UpsertBatch(ctx, containers[start:end]); err != nil {
			return err
		}
	}
	return nil
}

const containerSelectColumns = `
	SELECT container_id, tracker_id, asset_id, size_class, refrigerated, cargo_class,
	       latitude, longitude, current_geofence, state, is_moving, door_open, use_rail,
	       origin_depot, origin_rail_ramp, origin_terminal, destination_terminal,
	       destination_rail_ramp, destination_depot, report_slot, journey_start_time, last_event_time
	FROM containers
`

// All loads every persisted container, rehydrating Journey geofence
// pointers via the configured lookup.
func (s *ContainerStore) All(ctx context.Context) ([]*domain.Container, error) {
	ctx, span := telemetry.StartSpan(ctx, "persistence.ContainerStore", "All")
	defer span.End()

	rows, err := s.db.Query(ctx, containerSelectColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to query containers: %w", err)
	}
	defer rows.Close()

	var result []*domain.Container
	for rows.Next() {
		c, err := s.scanContainer(ctx, rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *ContainerStore) scanContainer(ctx context.Context, rows pgx.Rows) (*domain.Container, error) {
	var c domain.Container
	var sizeClass, cargoClass, state string
	var currentGeofence *string
	var originDepot, originRamp, originTerminal, destTerminal, destRamp, destDepot *string

	err := rows.Scan(
		&c.ContainerID, &c.TrackerID, &c.AssetID, &sizeClass, &c.Metadata.Refrigerated, &cargoClass,
		&c.Lat, &c.Lon, &currentGeofence, &state, &c.IsMoving, &c.DoorOpen, &c.Journey.UseRail,
		&originDepot, &originRamp, &originTerminal, &destTerminal, &destRamp, &destDepot,
		&c.ReportSlot, &c.JourneyStartTime, &c.LastEventTime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan container row: %w", err)
	}

	c.Metadata.SizeClass = domain.SizeClass(sizeClass)
	c.Metadata.CargoClass = domain.CargoClass(cargoClass)
	c.State = domain.State(state)
	if currentGeofence != nil {
		c.CurrentGeofence = *currentGeofence
	}

	for ptr, target := range map[*string]**domain.Geofence{
		originDepot: &c.Journey.OriginDepot, originRamp: &c.Journey.OriginRamp,
		originTerminal: &c.Journey.OriginTerminal, destTerminal: &c.Journey.DestinationTerminal,
		destRamp: &c.Journey.DestinationRamp, destDepot: &c.Journey.DestinationDepot,
	} {
		if ptr == nil || s.lookup == nil {
			continue
		}
		gf, err := s.lookup(ctx, *ptr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve geofence %q for container %q: %w", *ptr, c.ContainerID, err)
		}
		*target = gf
	}

	return &c, nil
}

func geofenceNameOrNil(g *domain.Geofence) any {
	if g == nil {
		return nil
	}
	return g.Name
}
