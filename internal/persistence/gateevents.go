package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/database"
	"github.com/roieman/container-sim/pkg/telemetry"
)

// GateEventStore writes GateIn/GateOut events denormalized with the
// geofence they reference, kept separate from event_log per spec.md §4.5.
type GateEventStore struct {
	db database.DB
}

// NewGateEventStore wires db.
func NewGateEventStore(db database.DB) *GateEventStore {
	return &GateEventStore{db: db}
}

const gateEventColumns = 11

// WriteBatch inserts every gate event in one multi-row statement. Callers
// MUST flush this before the parent event batch, per spec.md §5's
// ordering guarantee that a reader observing a gate event can always find
// the corresponding LocationUpdate in the main log.
func (s *GateEventStore) WriteBatch(ctx context.Context, events []domain.GateEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "persistence.GateEventStore", "WriteBatch")
	defer span.End()

	var b strings.Builder
	b.WriteString(`INSERT INTO gate_events (tracker_id, container_id, asset_id, event_time, report_time, event_type, lat, lon, location, geofence_id, geofence_name, geofence_type) VALUES `)

	args := make([]any, 0, len(events)*gateEventColumns)
	for i, e := range events {
		if i > 0 {
			b.WriteString(",")
		}
		base := i * gateEventColumns
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,ST_SetSRID(ST_Point($%d,$%d),4326),$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+8, base+7, base+9, base+10, base+11)
		args = append(args, e.TrackerID, e.ContainerID, e.AssetID, e.EventTime, e.ReportTime,
			string(e.EventType), e.Lat, e.Lon, e.GeofenceID, e.GeofenceName, string(e.GeofenceType))
	}

	if _, err := s.db.Exec(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to write gate event batch: %w", err)
	}
	return nil
}
