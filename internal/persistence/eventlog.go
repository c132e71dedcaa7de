// Package persistence implements the dual-sink batched writer of spec.md
// §4.5: every event is written to a mutable event log and an append-only
// time-series sink, with a separate denormalized gate_events store.
package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/database"
	"github.com/roieman/container-sim/pkg/telemetry"
)

// EventLogStore writes to the mutable event_log table.
type EventLogStore struct {
	db database.DB
}

// NewEventLogStore wires db.
func NewEventLogStore(db database.DB) *EventLogStore {
	return &EventLogStore{db: db}
}

const eventLogColumns = 10

// WriteBatch inserts every event in one multi-row statement. Retries on
// transport failure duplicate rows; ON CONFLICT DO NOTHING makes that
// idempotent since the table is keyed by (container_id, event_time).
func (s *EventLogStore) WriteBatch(ctx context.Context, events []domain.IoTEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "persistence.EventLogStore", "WriteBatch")
	defer span.End()

	var b strings.Builder
	b.WriteString(`INSERT INTO event_log (tracker_id, container_id, asset_id, event_time, report_time, event_location, event_location_country, lat, lon, event_type, location) VALUES `)

	args := make([]any, 0, len(events)*eventLogColumns)
	for i, e := range events {
		if i > 0 {
			b.WriteString(",")
		}
		base := i * eventLogColumns
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,ST_SetSRID(ST_Point($%d,$%d),4326))",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+9, base+8)
		args = append(args, e.TrackerID, e.ContainerID, e.AssetID, e.EventTime, e.ReportTime,
			e.LocationName, nullableString(e.LocationCountry), e.Lat, e.Lon, string(e.EventType))
	}
	b.WriteString(" ON CONFLICT (container_id, event_time) DO NOTHING")

	if _, err := s.db.Exec(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to write event log batch: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
