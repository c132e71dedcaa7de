package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/database"
	"github.com/roieman/container-sim/pkg/telemetry"
)

// TimeSeriesStore writes to the append-only timeseries_events table, the
// Postgres stand-in for the original's native Mongo time-series
// collection (see migrations/00004_timeseries_events.sql).
type TimeSeriesStore struct {
	db        database.DB
	retention time.Duration
}

// NewTimeSeriesStore wires db. retention governs DeleteOlderThan.
func NewTimeSeriesStore(db database.DB, retention time.Duration) *TimeSeriesStore {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &TimeSeriesStore{db: db, retention: retention}
}

const timeseriesColumns = 11

// WriteBatch inserts every event, wrapped in the metadata envelope
// (tracker_id, container_id, asset_id) and bucketed to the minute.
func (s *TimeSeriesStore) WriteBatch(ctx context.Context, events []domain.IoTEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "persistence.TimeSeriesStore", "WriteBatch")
	defer span.End()

	var b strings.Builder
	b.WriteString(`INSERT INTO timeseries_events (bucket, meta_tracker_id, meta_container_id, meta_asset_id, event_time, report_time, event_location, event_location_country, lat, lon, event_type, location) VALUES `)

	args := make([]any, 0, len(events)*timeseriesColumns)
	for i, e := range events {
		if i > 0 {
			b.WriteString(",")
		}
		base := i * timeseriesColumns
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,ST_SetSRID(ST_Point($%d,$%d),4326))",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11, base+10, base+9)
		args = append(args, e.EventTime.Truncate(time.Minute), e.TrackerID, e.ContainerID, e.AssetID,
			e.EventTime, e.ReportTime, e.LocationName, nullableString(e.LocationCountry), e.Lat, e.Lon, string(e.EventType))
	}

	if _, err := s.db.Exec(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to write timeseries batch: %w", err)
	}
	return nil
}

// DeleteOlderThan enforces retention by deleting buckets older than now
// minus the configured window. The original relies on a Mongo TTL index;
// Postgres has no equivalent, and nothing in the simulator calls this on
// a schedule: old rows are removed only when a caller invokes it.
func (s *TimeSeriesStore) DeleteOlderThan(ctx context.Context, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "persistence.TimeSeriesStore", "DeleteOlderThan")
	defer span.End()

	cutoff := now.Add(-s.retention)
	if _, err := s.db.Exec(ctx, `DELETE FROM timeseries_events WHERE bucket < $1`, cutoff); err != nil {
		return fmt.Errorf("failed to enforce timeseries retention: %w", err)
	}
	return nil
}
