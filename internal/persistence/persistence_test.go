package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roieman/container-sim/internal/domain"
)

type pgxMockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *pgxMockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *pgxMockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *pgxMockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *pgxMockAdapter) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, txOptions)
}

func (a *pgxMockAdapter) Close() {
	a.mock.Close()
}

func (a *pgxMockAdapter) Ping(ctx context.Context) error {
	return a.mock.Ping(ctx)
}

func setupMock(t *testing.T) (pgxmock.PgxPoolIface, *pgxMockAdapter) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, &pgxMockAdapter{mock: mock}
}

func sampleEvent() domain.IoTEvent {
	return domain.IoTEvent{
		TrackerID:       "A1234567",
		ContainerID:     "ZIMU3170479",
		AssetID:         42,
		EventTime:       time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		ReportTime:      time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC),
		Lat:             33.7,
		Lon:             -118.3,
		EventType:       domain.EventLocationUpdate,
		LocationName:    "USLAX-APM",
		LocationCountry: "US",
	}
}

func sampleGateEvent() domain.GateEvent {
	return domain.GateEvent{
		IoTEvent:     sampleEvent(),
		GeofenceName: "USLAX-APM",
		GeofenceType: domain.GeofenceTerminal,
		GeofenceID:   7,
	}
}

func TestEventLogStore_WriteBatch_Empty(t *testing.T) {
	_, adapter := setupMock(t)
	store := NewEventLogStore(adapter)

	err := store.WriteBatch(context.Background(), nil)

	require.NoError(t, err)
}

func TestEventLogStore_WriteBatch_Success(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()
	store := NewEventLogStore(adapter)

	mock.ExpectExec(`INSERT INTO event_log`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	err := store.WriteBatch(context.Background(), []domain.IoTEvent{sampleEvent(), sampleEvent()})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventLogStore_WriteBatch_Error(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()
	store := NewEventLogStore(adapter)

	mock.ExpectExec(`INSERT INTO event_log`).WillReturnError(errors.New("connection refused"))

	err := store.WriteBatch(context.Background(), []domain.IoTEvent{sampleEvent()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write event log batch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSeriesStore_WriteBatch_Success(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()
	store := NewTimeSeriesStore(adapter, 0)

	mock.ExpectExec(`INSERT INTO timeseries_events`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.WriteBatch(context.Background(), []domain.IoTEvent{sampleEvent()})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSeriesStore_DeleteOlderThan(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()
	store := NewTimeSeriesStore(adapter, 90*24*time.Hour)

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-90 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM timeseries_events WHERE bucket < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	err := store.DeleteOlderThan(context.Background(), now)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateEventStore_WriteBatch_Success(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()
	store := NewGateEventStore(adapter)

	mock.ExpectExec(`INSERT INTO gate_events`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.WriteBatch(context.Background(), []domain.GateEvent{sampleGateEvent()})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateEventStore_WriteBatch_Empty(t *testing.T) {
	_, adapter := setupMock(t)
	store := NewGateEventStore(adapter)

	err := store.WriteBatch(context.Background(), nil)

	require.NoError(t, err)
}

func TestContainerStore_UpsertBatch_Success(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()
	store := NewContainerStore(adapter, nil)

	c := &domain.Container{
		ContainerID: "ZIMU3170479",
		TrackerID:   "A1234567",
		AssetID:     1,
		Metadata:    domain.Metadata{SizeClass: domain.Size40ft, CargoClass: domain.CargoGeneral},
		Lat:         33.7, Lon: -118.3,
		State: domain.AtOriginDepot,
	}

	mock.ExpectExec(`INSERT INTO containers`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertBatch(context.Background(), []*domain.Container{c})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainerStore_UpsertBatches_SplitsIntoChunks(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()
	store := NewContainerStore(adapter, nil)

	containers := make([]*domain.Container, 5)
	for i := range containers {
		containers[i] = &domain.Container{ContainerID: "C", Metadata: domain.Metadata{SizeClass: domain.Size20ft}}
	}

	mock.ExpectExec(`INSERT INTO containers`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`INSERT INTO containers`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`INSERT INTO containers`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertBatches(context.Background(), containers, 2)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainerStore_All_ResolvesGeofences(t *testing.T) {
	mock, adapter := setupMock(t)
	defer mock.Close()

	depot := &domain.Geofence{ID: 1, Name: "USLAX-DEPOT1"}
	lookup := func(ctx context.Context, name string) (*domain.Geofence, error) {
		return depot, nil
	}
	store := NewContainerStore(adapter, lookup)

	rows := pgxmock.NewRows([]string{
		"container_id", "tracker_id", "asset_id", "size_class", "refrigerated", "cargo_class",
		"latitude", "longitude", "current_geofence", "state", "is_moving", "door_open", "use_rail",
		"origin_depot", "origin_rail_ramp", "origin_terminal", "destination_terminal",
		"destination_rail_ramp", "destination_depot", "report_slot", "journey_start_time", "last_event_time",
	}).AddRow(
		"ZIMU3170479", "A1234567", 1, "40ft", false, "General Cargo",
		33.7, -118.3, (*string)(nil), "AT_ORIGIN_DEPOT", false, false, false,
		ptr("USLAX-DEPOT1"), (*string)(nil), ptr("USLAX-APM"), ptr("CNSHA-APM"),
		(*string)(nil), (*string)(nil), 42, time.Now(), time.Now(),
	)

	mock.ExpectQuery(`FROM containers`).WillReturnRows(rows)

	result, err := store.All(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "ZIMU3170479", result[0].ContainerID)
	require.NotNil(t, result[0].Journey.OriginDepot)
	assert.Equal(t, "USLAX-DEPOT1", result[0].Journey.OriginDepot.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr(s string) *string { return &s }
