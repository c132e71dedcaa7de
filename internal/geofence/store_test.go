package geofence

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
	"github.com/roieman/container-sim/pkg/cache"
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

// memCache is a minimal in-memory cache.Cache used to exercise the
// cache-hit / cache-miss paths of Store.ByName without pulling in redis.
type memCache struct {
	values map[string]string
}

func newMemCache() *memCache { return &memCache{values: map[string]string{}} }

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func setupMockStore(t *testing.T) (pgxmock.PgxPoolIface, *memCache, *Store) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mc := newMemCache()
	store := NewStore(&pgxMockAdapter{mock: mock}, mc)
	return mock, mc, store
}

func sampleGeofenceRow() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "type_id", "un_locode", "smdg_code", "description",
		"geom_wkt", "created_at", "updated_at",
	})
}

func TestStore_VerifyIndexes_AllPresent(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"indexname"}).
		AddRow("idx_geofences_geom").
		AddRow("idx_geofences_name").
		AddRow("idx_geofences_type_id")

	mock.ExpectQuery(`SELECT indexname FROM pg_indexes WHERE tablename = 'geofences'`).
		WillReturnRows(rows)

	err := store.VerifyIndexes(context.Background())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_VerifyIndexes_MissingIndex(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"indexname"}).AddRow("idx_geofences_name")

	mock.ExpectQuery(`SELECT indexname FROM pg_indexes WHERE tablename = 'geofences'`).
		WillReturnRows(rows)

	err := store.VerifyIndexes(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingIndex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertOrUpdate_Success(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	now := time.Now()
	g := &domain.Geofence{
		Name:   "USLAX-APM",
		TypeID: domain.GeofenceTerminal,
		Ring: []domain.Point{
			{Lon: -118.3, Lat: 33.7}, {Lon: -118.2, Lat: 33.7},
			{Lon: -118.2, Lat: 33.8}, {Lon: -118.3, Lat: 33.7},
		},
	}

	mock.ExpectQuery(`INSERT INTO geofences`).
		WithArgs(g.Name, string(g.TypeID), g.UNLOCode, g.SMDGCode, g.Description, ringToWKT(g.Ring)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	err := store.InsertOrUpdate(context.Background(), g)

	require.NoError(t, err)
	assert.Equal(t, int64(1), g.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertOrUpdate_Error(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	g := &domain.Geofence{Name: "USLAX-APM", TypeID: domain.GeofenceTerminal, Ring: []domain.Point{{Lon: 1, Lat: 1}}}

	mock.ExpectQuery(`INSERT INTO geofences`).WillReturnError(errors.New("connection refused"))

	err := store.InsertOrUpdate(context.Background(), g)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert geofence")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindContaining_Found(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	now := time.Now()
	rows := sampleGeofenceRow().AddRow(
		int64(1), "USLAX-APM", "Terminal", nil, nil, nil,
		"POLYGON((-118.3 33.7,-118.2 33.7,-118.2 33.8,-118.3 33.7))", now, now,
	)

	mock.ExpectQuery(`WHERE ST_Contains`).WithArgs(-118.25, 33.72).WillReturnRows(rows)

	g, err := store.FindContaining(context.Background(), -118.25, 33.72)

	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "USLAX-APM", g.Name)
	assert.Len(t, g.Ring, 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindContaining_NoRows_ReturnsNilNotError(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	mock.ExpectQuery(`WHERE ST_Contains`).WithArgs(0.0, 0.0).WillReturnError(pgx.ErrNoRows)

	g, err := store.FindContaining(context.Background(), 0, 0)

	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindAllContaining_MultipleRows(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	now := time.Now()
	rows := sampleGeofenceRow().
		AddRow(int64(1), "USLAX-APM", "Terminal", nil, nil, nil,
			"POLYGON((-118.3 33.7,-118.2 33.7,-118.2 33.8,-118.3 33.7))", now, now).
		AddRow(int64(2), "USLAX-DEPOT", "Depot", nil, nil, nil,
			"POLYGON((-118.31 33.71,-118.21 33.71,-118.21 33.81,-118.31 33.71))", now, now)

	mock.ExpectQuery(`WHERE ST_Contains`).WithArgs(-118.25, 33.72).WillReturnRows(rows)

	result, err := store.FindAllContaining(context.Background(), -118.25, 33.72)

	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ByName_CacheMiss_PopulatesCache(t *testing.T) {
	mock, mc, store := setupMockStore(t)
	defer mock.Close()

	now := time.Now()
	unlocode := "USLAX"
	rows := sampleGeofenceRow().AddRow(
		int64(1), "USLAX-APM", "Terminal", &unlocode, nil, nil,
		"POLYGON((-118.3 33.7,-118.2 33.7,-118.2 33.8,-118.3 33.7))", now, now,
	)

	mock.ExpectQuery(`WHERE name = \$1`).WithArgs("USLAX-APM").WillReturnRows(rows)

	g, err := store.ByName(context.Background(), "USLAX-APM")

	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "USLAX", g.UNLOCode)
	assert.Contains(t, mc.values, byNameCacheKey("USLAX-APM"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ByName_CacheHit_SkipsQuery(t *testing.T) {
	mock, mc, store := setupMockStore(t)
	defer mock.Close()

	g := &domain.Geofence{ID: 7, Name: "USLAX-APM", TypeID: domain.GeofenceTerminal, Ring: []domain.Point{{Lon: 1, Lat: 2}}}
	mc.values[byNameCacheKey("USLAX-APM")] = encodeCached(g)

	result, err := store.ByName(context.Background(), "USLAX-APM")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(7), result.ID)
	assert.NoError(t, mock.ExpectationsWereMet()) // no query expectations set, none should fire
}

func TestStore_ByName_NotFound_ReturnsNilNotError(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	mock.ExpectQuery(`WHERE name = \$1`).WithArgs("ZZUNKNOWN").WillReturnError(pgx.ErrNoRows)

	g, err := store.ByName(context.Background(), "ZZUNKNOWN")

	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ByType_FiltersByTypeID(t *testing.T) {
	mock, _, store := setupMockStore(t)
	defer mock.Close()

	now := time.Now()
	rows := sampleGeofenceRow().AddRow(
		int64(3), "USLAX-RAMP1", "RailRamp", nil, nil, nil,
		"POLYGON((-118.26 33.74,-118.24 33.74,-118.24 33.76,-118.26 33.74))", now, now,
	)

	mock.ExpectQuery(`WHERE type_id = \$1`).WithArgs(string(domain.GeofenceRailRamp)).WillReturnRows(rows)

	result, err := store.ByType(context.Background(), domain.GeofenceRailRamp)

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "USLAX-RAMP1", result[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRingToWKT_ClosesOpenRing(t *testing.T) {
	ring := []domain.Point{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 1, Lat: 1}}
	wkt := ringToWKT(ring)
	assert.Contains(t, wkt, "0.000000 0.000000,1.000000 0.000000,1.000000 1.000000,0.000000 0.000000")
}

func TestWktToRing_RoundTrips(t *testing.T) {
	wkt := "POLYGON((-118.300000 33.700000,-118.200000 33.700000,-118.200000 33.800000,-118.300000 33.700000))"
	ring, err := wktToRing(wkt)

	require.NoError(t, err)
	require.Len(t, ring, 4)
	assert.InDelta(t, -118.3, ring[0].Lon, 1e-6)
	assert.InDelta(t, 33.7, ring[0].Lat, 1e-6)
}
