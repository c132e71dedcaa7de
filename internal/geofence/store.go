// Package geofence persists polygon features and answers the
// point-in-polygon and classification queries the rest of the simulator
// depends on (spec.md §4.1).
package geofence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roieman/container-sim/internal/domain"
	"github.com/roieman/container-sim/pkg/cache"
	"github.com/roieman/container-sim/pkg/database"
	"github.com/roieman/container-sim/pkg/telemetry"
)

// ErrNotFound is returned when a lookup finds no matching geofence.
var ErrNotFound = errors.New("geofence: not found")

// ErrMissingIndex is a setup-time failure: the spatial/name/type indexes
// required for find_containing at the target query rate are absent.
var ErrMissingIndex = errors.New("geofence: required index missing")

// Store answers spatial queries against the geofence table. Reads are
// the hot path (bootstrap aside, the table is never written to during a
// simulation run), so by-name lookups go through an optional cache.
type Store struct {
	db    database.DB
	cache cache.Cache
}

// NewStore wires db and an optional cache (pass cache.NoopCache{} to
// disable caching).
func NewStore(db database.DB, c cache.Cache) *Store {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &Store{db: db, cache: c}
}

// requiredIndexes names the indexes VerifyIndexes checks for. The spatial
// index is a GiST index on the geom column; name and type each need their
// own index per spec.md §4.1.
var requiredIndexes = []string{
	"idx_geofences_geom",
	"idx_geofences_name",
	"idx_geofences_type_id",
}

// VerifyIndexes fails loudly if any required index is missing, per the
// spec's "implementations MUST fail loudly on setup if the required
// indexes are absent."
func (s *Store) VerifyIndexes(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `SELECT indexname FROM pg_indexes WHERE tablename = 'geofences'`)
	if err != nil {
		return fmt.Errorf("failed to inspect indexes: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan index name: %w", err)
		}
		present[name] = true
	}

	var missing []string
	for _, idx := range requiredIndexes {
		if !present[idx] {
			missing = append(missing, idx)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingIndex, strings.Join(missing, ", "))
	}
	return nil
}

// InsertOrUpdate upserts a geofence keyed by its unique name, maintaining
// created_at/updated_at.
func (s *Store) InsertOrUpdate(ctx context.Context, g *domain.Geofence) error {
	ctx, span := telemetry.StartSpan(ctx, "geofence.Store", "InsertOrUpdate")
	defer span.End()

	wkt := ringToWKT(g.Ring)

	query := `
		INSERT INTO geofences (name, type_id, un_locode, smdg_code, description, geom, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, ST_GeomFromText($6, 4326), NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			type_id = EXCLUDED.type_id,
			un_locode = EXCLUDED.un_locode,
			smdg_code = EXCLUDED.smdg_code,
			description = EXCLUDED.description,
			geom = EXCLUDED.geom,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query, g.Name, string(g.TypeID), g.UNLOCode, g.SMDGCode, g.Description, wkt).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert geofence %q: %w", g.Name, err)
	}

	s.cache.Delete(ctx, byNameCacheKey(g.Name))
	return nil
}

// FindContaining returns a single geofence whose polygon contains the
// point, with ties on nested polygons broken by storage order.
func (s *Store) FindContaining(ctx context.Context, lon, lat float64) (*domain.Geofence, error) {
	ctx, span := telemetry.StartSpan(ctx, "geofence.Store", "FindContaining")
	defer span.End()

	query := selectColumns + ` WHERE ST_Contains(geom, ST_SetSRID(ST_Point($1, $2), 4326)) ORDER BY id LIMIT 1`
	row := s.db.QueryRow(ctx, query, lon, lat)

	g, err := scanGeofence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query containing geofence: %w", err)
	}
	return g, nil
}

// FindAllContaining returns every geofence whose polygon contains the
// point, for nested-polygon cases.
func (s *Store) FindAllContaining(ctx context.Context, lon, lat float64) ([]*domain.Geofence, error) {
	ctx, span := telemetry.StartSpan(ctx, "geofence.Store", "FindAllContaining")
	defer span.End()

	query := selectColumns + ` WHERE ST_Contains(geom, ST_SetSRID(ST_Point($1, $2), 4326)) ORDER BY id`
	rows, err := s.db.Query(ctx, query, lon, lat)
	if err != nil {
		return nil, fmt.Errorf("failed to query containing geofences: %w", err)
	}
	defer rows.Close()

	return scanGeofences(rows)
}

// ByName looks up a geofence by its unique name, consulting the cache
// first since this is a read-only, high-frequency lookup.
func (s *Store) ByName(ctx context.Context, name string) (*domain.Geofence, error) {
	ctx, span := telemetry.StartSpan(ctx, "geofence.Store", "ByName")
	defer span.End()

	if cached, err := s.cache.Get(ctx, byNameCacheKey(name)); err == nil {
		if g, decodeErr := decodeCached(cached); decodeErr == nil {
			return g, nil
		}
	}

	query := selectColumns + ` WHERE name = $1`
	row := s.db.QueryRow(ctx, query, name)

	g, err := scanGeofence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query geofence by name: %w", err)
	}

	s.cache.Set(ctx, byNameCacheKey(name), encodeCached(g), 5*time.Minute)
	return g, nil
}

// ByType filters geofences by classification.
func (s *Store) ByType(ctx context.Context, typeID domain.GeofenceType) ([]*domain.Geofence, error) {
	ctx, span := telemetry.StartSpan(ctx, "geofence.Store", "ByType")
	defer span.End()

	query := selectColumns + ` WHERE type_id = $1 ORDER BY id`
	rows, err := s.db.Query(ctx, query, string(typeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences by type: %w", err)
	}
	defer rows.Close()

	return scanGeofences(rows)
}

const selectColumns = `
	SELECT id, name, type_id, un_locode, smdg_code, description,
	       ST_AsText(geom) AS geom_wkt, created_at, updated_at
	FROM geofences
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeofence(row rowScanner) (*domain.Geofence, error) {
	var g domain.Geofence
	var typeID, wkt string
	var unlocode, smdg, description *string

	err := row.Scan(&g.ID, &g.Name, &typeID, &unlocode, &smdg, &description, &wkt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}

	g.TypeID = domain.GeofenceType(typeID)
	if unlocode != nil {
		g.UNLOCode = *unlocode
	}
	if smdg != nil {
		g.SMDGCode = *smdg
	}
	if description != nil {
		g.Description = *description
	}

	ring, err := wktToRing(wkt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geometry for %q: %w", g.Name, err)
	}
	g.Ring = ring

	return &g, nil
}

func scanGeofences(rows pgx.Rows) ([]*domain.Geofence, error) {
	var result []*domain.Geofence
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func byNameCacheKey(name string) string {
	return "geofence:name:" + name
}

// ringToWKT renders a closed polygon ring as WKT, closing it if the
// caller did not duplicate the first vertex.
func ringToWKT(ring []domain.Point) string {
	pts := ring
	if len(pts) > 0 && pts[0] != pts[len(pts)-1] {
		pts = append(append([]domain.Point{}, pts...), pts[0])
	}

	coords := make([]string, len(pts))
	for i, p := range pts {
		coords[i] = strconv.FormatFloat(p.Lon, 'f', 6, 64) + " " + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	return "POLYGON((" + strings.Join(coords, ",") + "))"
}

// wktToRing parses a "POLYGON((lon lat,lon lat,...))" string, the only
// shape ST_AsText ever returns for this table's column type.
func wktToRing(wkt string) ([]domain.Point, error) {
	wkt = strings.TrimSpace(wkt)
	wkt = strings.TrimPrefix(wkt, "POLYGON")
	wkt = strings.TrimSpace(wkt)
	wkt = strings.Trim(wkt, "()")

	parts := strings.Split(wkt, ",")
	ring := make([]domain.Point, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed WKT coordinate: %q", part)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, err
		}
		ring = append(ring, domain.Point{Lon: lon, Lat: lat})
	}
	return ring, nil
}
