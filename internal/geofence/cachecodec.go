package geofence

import (
	"encoding/json"

	"github.com/roieman/container-sim/internal/domain"
)

// cachedGeofence mirrors domain.Geofence's exported shape for JSON
// round-tripping through the cache value string.
type cachedGeofence struct {
	ID          int64
	Name        string
	TypeID      domain.GeofenceType
	UNLOCode    string
	SMDGCode    string
	Description string
	Ring        []domain.Point
}

func encodeCached(g *domain.Geofence) string {
	b, err := json.Marshal(cachedGeofence{
		ID: g.ID, Name: g.Name, TypeID: g.TypeID,
		UNLOCode: g.UNLOCode, SMDGCode: g.SMDGCode, Description: g.Description,
		Ring: g.Ring,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeCached(s string) (*domain.Geofence, error) {
	var c cachedGeofence
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, err
	}
	return &domain.Geofence{
		ID: c.ID, Name: c.Name, TypeID: c.TypeID,
		UNLOCode: c.UNLOCode, SMDGCode: c.SMDGCode, Description: c.Description,
		Ring: c.Ring,
	}, nil
}
