package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// Geometry wraps an orb geometry in WGS84 (SRID 4326) coordinates.
// It carries footprints across the loaders, the association engine, and the
// output layers, and knows how to cross database and JSON boundaries as
// GeoJSON. Only Polygon and MultiPolygon geometries are accepted; source
// datasets deliver nothing else.
type Geometry struct {
	Geom orb.Geometry
}

// NewGeometry wraps an orb geometry. Passing a nil geometry yields an empty
// Geometry, which IsEmpty reports.
func NewGeometry(g orb.Geometry) Geometry {
	return Geometry{Geom: g}
}

// IsEmpty reports whether the geometry is absent or has no coordinates.
func (g Geometry) IsEmpty() bool {
	if g.Geom == nil {
		return true
	}
	switch geom := g.Geom.(type) {
	case orb.Polygon:
		return len(geom) == 0 || len(geom[0]) == 0
	case orb.MultiPolygon:
		return len(geom) == 0
	default:
		return false
	}
}

// Bound returns the bounding box of the geometry.
// The zero Bound is returned for empty geometries.
func (g Geometry) Bound() orb.Bound {
	if g.Geom == nil {
		return orb.Bound{}
	}
	return g.Geom.Bound()
}

// WKT renders the geometry as a well-known text string.
// Empty geometries render as an empty string.
func (g Geometry) WKT() string {
	if g.Geom == nil {
		return ""
	}
	return wkt.MarshalString(g.Geom)
}

// MultiPolygon coerces the geometry to an orb.MultiPolygon.
// A Polygon becomes a single-element MultiPolygon; anything else is nil.
func (g Geometry) MultiPolygon() orb.MultiPolygon {
	switch geom := g.Geom.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{geom}
	case orb.MultiPolygon:
		return geom
	default:
		return nil
	}
}

// Scan implements sql.Scanner for reading geometry from the database.
// PostGIS returns GeoJSON via ST_AsGeoJSON, as []byte or string.
func (g *Geometry) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan Geometry: expected []byte or string, got %T", value)
	}

	return g.UnmarshalJSON(data)
}

// Value implements driver.Valuer for writing geometry to the database.
// Returns a GeoJSON string for use with ST_GeomFromGeoJSON in raw SQL queries.
func (g Geometry) Value() (driver.Value, error) {
	if g.IsEmpty() {
		return nil, nil
	}

	data, err := g.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry to GeoJSON: %w", err)
	}

	return string(data), nil
}

// MarshalJSON implements json.Marshaler, producing a GeoJSON geometry object.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.Geom == nil {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(g.Geom).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
// Accepts Polygon and MultiPolygon geometries only.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var geom geojson.Geometry
	if err := geom.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to unmarshal geometry: %w", err)
	}

	decoded := geom.Geometry()
	switch decoded.(type) {
	case orb.Polygon, orb.MultiPolygon:
		g.Geom = decoded
	default:
		return fmt.Errorf("expected Polygon or MultiPolygon type, got %s", decoded.GeoJSONType())
	}

	return nil
}
