package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/database"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
)

// PostgresStore reads the partitioned source datasets from PostGIS tables.
// Structure layers live in structure_features(region, layer, properties,
// geom); parcels live in property_features(region, properties, geom). The
// bbox prefilter is pushed into the query as an envelope intersection so the
// spatial index does the narrowing.
type PostgresStore struct {
	db *database.Database
}

// NewPostgresStore creates a PostgresStore over an existing connection pool.
func NewPostgresStore(db *database.Database) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

// LoadLayer reads one named layer from a region's structure partition.
func (s *PostgresStore) LoadLayer(ctx context.Context, region, layer string, bbox orb.Bound) (*geojson.FeatureCollection, error) {
	query := `
		SELECT
			properties,
			ST_AsGeoJSON(geom) as geometry
		FROM structure_features
		WHERE region = $1
		  AND layer = $2
		  AND geom && ST_MakeEnvelope($3, $4, $5, $6, 4326)
	`

	rows, err := s.db.Pool.Query(ctx, query, region, layer,
		bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1])
	if err != nil {
		return nil, fmt.Errorf("failed to query layer %s for region %s: %w", layer, region, err)
	}
	defer rows.Close()

	fc, found, err := scanFeatures(rows)
	if err != nil {
		return nil, fmt.Errorf("layer %s region %s: %w", layer, region, err)
	}

	if !found {
		exists, err := s.layerExists(ctx, region, layer)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: region=%s layer=%s", ErrLayerNotFound, region, layer)
		}
	}

	return fc, nil
}

// LoadPropertyLayer reads the parcels layer from a region's property
// partition.
func (s *PostgresStore) LoadPropertyLayer(ctx context.Context, region string, bbox orb.Bound) (*geojson.FeatureCollection, error) {
	query := `
		SELECT
			properties,
			ST_AsGeoJSON(geom) as geometry
		FROM property_features
		WHERE region = $1
		  AND geom && ST_MakeEnvelope($2, $3, $4, $5, 4326)
	`

	rows, err := s.db.Pool.Query(ctx, query, region,
		bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1])
	if err != nil {
		return nil, fmt.Errorf("failed to query parcels for region %s: %w", region, err)
	}
	defer rows.Close()

	fc, found, err := scanFeatures(rows)
	if err != nil {
		return nil, fmt.Errorf("parcels region %s: %w", region, err)
	}

	if !found {
		var exists bool
		err := s.db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM property_features WHERE region = $1)`,
			region,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to probe property partition for region %s: %w", region, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: region=%s layer=%s", ErrLayerNotFound, region, LayerParcels)
		}
	}

	return fc, nil
}

// layerExists distinguishes "nothing in the bbox" from "region has no such
// partition at all", so callers see the same ErrLayerNotFound the file
// backend reports for a missing file.
func (s *PostgresStore) layerExists(ctx context.Context, region, layer string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM structure_features WHERE region = $1 AND layer = $2)`,
		region, layer,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to probe layer %s for region %s: %w", layer, region, err)
	}
	return exists, nil
}

// featureRows is the subset of pgx.Rows scanFeatures needs. Narrowing the
// dependency keeps row mapping testable without a live database.
type featureRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanFeatures maps query rows onto GeoJSON features. The second return
// reports whether any row was seen.
func scanFeatures(rows featureRows) (*geojson.FeatureCollection, bool, error) {
	fc := geojson.NewFeatureCollection()
	found := false

	for rows.Next() {
		var propsJSON []byte
		var geomJSON []byte

		if err := rows.Scan(&propsJSON, &geomJSON); err != nil {
			return nil, found, fmt.Errorf("failed to scan feature row: %w", err)
		}
		found = true

		var geom models.Geometry
		if err := geom.Scan(geomJSON); err != nil {
			return nil, found, fmt.Errorf("failed to parse feature geometry: %w", err)
		}

		feature := geojson.NewFeature(geom.Geom)
		if len(propsJSON) > 0 {
			if err := json.Unmarshal(propsJSON, &feature.Properties); err != nil {
				return nil, found, fmt.Errorf("failed to parse feature properties: %w", err)
			}
		}

		fc.Append(feature)
	}

	if err := rows.Err(); err != nil {
		return nil, found, fmt.Errorf("error iterating feature rows: %w", err)
	}

	return fc, found, nil
}
