package store

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Layer names within a region's structure partition, plus the single layer of
// the property partition. These match the upstream dataset layout.
const (
	LayerStructures  = "structures"
	LayerSolarPanels = "solar_panels"
	LayerPoolHeaters = "pool_heaters"
	LayerParcels     = "parcels"
)

// ErrLayerNotFound signals that a region has no partition for the requested
// layer. This is a legitimate, non-fatal condition: not every region ships
// every layer.
var ErrLayerNotFound = errors.New("layer not found")

// LayerStore provides bounding-box prefiltered access to the partitioned
// source datasets. The bbox is an I/O-level prefilter only; precise AOI
// filtering happens downstream. Returned features are WGS84 and carry at
// minimum a geometry; attribute interpretation belongs to the loader.
//
// A missing partition yields ErrLayerNotFound. An existing but empty layer
// yields an empty collection, not an error.
type LayerStore interface {
	// LoadLayer reads one named layer from a region's structure partition.
	LoadLayer(ctx context.Context, region, layer string, bbox orb.Bound) (*geojson.FeatureCollection, error)

	// LoadPropertyLayer reads the parcels layer from a region's property
	// partition.
	LoadPropertyLayer(ctx context.Context, region string, bbox orb.Bound) (*geojson.FeatureCollection, error)
}

// clipToBound retains the features whose geometry bounding box intersects the
// prefilter bbox, preserving input order. A zero bbox keeps everything.
func clipToBound(fc *geojson.FeatureCollection, bbox orb.Bound) *geojson.FeatureCollection {
	if bbox.IsZero() {
		return fc
	}

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if f.Geometry.Bound().Intersects(bbox) {
			out.Append(f)
		}
	}
	return out
}
