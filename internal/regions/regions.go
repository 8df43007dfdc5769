package regions

import (
	"errors"

	"github.com/paulmach/orb"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/spatial"
)

// ErrNoRegionMatch signals that no region extent intersects the AOI.
// Callers must treat this as fatal for the run: without a region there is no
// source partition to load.
var ErrNoRegionMatch = errors.New("no region extent intersects the area of interest")

// Extent is the rectangular geographic coverage of one data partition.
type Extent struct {
	Code   string
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// StateBounds maps each state partition to its coverage rectangle.
// Declaration order is the resolution order and must stay stable; resolver
// output reproduces it.
var StateBounds = []Extent{
	{Code: "NSW", MinLon: 141.883391, MinLat: -36.120228, MaxLon: 153.636795, MaxLat: -28.165654},
	{Code: "VIC", MinLon: 141.988271, MinLat: -38.634372, MaxLon: 146.987789, MaxLat: -34.119868},
	{Code: "QLD", MinLon: 145.596151, MinLat: -28.574471, MaxLon: 153.551443, MaxLat: -16.723084},
	{Code: "WA", MinLon: 115.582252, MinLat: -33.4476, MaxLon: 116.320862, MaxLat: -31.485581},
	{Code: "SA", MinLon: 137.501566, MinLat: -35.588245, MaxLon: 140.800519, MaxLat: -32.465986},
	{Code: "ACT", MinLon: 148.973766, MinLat: -35.480152, MaxLon: 149.231645, MaxLat: -35.139768},
	{Code: "TAS", MinLon: 145.653797, MinLat: -43.105749, MaxLon: 147.534922, MaxLat: -40.954031},
	{Code: "NT", MinLon: 130.818874, MinLat: -12.629241, MaxLon: 131.177811, MaxLat: -12.349308},
}

// Bound returns the extent as an orb bounding box.
func (e Extent) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.MinLon, e.MinLat},
		Max: orb.Point{e.MaxLon, e.MaxLat},
	}
}

// Polygon returns the extent rectangle as a closed polygon, for the true
// polygon-against-rectangle intersection test.
func (e Extent) Polygon() models.Geometry {
	return models.NewGeometry(e.Bound().ToPolygon())
}

// Resolve returns the codes of every region whose extent rectangle truly
// intersects the AOI polygon, in StateBounds declaration order. The test is
// polygon against rectangle, not bounding box against bounding box: an AOI
// whose bbox clips a rectangle the polygon itself misses is not matched.
// Returns ErrNoRegionMatch when no extent intersects.
func Resolve(aoi models.Geometry) ([]string, error) {
	var codes []string
	for _, extent := range StateBounds {
		if spatial.Intersects(aoi, extent.Polygon()) == spatial.Intersecting {
			codes = append(codes, extent.Code)
		}
	}

	if len(codes) == 0 {
		return nil, ErrNoRegionMatch
	}
	return codes, nil
}

// CoverageBound returns the bounding box enclosing every region extent.
// The AOI fetch uses it to scope the remote collection query.
func CoverageBound() orb.Bound {
	bound := StateBounds[0].Bound()
	for _, extent := range StateBounds[1:] {
		bound = bound.Union(extent.Bound())
	}
	return bound
}
