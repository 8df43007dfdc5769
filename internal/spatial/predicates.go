package spatial

import (
	"fmt"
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
)

// IntersectResult tags the outcome of an intersection test so callers can
// tell genuine disjointness apart from a test that failed on invalid
// geometry. Invalid results are treated as "does not intersect" downstream
// but stay countable.
type IntersectResult int

const (
	Disjoint IntersectResult = iota
	Intersecting
	Invalid
)

// Intersects tests whether two geometries intersect under a
// boundary-inclusive predicate: touching boundaries count as intersecting.
// Both geometries must be WGS84 polygons or multipolygons.
func Intersects(a, b models.Geometry) IntersectResult {
	ma := a.MultiPolygon()
	mb := b.MultiPolygon()
	if !valid(ma) || !valid(mb) {
		return Invalid
	}

	// Cheap bounding-box rejection before any edge work.
	if !a.Bound().Intersects(b.Bound()) {
		return Disjoint
	}

	for _, pa := range ma {
		for _, pb := range mb {
			if polygonsIntersect(pa, pb) {
				return Intersecting
			}
		}
	}
	return Disjoint
}

// IntersectionArea computes the area of the geometric intersection of two
// geometries, in squared coordinate units. Used as the deduplication ranking
// key, matching planar area semantics in the source coordinate reference.
func IntersectionArea(a, b models.Geometry) (float64, error) {
	ma := a.MultiPolygon()
	mb := b.MultiPolygon()
	if !valid(ma) || !valid(mb) {
		return 0, fmt.Errorf("intersection area: invalid geometry")
	}

	out, err := polygol.Intersection(toPolygol(ma), toPolygol(mb))
	if err != nil {
		return 0, fmt.Errorf("intersection area: %w", err)
	}

	return math.Abs(planar.Area(fromPolygol(out))), nil
}

// UnionAll merges a set of geometries into one. Empty or invalid members are
// skipped; an input with no usable member yields an empty Geometry and no
// error.
func UnionAll(geoms []models.Geometry) (models.Geometry, error) {
	var acc orb.MultiPolygon

	for _, g := range geoms {
		mp := g.MultiPolygon()
		if !valid(mp) {
			continue
		}
		if acc == nil {
			acc = mp
			continue
		}

		out, err := polygol.Union(toPolygol(acc), toPolygol(mp))
		if err != nil {
			return models.Geometry{}, fmt.Errorf("union: %w", err)
		}
		acc = fromPolygol(out)
	}

	if acc == nil {
		return models.Geometry{}, nil
	}
	return models.NewGeometry(acc), nil
}

// valid reports whether a multipolygon has at least one ring with enough
// points to enclose area, and finite coordinates.
func valid(mp orb.MultiPolygon) bool {
	if len(mp) == 0 {
		return false
	}
	for _, poly := range mp {
		if len(poly) == 0 {
			return false
		}
		for _, ring := range poly {
			if len(ring) < 3 {
				return false
			}
			for _, pt := range ring {
				if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) ||
					math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
					return false
				}
			}
		}
	}
	return true
}

// polygonsIntersect reports boundary-inclusive intersection of two polygons:
// any pair of crossing or touching edges, or full containment either way.
func polygonsIntersect(a, b orb.Polygon) bool {
	for _, ra := range a {
		for _, rb := range b {
			if ringsTouch(ra, rb) {
				return true
			}
		}
	}

	// No edge contact: one polygon may lie entirely inside the other.
	if planar.PolygonContains(a, b[0][0]) {
		return true
	}
	if planar.PolygonContains(b, a[0][0]) {
		return true
	}
	return false
}

func ringsTouch(a, b orb.Ring) bool {
	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect reports whether segments p1-p2 and q1-q2 share any point,
// including endpoints and collinear overlap.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(q1, q2, p1) {
		return true
	}
	if d2 == 0 && onSegment(q1, q2, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, q2) {
		return true
	}
	return false
}

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether c, already known collinear with a-b, lies within
// the segment's extent.
func onSegment(a, b, c orb.Point) bool {
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}

func toPolygol(mp orb.MultiPolygon) [][][][]float64 {
	g := make([][][][]float64, 0, len(mp))
	for _, poly := range mp {
		rings := make([][][]float64, 0, len(poly))
		for _, ring := range poly {
			pts := make([][]float64, 0, len(ring))
			for _, pt := range ring {
				pts = append(pts, []float64{pt[0], pt[1]})
			}
			rings = append(rings, pts)
		}
		g = append(g, rings)
	}
	return g
}

func fromPolygol(g [][][][]float64) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, poly := range g {
		rings := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			pts := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				if len(pt) < 2 {
					continue
				}
				pts = append(pts, orb.Point{pt[0], pt[1]})
			}
			rings = append(rings, pts)
		}
		mp = append(mp, rings)
	}
	return mp
}
