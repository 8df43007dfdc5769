package regularize

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Rings whose isoperimetric quotient exceeds this are treated as circles
// when circle preservation is enabled. A perfect circle scores 1.0.
const circleCircularityThreshold = 0.9

// gridLine is an infinite line in the plane, expressed as direction angle
// plus signed normal offset: every point p on the line satisfies
// p.n = offset, with n the left normal of the direction vector.
type gridLine struct {
	class  int     // snapped direction in degrees relative to the dominant angle
	angle  float64 // absolute direction in radians
	offset float64
	weight float64   // cumulative source edge length
	start  orb.Point // ring vertex where the source run begins
}

// orthogonalizeGeometry regularizes a polygonal geometry in metric
// coordinates. Non-polygonal input is rejected.
func orthogonalizeGeometry(g orb.Geometry, p Params) (orb.Geometry, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		return orthogonalizePolygon(geom, p)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(geom))
		for _, poly := range geom {
			op, err := orthogonalizePolygon(poly, p)
			if err != nil {
				return nil, err
			}
			out = append(out, op)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot regularize geometry type %s", g.GeoJSONType())
	}
}

// orthogonalizePolygon squares up a single polygon. The exterior ring sets
// the dominant direction; holes are snapped to the same grid so the result
// stays visually coherent. A hole that cannot be regularized is dropped, a
// failing exterior fails the polygon.
func orthogonalizePolygon(poly orb.Polygon, p Params) (orb.Polygon, error) {
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, errors.New("polygon has no usable exterior ring")
	}

	exterior, domDeg, err := orthogonalizeRing(poly[0], p, nil)
	if err != nil {
		return nil, err
	}

	out := orb.Polygon{exterior}
	for _, hole := range poly[1:] {
		h, _, err := orthogonalizeRing(hole, p, &domDeg)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// orthogonalizeRing rebuilds one ring from straight lines snapped to the
// dominant direction grid. When forcedDeg is non-nil the ring reuses that
// dominant angle instead of estimating its own.
func orthogonalizeRing(ring orb.Ring, p Params, forcedDeg *float64) (orb.Ring, float64, error) {
	if p.AllowCircles && isNearCircle(ring) {
		return ring.Clone(), 0, nil
	}

	simplified, ok := simplify.DouglasPeucker(p.SimplifyTolerance).Simplify(ring.Clone()).(orb.Ring)
	if !ok || len(simplified) < 4 {
		return nil, 0, errors.New("ring collapsed during simplification")
	}

	edges := ringEdges(simplified)
	if len(edges) < 3 {
		return nil, 0, errors.New("ring has too few distinct edges")
	}

	domDeg := dominantDirection(edges)
	if forcedDeg != nil {
		domDeg = *forcedDeg
	}

	runs := classifyRuns(edges, domDeg, p)
	if len(runs) < 3 {
		return nil, 0, errors.New("ring collapsed to fewer than three edge directions")
	}

	lines := mergeRuns(runs, domDeg, p.ParallelThreshold)
	if len(lines) < 3 {
		return nil, 0, errors.New("ring collapsed during parallel-run merging")
	}

	out := make(orb.Ring, 0, len(lines)+1)
	for i := range lines {
		v, err := intersectLines(lines[i], lines[(i+1)%len(lines)])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	out = append(out, out[0])

	area := planar.Area(out)
	if math.IsNaN(area) || math.IsInf(area, 0) || math.Abs(area) < 1e-6 {
		return nil, 0, errors.New("regularized ring is degenerate")
	}
	if (area < 0) != (planar.Area(simplified) < 0) {
		reverseRing(out)
	}

	return out, domDeg, nil
}

type ringEdge struct {
	from, to orb.Point
	length   float64
}

func ringEdges(ring orb.Ring) []ringEdge {
	edges := make([]ringEdge, 0, len(ring)-1)
	for i := 0; i < len(ring)-1; i++ {
		length := math.Hypot(ring[i+1][0]-ring[i][0], ring[i+1][1]-ring[i][1])
		if length == 0 {
			continue
		}
		edges = append(edges, ringEdge{from: ring[i], to: ring[i+1], length: length})
	}
	return edges
}

// dominantDirection estimates the ring's principal axis in degrees via a
// length-weighted circular mean. Folding angles by four makes directions
// 90 degrees apart reinforce each other.
func dominantDirection(edges []ringEdge) float64 {
	var sx, sy float64
	for _, e := range edges {
		theta := math.Atan2(e.to[1]-e.from[1], e.to[0]-e.from[0])
		sx += e.length * math.Cos(4*theta)
		sy += e.length * math.Sin(4*theta)
	}
	return math.Atan2(sy, sx) / 4 * 180 / math.Pi
}

// classifyEdge snaps an edge direction to 0, 45, 90 or 135 degrees relative
// to the dominant angle. Diagonals only win when they beat the best
// orthogonal class by the configured reduction margin.
func classifyEdge(thetaDeg, domDeg float64, p Params) int {
	rel := normalizeDeg(thetaDeg - domDeg)

	d0 := math.Min(rel, 180-rel)
	d90 := math.Abs(rel - 90)
	ortho, dOrtho := 0, d0
	if d90 < d0 {
		ortho, dOrtho = 90, d90
	}

	if p.Allow45 {
		d45 := math.Abs(rel - 45)
		d135 := math.Abs(rel - 135)
		diag, dDiag := 45, d45
		if d135 < d45 {
			diag, dDiag = 135, d135
		}
		if dDiag+p.DiagonalThresholdReduction < dOrtho {
			return diag
		}
	}
	return ortho
}

// classifyRuns groups consecutive equally-classed edges into grid lines.
// The grouping is circular: a run crossing the ring start counts once.
func classifyRuns(edges []ringEdge, domDeg float64, p Params) []gridLine {
	type run struct {
		class     int
		weight    float64
		offsetSum float64
		start     orb.Point
	}

	var runs []run
	for _, e := range edges {
		theta := math.Atan2(e.to[1]-e.from[1], e.to[0]-e.from[0]) * 180 / math.Pi
		class := classifyEdge(theta, domDeg, p)

		n := normalFor(domDeg, class)
		mid := orb.Point{(e.from[0] + e.to[0]) / 2, (e.from[1] + e.to[1]) / 2}
		proj := mid[0]*n[0] + mid[1]*n[1]

		if len(runs) == 0 || runs[len(runs)-1].class != class {
			runs = append(runs, run{class: class, start: e.from})
		}
		r := &runs[len(runs)-1]
		r.weight += e.length
		r.offsetSum += e.length * proj
	}

	if len(runs) > 1 && runs[0].class == runs[len(runs)-1].class {
		last := runs[len(runs)-1]
		runs[0].weight += last.weight
		runs[0].offsetSum += last.offsetSum
		runs[0].start = last.start
		runs = runs[:len(runs)-1]
	}

	lines := make([]gridLine, 0, len(runs))
	for _, r := range runs {
		lines = append(lines, gridLine{
			class:  r.class,
			angle:  (domDeg + float64(r.class)) * math.Pi / 180,
			offset: r.offsetSum / r.weight,
			weight: r.weight,
			start:  r.start,
		})
	}
	return lines
}

// dropShortJogs removes perpendicular steps no longer than the threshold
// whose flanking runs are parallel and close enough to fuse. The flanking
// runs collapse into one weighted line.
func dropShortJogs(runs []gridLine, threshold float64) []gridLine {
	for len(runs) >= 5 {
		removed := false
		for i := range runs {
			prev := (i - 1 + len(runs)) % len(runs)
			next := (i + 1) % len(runs)
			if runs[prev].class != runs[next].class {
				continue
			}
			if runs[i].weight > threshold ||
				math.Abs(runs[prev].offset-runs[next].offset) > threshold {
				continue
			}

			tw := runs[prev].weight + runs[next].weight
			runs[prev].offset = (runs[prev].offset*runs[prev].weight + runs[next].offset*runs[next].weight) / tw
			runs[prev].weight = tw

			out := make([]gridLine, 0, len(runs)-2)
			for j := range runs {
				if j != i && j != next {
					out = append(out, runs[j])
				}
			}
			runs = out
			removed = true
			break
		}
		if !removed {
			break
		}
	}
	return runs
}

// mergeRuns folds neighboring parallel lines that sit within the merge
// threshold into one weighted line, and bridges parallel lines further
// apart with a perpendicular connector so consecutive lines always
// intersect.
func mergeRuns(runs []gridLine, domDeg float64, threshold float64) []gridLine {
	runs = dropShortJogs(runs, threshold)

	lines := make([]gridLine, 0, len(runs)+2)
	for _, ln := range runs {
		if n := len(lines); n > 0 && lines[n-1].class == ln.class {
			last := &lines[n-1]
			if math.Abs(last.offset-ln.offset) <= threshold {
				tw := last.weight + ln.weight
				last.offset = (last.offset*last.weight + ln.offset*ln.weight) / tw
				last.weight = tw
				continue
			}
			lines = append(lines, connectorBetween(*last, ln, domDeg))
		}
		lines = append(lines, ln)
	}

	for len(lines) > 1 && lines[0].class == lines[len(lines)-1].class {
		last := lines[len(lines)-1]
		first := &lines[0]
		if math.Abs(first.offset-last.offset) <= threshold {
			tw := first.weight + last.weight
			first.offset = (first.offset*first.weight + last.offset*last.weight) / tw
			first.weight = tw
			lines = lines[:len(lines)-1]
			continue
		}
		lines = append(lines, connectorBetween(last, *first, domDeg))
		break
	}

	return lines
}

// connectorBetween builds the perpendicular line joining two parallel grid
// lines, anchored at the ring vertex where the second run begins.
func connectorBetween(prev, next gridLine, domDeg float64) gridLine {
	class := (next.class + 90) % 180
	n := normalFor(domDeg, class)
	return gridLine{
		class:  class,
		angle:  (domDeg + float64(class)) * math.Pi / 180,
		offset: next.start[0]*n[0] + next.start[1]*n[1],
		weight: math.Abs(prev.offset - next.offset),
		start:  next.start,
	}
}

func intersectLines(a, b gridLine) (orb.Point, error) {
	na := orb.Point{-math.Sin(a.angle), math.Cos(a.angle)}
	nb := orb.Point{-math.Sin(b.angle), math.Cos(b.angle)}

	det := na[0]*nb[1] - na[1]*nb[0]
	if math.Abs(det) < 1e-9 {
		return orb.Point{}, errors.New("consecutive grid lines are parallel")
	}

	x := (a.offset*nb[1] - b.offset*na[1]) / det
	y := (na[0]*b.offset - nb[0]*a.offset) / det
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return orb.Point{}, errors.New("grid line intersection is not finite")
	}
	return orb.Point{x, y}, nil
}

func normalFor(domDeg float64, class int) orb.Point {
	rad := (domDeg + float64(class)) * math.Pi / 180
	return orb.Point{-math.Sin(rad), math.Cos(rad)}
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 180)
	if d < 0 {
		d += 180
	}
	return d
}

func isNearCircle(ring orb.Ring) bool {
	if len(ring) < 10 {
		return false
	}
	perimeter := planar.Length(ring)
	if perimeter == 0 {
		return false
	}
	area := math.Abs(planar.Area(ring))
	return 4*math.Pi*area/(perimeter*perimeter) >= circleCircularityThreshold
}

func reverseRing(r orb.Ring) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}
