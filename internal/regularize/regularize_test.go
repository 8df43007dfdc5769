package regularize

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/proj"
)

func ringOf(pts ...orb.Point) orb.Ring {
	r := make(orb.Ring, 0, len(pts)+1)
	r = append(r, pts...)
	if r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// cornerAngles returns the interior angle at every corner in degrees.
func cornerAngles(r orb.Ring) []float64 {
	n := len(r) - 1
	angles := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		prev := r[(i-1+n)%n]
		next := r[(i+1)%n]
		ax, ay := r[i][0]-prev[0], r[i][1]-prev[1]
		bx, by := next[0]-r[i][0], next[1]-r[i][1]
		dot := ax*bx + ay*by
		cos := dot / (math.Hypot(ax, ay) * math.Hypot(bx, by))
		angles = append(angles, math.Acos(math.Max(-1, math.Min(1, cos)))*180/math.Pi)
	}
	return angles
}

func assertRightAngles(t *testing.T, r orb.Ring) {
	t.Helper()
	for _, a := range cornerAngles(r) {
		assert.InDelta(t, 90, a, 1e-6)
	}
}

func TestOrthogonalize_RectangleWithNoise(t *testing.T) {
	poly := orb.Polygon{ringOf(
		orb.Point{0, 0}, orb.Point{5, 0.3}, orb.Point{10, -0.25}, orb.Point{20, 0},
		orb.Point{20, 10}, orb.Point{12, 10.3}, orb.Point{0, 10},
	)}

	out, err := orthogonalizePolygon(poly, DefaultParams())

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0], 5)
	assertRightAngles(t, out[0])
	assert.InDelta(t, 200, math.Abs(planar.Area(out)), 1e-6)
}

func TestOrthogonalize_RotatedRectangle(t *testing.T) {
	sin, cos := math.Sin(30*math.Pi/180), math.Cos(30*math.Pi/180)
	rot := func(x, y float64) orb.Point {
		return orb.Point{x*cos - y*sin, x*sin + y*cos}
	}
	poly := orb.Polygon{ringOf(
		rot(0, 0), rot(5, 0.3), rot(20, 0), rot(20, 10), rot(12, -0.3+10), rot(0, 10),
	)}

	out, err := orthogonalizePolygon(poly, DefaultParams())

	require.NoError(t, err)
	assert.Len(t, out[0], 5)
	assertRightAngles(t, out[0])
	assert.InDelta(t, 200, math.Abs(planar.Area(out)), 1e-6)

	// The dominant direction of the source must survive regularization.
	dx := out[0][1][0] - out[0][0][0]
	dy := out[0][1][1] - out[0][0][1]
	deg := math.Atan2(dy, dx) * 180 / math.Pi
	deg = math.Mod(math.Mod(deg, 90)+90, 90)
	assert.InDelta(t, 30, deg, 1e-6)
}

func TestOrthogonalize_LShapeIsStable(t *testing.T) {
	poly := orb.Polygon{ringOf(
		orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{10, 4},
		orb.Point{4, 4}, orb.Point{4, 10}, orb.Point{0, 10},
	)}

	out, err := orthogonalizePolygon(poly, DefaultParams())
	require.NoError(t, err)
	assert.Len(t, out[0], 7)
	assertRightAngles(t, out[0])
	assert.InDelta(t, 64, math.Abs(planar.Area(out)), 1e-6)

	// Running the result through again must not change it further.
	again, err := orthogonalizePolygon(out, DefaultParams())
	require.NoError(t, err)
	assert.Len(t, again[0], 7)
	assert.InDelta(t, 64, math.Abs(planar.Area(again)), 1e-6)
}

func TestOrthogonalize_DropsShortJog(t *testing.T) {
	p := DefaultParams()
	p.SimplifyTolerance = 0.1

	poly := orb.Polygon{ringOf(
		orb.Point{0, 0}, orb.Point{6, 0}, orb.Point{6, 0.6},
		orb.Point{12, 0.6}, orb.Point{12, 10}, orb.Point{0, 10},
	)}

	out, err := orthogonalizePolygon(poly, p)

	require.NoError(t, err)
	// The 0.6 meter step sits under the merge threshold, so the two bottom
	// runs fuse into a single length-weighted edge at y = 0.3.
	assert.Len(t, out[0], 5)
	assertRightAngles(t, out[0])
	assert.InDelta(t, 116.4, math.Abs(planar.Area(out)), 1e-6)
}

func TestOrthogonalize_KeepsLargeStep(t *testing.T) {
	p := DefaultParams()
	p.SimplifyTolerance = 0.1

	poly := orb.Polygon{ringOf(
		orb.Point{0, 0}, orb.Point{6, 0}, orb.Point{6, 3},
		orb.Point{12, 3}, orb.Point{12, 10}, orb.Point{0, 10},
	)}

	out, err := orthogonalizePolygon(poly, p)

	require.NoError(t, err)
	assert.Len(t, out[0], 7)
	assertRightAngles(t, out[0])
	assert.InDelta(t, 102, math.Abs(planar.Area(out)), 1e-6)
}

func TestOrthogonalize_PreservesDiagonalWhenAllowed(t *testing.T) {
	poly := orb.Polygon{ringOf(
		orb.Point{0, 0}, orb.Point{7, 0}, orb.Point{10, 3},
		orb.Point{10, 10}, orb.Point{0, 10},
	)}

	out, err := orthogonalizePolygon(poly, DefaultParams())

	require.NoError(t, err)
	assert.Len(t, out[0], 6)
	assert.InDelta(t, 95.5, math.Abs(planar.Area(out)), 1e-6)
}

func TestOrthogonalize_SquaresDiagonalWhenDisallowed(t *testing.T) {
	p := DefaultParams()
	p.Allow45 = false

	poly := orb.Polygon{ringOf(
		orb.Point{0, 0}, orb.Point{7, 0}, orb.Point{10, 3},
		orb.Point{10, 10}, orb.Point{0, 10},
	)}

	out, err := orthogonalizePolygon(poly, p)

	require.NoError(t, err)
	assert.Len(t, out[0], 5)
	assertRightAngles(t, out[0])
	assert.InDelta(t, 94.34, math.Abs(planar.Area(out)), 0.01)
}

func circle24(cx, cy, r float64) orb.Ring {
	ring := make(orb.Ring, 0, 25)
	for i := 0; i < 24; i++ {
		a := float64(i) / 24 * 2 * math.Pi
		ring = append(ring, orb.Point{cx + r*math.Cos(a), cy + r*math.Sin(a)})
	}
	return append(ring, ring[0])
}

func TestOrthogonalize_CirclePreservation(t *testing.T) {
	poly := orb.Polygon{circle24(10, 10, 5)}

	p := DefaultParams()
	p.AllowCircles = true
	kept, err := orthogonalizePolygon(poly, p)
	require.NoError(t, err)
	assert.True(t, orb.Equal(poly, kept))

	p.AllowCircles = false
	squared, err := orthogonalizePolygon(poly, p)
	require.NoError(t, err)
	assert.Less(t, len(squared[0]), 25)
	assert.InDelta(t, 78, math.Abs(planar.Area(squared)), 16)
}

func sydneyFootprint(jitter bool) models.Geometry {
	const lon, lat = 151.2, -33.8688
	const w, h = 0.0002, 0.0001
	pts := []orb.Point{{lon, lat}}
	if jitter {
		// Under half a meter of noise on the southern edge.
		pts = append(pts, orb.Point{lon + w/2, lat + 0.000004})
	}
	pts = append(pts,
		orb.Point{lon + w, lat},
		orb.Point{lon + w, lat + h},
		orb.Point{lon, lat + h},
	)
	return models.NewGeometry(orb.Polygon{ringOf(pts...)})
}

func TestApply_Disabled(t *testing.T) {
	r := New(logger.Nop(), Params{Enabled: false})
	in := []models.Building{{StructureID: "s1", Geometry: sydneyFootprint(true)}}

	out, stats, err := r.Apply(context.Background(), in)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].Geometry.WKT(), out[0].Geometry.WKT())
	assert.Equal(t, Stats{}, stats)
}

func TestApply_RegularizesNoisyFootprint(t *testing.T) {
	p := DefaultParams()
	p.Workers = 2
	r := New(logger.Nop(), p)
	in := []models.Building{{StructureID: "s1", Geometry: sydneyFootprint(true)}}

	out, stats, err := r.Apply(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Fallbacks)
	assert.Less(t, math.Abs(stats.AreaChangePct), 5.0)

	ring := out[0].Geometry.Geom.(orb.Polygon)[0]
	assert.Len(t, ring, 5)

	// The input slice must keep its original jittered geometry.
	inRing := in[0].Geometry.Geom.(orb.Polygon)[0]
	assert.Len(t, inRing, 6)
}

func TestApply_FallsBackOnDegenerateGeometry(t *testing.T) {
	collinear := models.NewGeometry(orb.Polygon{ringOf(
		orb.Point{151.2, -33.8},
		orb.Point{151.2001, -33.8001},
		orb.Point{151.2002, -33.8002},
	)})
	r := New(logger.Nop(), DefaultParams())
	in := []models.Building{{StructureID: "s1", Geometry: collinear}}

	out, stats, err := r.Apply(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 1, stats.Fallbacks)
	assert.Equal(t, in[0].Geometry.WKT(), out[0].Geometry.WKT())
}

func TestApply_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(logger.Nop(), DefaultParams())
	_, _, err := r.Apply(ctx, []models.Building{{StructureID: "s1", Geometry: sydneyFootprint(false)}})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestZoneAnchor_FollowsBuildingMass(t *testing.T) {
	// A large footprint west of 150E and a tiny one east of it. The anchor
	// is the centroid of the unioned footprints, so it lands in zone 55 with
	// the mass; the midpoint of the combined bounds would fall in zone 56.
	big := models.NewGeometry(orb.Polygon{ringOf(
		orb.Point{149.0, -34}, orb.Point{149.5, -34},
		orb.Point{149.5, -33.5}, orb.Point{149.0, -33.5},
	)})
	small := models.NewGeometry(orb.Polygon{ringOf(
		orb.Point{151.0, -34}, orb.Point{151.01, -34},
		orb.Point{151.01, -33.99}, orb.Point{151.0, -33.99},
	)})

	anchor := zoneAnchor([]models.Geometry{big, small})

	assert.Less(t, anchor[0], 150.0)
	assert.Equal(t, 55, proj.For(anchor).Zone())
	assert.Equal(t, 32755, proj.For(anchor).EPSG())
}

func TestZoneAnchor_DegenerateFallsBackToBounds(t *testing.T) {
	// Quarter-degree steps keep the zero-area computation exact, so the
	// union has no centroid and the combined bounds stand in.
	collinear := models.NewGeometry(orb.Polygon{ringOf(
		orb.Point{150.0, -33.0},
		orb.Point{150.25, -33.25},
		orb.Point{151.0, -34.0},
	)})

	anchor := zoneAnchor([]models.Geometry{collinear})

	assert.InDelta(t, 150.5, anchor[0], 1e-9)
	assert.InDelta(t, -33.5, anchor[1], 1e-9)
}

func TestApply_NearFixedPoint(t *testing.T) {
	r := New(logger.Nop(), DefaultParams())
	in := []models.Building{{StructureID: "s1", Geometry: sydneyFootprint(false)}}

	once, _, err := r.Apply(context.Background(), in)
	require.NoError(t, err)
	twice, _, err := r.Apply(context.Background(), once)
	require.NoError(t, err)

	r1 := once[0].Geometry.Geom.(orb.Polygon)[0]
	r2 := twice[0].Geometry.Geom.(orb.Polygon)[0]
	assert.Equal(t, len(r1), len(r2))

	a1 := math.Abs(planar.Area(once[0].Geometry.Geom))
	a2 := math.Abs(planar.Area(twice[0].Geometry.Geom))
	assert.InDelta(t, a1, a2, a1*0.01)
}
