// Package regularize squares up building footprints. Geometries are
// projected into the UTM zone of the data, snapped to a per-polygon
// dominant-direction grid and projected back. Failures never propagate: a
// footprint that cannot be regularized keeps its original geometry.
package regularize

import (
	"context"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"golang.org/x/sync/errgroup"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/proj"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/spatial"
)

// Total regularized area drifting further than this from the input area is
// reported as a data-quality warning.
const areaDeviationWarnPct = 5.0

// Params controls the regularization pass.
type Params struct {
	// Enabled toggles the whole pass. Disabled means passthrough with
	// vertex-identical geometries.
	Enabled bool

	// ParallelThreshold is the distance in meters under which neighboring
	// parallel edges collapse into one.
	ParallelThreshold float64

	// SimplifyTolerance is the Douglas-Peucker tolerance in meters applied
	// before direction analysis.
	SimplifyTolerance float64

	// Allow45 permits snapping edges to diagonals as well as right angles.
	Allow45 bool

	// DiagonalThresholdReduction shrinks the angular band in which a
	// diagonal wins over an orthogonal direction, in degrees.
	DiagonalThresholdReduction float64

	// AllowCircles preserves near-circular rings instead of squaring them.
	AllowCircles bool

	// Workers bounds the worker pool. Zero means one worker per CPU.
	Workers int
}

// DefaultParams returns the parameter set used in production runs.
func DefaultParams() Params {
	return Params{
		Enabled:                    true,
		ParallelThreshold:          1.0,
		SimplifyTolerance:          0.5,
		Allow45:                    true,
		DiagonalThresholdReduction: 15,
		AllowCircles:               false,
		Workers:                    0,
	}
}

// Stats reports the outcome of one regularization pass.
type Stats struct {
	Processed     int
	Fallbacks     int
	AreaBefore    float64 // square meters
	AreaAfter     float64 // square meters
	AreaChangePct float64
}

// Regularizer applies footprint regularization to building collections.
type Regularizer struct {
	log    *logger.Logger
	params Params
}

// New creates a Regularizer with the given parameters.
func New(log *logger.Logger, params Params) *Regularizer {
	return &Regularizer{
		log:    log,
		params: params,
	}
}

// Apply regularizes every building footprint. The input slice is not
// modified. Individual failures fall back to the original geometry and are
// counted; only context cancellation aborts the pass.
func (r *Regularizer) Apply(ctx context.Context, buildings []models.Building) ([]models.Building, Stats, error) {
	if !r.params.Enabled || len(buildings) == 0 {
		return buildings, Stats{}, nil
	}

	geoms := make([]models.Geometry, 0, len(buildings))
	for _, b := range buildings {
		if !b.Geometry.IsEmpty() {
			geoms = append(geoms, b.Geometry)
		}
	}
	if len(geoms) == 0 {
		return buildings, Stats{Fallbacks: len(buildings)}, nil
	}

	utm := proj.For(zoneAnchor(geoms))
	toUTM := utm.ToUTM()
	toWGS84 := utm.ToWGS84()

	results := make([]orb.Geometry, len(buildings))
	areasBefore := make([]float64, len(buildings))
	areasAfter := make([]float64, len(buildings))

	workers := r.params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range buildings {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if buildings[i].Geometry.IsEmpty() {
				return nil
			}

			metric := project.Geometry(orb.Clone(buildings[i].Geometry.Geom), toUTM)
			areasBefore[i] = math.Abs(planar.Area(metric))

			regular, err := orthogonalizeGeometry(metric, r.params)
			if err != nil {
				return nil
			}

			areasAfter[i] = math.Abs(planar.Area(regular))
			results[i] = project.Geometry(regular, toWGS84)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	out := append([]models.Building(nil), buildings...)
	stats := Stats{}
	for i := range out {
		if results[i] == nil {
			stats.Fallbacks++
			stats.AreaBefore += areasBefore[i]
			stats.AreaAfter += areasBefore[i]
			continue
		}
		out[i].Geometry = models.NewGeometry(results[i])
		stats.Processed++
		stats.AreaBefore += areasBefore[i]
		stats.AreaAfter += areasAfter[i]
	}

	if stats.AreaBefore > 0 {
		stats.AreaChangePct = (stats.AreaAfter - stats.AreaBefore) / stats.AreaBefore * 100
	}
	fields := map[string]interface{}{
		"processed":       stats.Processed,
		"fallbacks":       stats.Fallbacks,
		"area_change_pct": stats.AreaChangePct,
		"epsg":            utm.EPSG(),
	}
	if math.Abs(stats.AreaChangePct) > areaDeviationWarnPct {
		r.log.Warn("Regularized area deviates from source area", fields)
	} else {
		r.log.Info("Regularized building footprints", fields)
	}

	return out, stats, nil
}

// zoneAnchor picks the point whose UTM zone every footprint projects into:
// the centroid of the unioned footprints. A failed or zero-area union
// degrades to the center of the combined bounds.
func zoneAnchor(geoms []models.Geometry) orb.Point {
	if u, err := spatial.UnionAll(geoms); err == nil && !u.IsEmpty() {
		if center, area := planar.CentroidArea(u.Geom); area > 0 {
			return center
		}
	}

	bound := geoms[0].Bound()
	for _, g := range geoms[1:] {
		bound = bound.Union(g.Bound())
	}
	return bound.Center()
}
