package assoc

import (
	"errors"
	"sort"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/spatial"
)

// ErrNoAssociations signals that the join produced zero structure-property
// pairs. The pipeline cannot emit records without at least one association,
// so callers must treat this as fatal.
var ErrNoAssociations = errors.New("no structure-property associations found")

// Result carries the joined associations plus the counters the pipeline
// reports after the join.
type Result struct {
	Associations []models.Association

	// Unmatched is the number of structures dropped because no parcel
	// carried their parcel ID.
	Unmatched int

	// UnmatchedPct is Unmatched over the structure input count, in percent.
	UnmatchedPct float64

	// DuplicatesRemoved counts join rows discarded by deduplication.
	DuplicatesRemoved int

	// IntersectionFailures counts overlap computations that failed during
	// deduplication. A failed overlap ranks as zero.
	IntersectionFailures int
}

// Engine joins structures to property parcels on parcel ID. With
// deduplication enabled, a structure that joined more than one parcel row
// keeps only the association with the largest geometric overlap.
type Engine struct {
	log   *logger.Logger
	dedup bool
}

// New creates an association engine. dedup enables removal of multi-frame
// duplicates after the join.
func New(log *logger.Logger, dedup bool) *Engine {
	return &Engine{
		log:   log,
		dedup: dedup,
	}
}

// Associate left-joins buildings to parcels on parcel ID, carrying each
// parcel's site features and geometry onto the association. Buildings with
// no matching parcel are dropped and counted. Join order follows building
// input order; a building matching several parcel rows expands to one row
// per parcel, in parcel input order.
//
// Returns ErrNoAssociations when nothing joined.
func (e *Engine) Associate(buildings []models.Building, parcels []models.Parcel) (*Result, error) {
	byID := make(map[string][]int, len(parcels))
	for i, p := range parcels {
		byID[p.ParcelID] = append(byID[p.ParcelID], i)
	}

	res := &Result{}
	joined := make([]models.Association, 0, len(buildings))
	for _, b := range buildings {
		idxs, ok := byID[b.ParcelID]
		if !ok {
			res.Unmatched++
			continue
		}
		for _, i := range idxs {
			joined = append(joined, models.Association{
				Building:   b,
				ParcelGeom: parcels[i].Geometry,
				Site:       parcels[i].Site,
			})
		}
	}

	if len(buildings) > 0 {
		res.UnmatchedPct = float64(res.Unmatched) / float64(len(buildings)) * 100
	}
	if res.Unmatched > 0 {
		e.log.Warn("Structures without a property match were dropped", map[string]interface{}{
			"dropped":     res.Unmatched,
			"dropped_pct": res.UnmatchedPct,
			"total":       len(buildings),
		})
	}

	if e.dedup {
		joined = e.dedupByStructure(joined, res)
	}

	if len(joined) == 0 {
		return nil, ErrNoAssociations
	}

	res.Associations = joined
	e.log.Info("Associated structures with properties", map[string]interface{}{
		"associations":       len(joined),
		"unmatched":          res.Unmatched,
		"duplicates_removed": res.DuplicatesRemoved,
	})

	return res, nil
}

// dedupByStructure keeps, per structure ID, the association with the largest
// structure-parcel overlap. Ties keep the earliest join row. Output order is
// the first-occurrence order of the surviving structures.
func (e *Engine) dedupByStructure(joined []models.Association, res *Result) []models.Association {
	groups := make(map[string][]int, len(joined))
	order := make([]string, 0, len(joined))
	for i := range joined {
		id := joined[i].Building.StructureID
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	for i := range joined {
		overlap, err := spatial.IntersectionArea(joined[i].Building.Geometry, joined[i].ParcelGeom)
		if err != nil {
			res.IntersectionFailures++
			overlap = 0
		}
		joined[i].Overlap = overlap
	}

	out := make([]models.Association, 0, len(order))
	for _, id := range order {
		idxs := groups[id]
		sort.SliceStable(idxs, func(a, b int) bool {
			return joined[idxs[a]].Overlap > joined[idxs[b]].Overlap
		})
		out = append(out, joined[idxs[0]])
		res.DuplicatesRemoved += len(idxs) - 1
	}

	if res.DuplicatesRemoved > 0 {
		e.log.Info("Removed duplicate structure associations", map[string]interface{}{
			"removed": res.DuplicatesRemoved,
		})
	}

	return out
}
