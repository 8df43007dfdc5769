package spatial

import (
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
)

// Stats summarizes one filtering pass.
type Stats struct {
	Input   int
	Kept    int
	Dropped int
	// Invalid counts features whose intersection test failed on bad
	// geometry. They are dropped, not errored.
	Invalid int
}

// Filter retains the elements of items whose geometry intersects the precise
// AOI polygon, preserving input order. geomOf extracts the geometry from an
// element. Features with invalid geometry are dropped and counted separately.
func Filter[T any](items []T, geomOf func(T) models.Geometry, aoi models.Geometry) ([]T, Stats) {
	stats := Stats{Input: len(items)}
	kept := make([]T, 0, len(items))

	for _, item := range items {
		switch Intersects(geomOf(item), aoi) {
		case Intersecting:
			kept = append(kept, item)
			stats.Kept++
		case Invalid:
			stats.Invalid++
			stats.Dropped++
		default:
			stats.Dropped++
		}
	}

	return kept, stats
}
