// Package aoi manages gray-sky AOI candidates: area enrichment, ordering,
// persistence to a candidates file and selection for an extraction run.
package aoi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
)

// ErrNoCandidates is returned when selection runs against an empty list.
var ErrNoCandidates = errors.New("no AOI candidates available")

// ComputeAreas fills AreaKM2 for every candidate from its footprint,
// measured in web-Mercator square kilometers.
func ComputeAreas(aois []models.AOI) {
	for i := range aois {
		aois[i].AreaKM2 = areaKM2(aois[i].Geometry)
	}
}

func areaKM2(g models.Geometry) float64 {
	if g.IsEmpty() {
		return 0
	}
	merc := project.Geometry(orb.Clone(g.Geom), project.WGS84.ToMercator)
	return math.Abs(planar.Area(merc)) / 1e6
}

// SortCandidates orders candidates for presentation: most recently captured
// first, ties broken by event name.
func SortCandidates(aois []models.AOI) {
	sort.SliceStable(aois, func(i, j int) bool {
		if !aois[i].LastCaptureDate.Equal(aois[j].LastCaptureDate) {
			return aois[i].LastCaptureDate.After(aois[j].LastCaptureDate)
		}
		return aois[i].EventName < aois[j].EventName
	})
}

// Save writes candidates to a GeoJSON file, one feature per AOI with the
// standard metadata properties.
func Save(path string, aois []models.AOI) error {
	fc := geojson.NewFeatureCollection()
	for _, a := range aois {
		fc.Append(candidateFeature(a))
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode AOI candidates: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create candidates directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write AOI candidates: %w", err)
	}
	return nil
}

// Load reads a candidates file back, preserving file order.
func Load(path string) ([]models.AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AOI candidates: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AOI candidates: %w", err)
	}

	aois := make([]models.AOI, 0, len(fc.Features))
	for _, f := range fc.Features {
		aois = append(aois, models.AOI{
			EventID:          f.Properties.MustString("event_id", ""),
			EventName:        f.Properties.MustString("event_name", ""),
			Collection:       f.Properties.MustString("collection", ""),
			Layer:            f.Properties.MustString("layer", ""),
			AvgGSD:           f.Properties.MustFloat64("avg_gsd", 0),
			AreaKM2:          f.Properties.MustFloat64("area_km2", 0),
			FirstCaptureDate: captureDate(f.Properties.MustString("first_capture_date", "")),
			LastCaptureDate:  captureDate(f.Properties.MustString("last_capture_date", "")),
			Geometry:         models.NewGeometry(f.Geometry),
		})
	}
	return aois, nil
}

func candidateFeature(a models.AOI) *geojson.Feature {
	f := geojson.NewFeature(a.Geometry.Geom)
	f.Properties["event_id"] = a.EventID
	f.Properties["event_name"] = a.EventName
	f.Properties["collection"] = a.Collection
	f.Properties["layer"] = a.Layer
	f.Properties["avg_gsd"] = a.AvgGSD
	f.Properties["area_km2"] = a.AreaKM2
	if !a.FirstCaptureDate.IsZero() {
		f.Properties["first_capture_date"] = a.FirstCaptureDate.Format(time.RFC3339)
	}
	if !a.LastCaptureDate.IsZero() {
		f.Properties["last_capture_date"] = a.LastCaptureDate.Format(time.RFC3339)
	}
	return f
}

// captureDate parses a persisted RFC3339 capture date. Missing or malformed
// values load as the zero time.
func captureDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Selector picks one AOI out of a candidate list.
type Selector interface {
	Select(candidates []models.AOI) (models.AOI, error)
}

// IndexSelector picks by position, for non-interactive runs.
type IndexSelector struct {
	Index int
}

func (s IndexSelector) Select(candidates []models.AOI) (models.AOI, error) {
	if len(candidates) == 0 {
		return models.AOI{}, ErrNoCandidates
	}
	if s.Index < 0 || s.Index >= len(candidates) {
		return models.AOI{}, fmt.Errorf("AOI index %d out of range, have %d candidates", s.Index, len(candidates))
	}
	return candidates[s.Index], nil
}

// PromptSelector lists candidates on Out and reads the chosen index from In.
type PromptSelector struct {
	In  io.Reader
	Out io.Writer
}

func (s PromptSelector) Select(candidates []models.AOI) (models.AOI, error) {
	if len(candidates) == 0 {
		return models.AOI{}, ErrNoCandidates
	}

	for i, a := range candidates {
		fmt.Fprintf(s.Out, "[%d] %s (%s) collection=%s area=%.1fkm2 gsd=%.2fcm\n",
			i, a.EventName, a.EventID, a.Collection, a.AreaKM2, a.AvgGSD)
	}
	fmt.Fprint(s.Out, "Select AOI index: ")

	var idx int
	if _, err := fmt.Fscanln(s.In, &idx); err != nil {
		return models.AOI{}, fmt.Errorf("failed to read AOI selection: %w", err)
	}
	return IndexSelector{Index: idx}.Select(candidates)
}
