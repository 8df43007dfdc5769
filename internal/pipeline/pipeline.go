// Package pipeline wires the extraction stages into one synchronous run per
// AOI: resolve regions, load datasets, filter to the AOI boundary, associate
// structures with parcels, regularize footprints, build output records and
// write the batch.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/assoc"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/loader"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/metrics"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/output"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/regions"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/regularize"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/spatial"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/store"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/transform"
)

// Stage names used in logs and the duration histogram.
const (
	stageResolve    = "resolve_regions"
	stageLoad       = "load_datasets"
	stageParcels    = "load_parcels"
	stageFilter     = "filter"
	stageAssociate  = "associate"
	stageRegularize = "regularize"
	stageTransform  = "transform"
	stageWrite      = "write"
)

// Options carries the run parameters the stages need.
type Options struct {
	// Dedup enables multi-frame duplicate removal after the join.
	Dedup bool

	// Regularization parameterizes the footprint regularizer.
	Regularization regularize.Params

	// OutputDir is the directory archives and descriptors are written to.
	OutputDir string
}

// Result summarizes one completed run.
type Result struct {
	RunID   string   `json:"run_id"`
	Regions []string `json:"regions"`

	StructuresLoaded  int `json:"structures_loaded"`
	ParcelsLoaded     int `json:"parcels_loaded"`
	StructuresInAOI   int `json:"structures_in_aoi"`
	ParcelsInAOI      int `json:"parcels_in_aoi"`
	SolarPanelsInAOI  int `json:"solar_panels_in_aoi"`
	WaterHeatersInAOI int `json:"water_heaters_in_aoi"`

	Associations        int `json:"associations"`
	UnmatchedStructures int `json:"unmatched_structures"`
	DuplicatesRemoved   int `json:"duplicates_removed"`

	RegularizationFallbacks int `json:"regularization_fallbacks"`

	Records           int `json:"records"`
	SolarTagged       int `json:"solar_tagged"`
	WaterHeaterTagged int `json:"water_heater_tagged"`

	ArchivePath    string        `json:"archive_path"`
	DescriptorPath string        `json:"descriptor_path"`
	Duration       time.Duration `json:"duration"`
}

// Pipeline executes the extraction stages strictly in order, one run at a
// time. Only the regularizer parallelizes internally; everything else is
// single-threaded and free of shared mutable state.
type Pipeline struct {
	loader      *loader.Loader
	engine      *assoc.Engine
	regularizer *regularize.Regularizer
	transformer *transform.Transformer
	writer      *output.Writer
	metrics     *metrics.Registry
	log         *logger.Logger
}

// New assembles a pipeline over the given layer store.
func New(s store.LayerStore, opts Options, m *metrics.Registry, log *logger.Logger) *Pipeline {
	return &Pipeline{
		loader:      loader.New(s, log),
		engine:      assoc.New(log, opts.Dedup),
		regularizer: regularize.New(log, opts.Regularization),
		transformer: transform.New(log),
		writer:      output.NewWriter(opts.OutputDir, log),
		metrics:     m,
		log:         log,
	}
}

// Run executes one extraction for the given AOI and returns the run summary
// or the first fatal error. Fatal errors are regions.ErrNoRegionMatch,
// loader.ErrNoStructures, assoc.ErrNoAssociations, context cancellation and
// output write failures; everything else degrades with a warning.
func (p *Pipeline) Run(ctx context.Context, aoi models.AOI) (res *Result, err error) {
	start := time.Now()
	runID := uuid.New().String()
	log := p.log.With(map[string]interface{}{
		"run_id":   runID,
		"event_id": aoi.EventID,
	})

	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		p.metrics.RunsTotal.WithLabelValues(status).Inc()
	}()

	log.Info("Starting extraction run", map[string]interface{}{
		"event_name": aoi.EventName,
		"collection": aoi.Collection,
		"area_km2":   aoi.AreaKM2,
	})

	done := p.startStage(log, stageResolve)
	codes, err := regions.Resolve(aoi.Geometry)
	done()
	if err != nil {
		return nil, err
	}
	log.Info("Resolved source regions", map[string]interface{}{
		"stage":   stageResolve,
		"regions": codes,
	})

	bbox := aoi.Geometry.Bound()

	done = p.startStage(log, stageLoad)
	ds, err := p.loader.LoadDatasets(ctx, codes, bbox)
	done()
	if err != nil {
		return nil, err
	}
	for _, stat := range ds.Stats {
		p.metrics.FeaturesLoaded.WithLabelValues(stat.Layer, stat.Region).Add(float64(stat.Count))
	}

	done = p.startStage(log, stageParcels)
	parcels, err := p.loader.LoadParcels(ctx, codes, bbox)
	done()
	if err != nil {
		return nil, err
	}
	for region, n := range countByRegion(parcels) {
		p.metrics.FeaturesLoaded.WithLabelValues(store.LayerParcels, region).Add(float64(n))
	}

	done = p.startStage(log, stageFilter)
	structures, structStats := spatial.Filter(ds.Structures, buildingGeom, aoi.Geometry)
	solar, _ := spatial.Filter(ds.SolarPanels, auxGeom, aoi.Geometry)
	water, _ := spatial.Filter(ds.WaterHeaters, auxGeom, aoi.Geometry)
	parcelsInAOI, _ := spatial.Filter(parcels, parcelGeom, aoi.Geometry)
	done()

	p.metrics.BuildingsDropped.WithLabelValues(metrics.ReasonOutsideAOI).
		Add(float64(structStats.Dropped - structStats.Invalid))
	p.metrics.BuildingsDropped.WithLabelValues(metrics.ReasonInvalid).
		Add(float64(structStats.Invalid))
	log.Info("Filtered datasets to the AOI boundary", map[string]interface{}{
		"stage":            stageFilter,
		"structures":       len(structures),
		"structures_drop":  structStats.Dropped,
		"invalid_geometry": structStats.Invalid,
		"solar_panels":     len(solar),
		"water_heaters":    len(water),
		"parcels":          len(parcelsInAOI),
	})

	done = p.startStage(log, stageAssociate)
	joined, err := p.engine.Associate(structures, parcelsInAOI)
	done()
	if err != nil {
		return nil, err
	}
	p.metrics.BuildingsDropped.WithLabelValues(metrics.ReasonUnmatched).Add(float64(joined.Unmatched))
	p.metrics.DuplicatesRemoved.Add(float64(joined.DuplicatesRemoved))
	p.metrics.IntersectionFailures.Add(float64(joined.IntersectionFailures))

	done = p.startStage(log, stageRegularize)
	buildings := make([]models.Building, len(joined.Associations))
	for i, a := range joined.Associations {
		buildings[i] = a.Building
	}
	regular, regStats, err := p.regularizer.Apply(ctx, buildings)
	done()
	if err != nil {
		return nil, err
	}
	for i := range joined.Associations {
		joined.Associations[i].Building = regular[i]
	}
	p.metrics.RegularizationFallbacks.Add(float64(regStats.Fallbacks))

	done = p.startStage(log, stageTransform)
	records, recordStats := p.transformer.Apply(joined.Associations, aoi, solar, water)
	done()
	p.metrics.IntersectionFailures.Add(float64(recordStats.IntersectionFailures))
	p.metrics.RecordsEmitted.Add(float64(recordStats.Records))

	done = p.startStage(log, stageWrite)
	written, err := p.writer.Write(aoi, records, solar, water)
	done()
	if err != nil {
		return nil, err
	}

	res = &Result{
		RunID:                   runID,
		Regions:                 codes,
		StructuresLoaded:        len(ds.Structures),
		ParcelsLoaded:           len(parcels),
		StructuresInAOI:         len(structures),
		ParcelsInAOI:            len(parcelsInAOI),
		SolarPanelsInAOI:        len(solar),
		WaterHeatersInAOI:       len(water),
		Associations:            len(joined.Associations),
		UnmatchedStructures:     joined.Unmatched,
		DuplicatesRemoved:       joined.DuplicatesRemoved,
		RegularizationFallbacks: regStats.Fallbacks,
		Records:                 recordStats.Records,
		SolarTagged:             recordStats.SolarTagged,
		WaterHeaterTagged:       recordStats.WaterHeaterTagged,
		ArchivePath:             written.ArchivePath,
		DescriptorPath:          written.DescriptorPath,
		Duration:                time.Since(start),
	}

	log.Info("Extraction run complete", map[string]interface{}{
		"records":     res.Records,
		"archive":     res.ArchivePath,
		"duration_ms": res.Duration.Milliseconds(),
	})

	return res, nil
}

// startStage logs a stage boundary and returns the closer that records its
// duration.
func (p *Pipeline) startStage(log *logger.Logger, stage string) func() {
	begin := time.Now()
	log.Debug("Stage started", map[string]interface{}{"stage": stage})
	return func() {
		elapsed := time.Since(begin)
		p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
		log.Debug("Stage finished", map[string]interface{}{
			"stage":       stage,
			"duration_ms": elapsed.Milliseconds(),
		})
	}
}

func buildingGeom(b models.Building) models.Geometry { return b.Geometry }
func auxGeom(f models.AuxFeature) models.Geometry    { return f.Geometry }
func parcelGeom(pc models.Parcel) models.Geometry    { return pc.Geometry }

func countByRegion(parcels []models.Parcel) map[string]int {
	counts := make(map[string]int)
	for _, pc := range parcels {
		counts[pc.Region]++
	}
	return counts
}
