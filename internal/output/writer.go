// Package output persists a pipeline run as a zipped set of GeoJSON layers
// plus a sidecar descriptor for the ingestion system.
package output

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
)

// Layer names inside the output archive and the descriptor schema version
// the ingestion side expects.
const (
	LayerPreEventStructures = "pre_event_structures"
	LayerSolarPanels        = "solar_panels"
	LayerWaterHeaters       = "water_heaters"

	SchemaVersion = "CATASTROPHE_DEFAULT.1.0.5"
)

// BaseName derives the batch base name from the AOI collection name. The
// archive, the descriptor and the batch ID all share it.
func BaseName(collection string) string {
	return fmt.Sprintf("%s_DA_pre-event", collection)
}

// Descriptor is the sidecar JSON written next to the archive.
type Descriptor struct {
	BatchID        string `json:"batch_id"`
	CreationDate   string `json:"creation_date"`
	CaptureProject string `json:"capture_project"`
	WKT            string `json:"wkt"`
	SchemaVersion  string `json:"schema_version"`
}

// Result reports what a Write produced.
type Result struct {
	ArchivePath    string
	DescriptorPath string
	LayersWritten  []string
}

// Writer persists run outputs beneath a single directory, creating it on
// first use.
type Writer struct {
	dir string
	log *logger.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, log *logger.Logger) *Writer {
	return &Writer{
		dir: dir,
		log: log,
	}
}

// Write persists the structure records and the auxiliary layers for one AOI.
// Auxiliary layers are only written when non-empty; the structures layer is
// always present. The descriptor carries the AOI boundary as WKT so the
// ingestion side can place the batch without opening the archive.
func (w *Writer) Write(aoi models.AOI, structures []*geojson.Feature, solar, water []models.AuxFeature) (*Result, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := BaseName(aoi.Collection)
	res := &Result{
		ArchivePath:    filepath.Join(w.dir, base+".zip"),
		DescriptorPath: filepath.Join(w.dir, base+".json"),
	}

	if err := w.writeArchive(res, structures, solar, water); err != nil {
		return nil, err
	}
	if err := w.writeDescriptor(res.DescriptorPath, base, aoi); err != nil {
		return nil, err
	}

	w.log.Info("Wrote output batch", map[string]interface{}{
		"archive": res.ArchivePath,
		"layers":  res.LayersWritten,
		"records": len(structures),
	})

	return res, nil
}

func (w *Writer) writeArchive(res *Result, structures []*geojson.Feature, solar, water []models.AuxFeature) error {
	f, err := os.Create(res.ArchivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(f)

	write := func(layer string, fc *geojson.FeatureCollection) error {
		entry, err := zw.Create(layer + ".geojson")
		if err != nil {
			return fmt.Errorf("failed to add layer %s: %w", layer, err)
		}
		if err := json.NewEncoder(entry).Encode(fc); err != nil {
			return fmt.Errorf("failed to encode layer %s: %w", layer, err)
		}
		res.LayersWritten = append(res.LayersWritten, layer)
		return nil
	}

	structuresFC := geojson.NewFeatureCollection()
	structuresFC.Features = append(structuresFC.Features, structures...)

	err = write(LayerPreEventStructures, structuresFC)
	if err == nil && len(solar) > 0 {
		err = write(LayerSolarPanels, auxCollection(solar))
	}
	if err == nil && len(water) > 0 {
		err = write(LayerWaterHeaters, auxCollection(water))
	}
	if err != nil {
		zw.Close()
		f.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}

func (w *Writer) writeDescriptor(path, base string, aoi models.AOI) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create descriptor: %w", err)
	}
	defer f.Close()

	desc := Descriptor{
		BatchID:        base,
		CreationDate:   time.Now().UTC().Format(time.RFC3339),
		CaptureProject: aoi.EventID,
		WKT:            aoi.Geometry.WKT(),
		SchemaVersion:  SchemaVersion,
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(desc); err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return nil
}

func auxCollection(features []models.AuxFeature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		feat := geojson.NewFeature(f.Geometry.Geom)
		feat.Properties["region"] = f.Region
		fc.Append(feat)
	}
	return fc
}
