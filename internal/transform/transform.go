// Package transform maps structure-property associations onto the fixed
// catastrophe output schema, one feature per association.
package transform

import (
	"math"

	"github.com/paulmach/orb/geojson"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/spatial"
)

// Stats reports counters accumulated while building output records.
type Stats struct {
	Records              int
	SolarTagged          int
	WaterHeaterTagged    int
	IntersectionFailures int

	// SolarUnionEmpty and WaterUnionEmpty report that the corresponding
	// auxiliary union had no area, so every flag in that column is false
	// because of data availability rather than true absence.
	SolarUnionEmpty bool
	WaterUnionEmpty bool
}

// Transformer builds output features from associations and AOI metadata.
type Transformer struct {
	log *logger.Logger
}

// New creates a Transformer.
func New(log *logger.Logger) *Transformer {
	return &Transformer{log: log}
}

// Apply emits exactly one schema record per association. Solar-panel and
// water-heater flags are intersection tests against the unions of the
// filtered auxiliary collections; an empty union or a failed test yields
// false, never an error.
func (t *Transformer) Apply(assocs []models.Association, aoi models.AOI, solar, water []models.AuxFeature) ([]*geojson.Feature, Stats) {
	solarUnion := t.unionAux(solar, "solar_panels")
	waterUnion := t.unionAux(water, "water_heaters")

	stats := Stats{
		SolarUnionEmpty: solarUnion.IsEmpty(),
		WaterUnionEmpty: waterUnion.IsEmpty(),
	}
	if stats.SolarUnionEmpty || stats.WaterUnionEmpty {
		t.log.Info("Auxiliary union empty, affected flags default to false", map[string]interface{}{
			"solar_panels_empty":  stats.SolarUnionEmpty,
			"water_heaters_empty": stats.WaterUnionEmpty,
		})
	}
	features := make([]*geojson.Feature, 0, len(assocs))
	for _, a := range assocs {
		hasSolar := t.touchesUnion(a.Building.Geometry, solarUnion, &stats)
		hasWater := t.touchesUnion(a.Building.Geometry, waterUnion, &stats)
		if hasSolar {
			stats.SolarTagged++
		}
		if hasWater {
			stats.WaterHeaterTagged++
		}

		f := geojson.NewFeature(a.Building.Geometry.Geom)
		f.Properties = recordProperties(a, aoi, hasSolar, hasWater)
		features = append(features, f)
	}
	stats.Records = len(features)

	t.log.Info("Built output records", map[string]interface{}{
		"records":               stats.Records,
		"solar_tagged":          stats.SolarTagged,
		"water_heater_tagged":   stats.WaterHeaterTagged,
		"intersection_failures": stats.IntersectionFailures,
	})

	return features, stats
}

func (t *Transformer) unionAux(features []models.AuxFeature, layer string) models.Geometry {
	geoms := make([]models.Geometry, 0, len(features))
	for _, f := range features {
		geoms = append(geoms, f.Geometry)
	}
	u, err := spatial.UnionAll(geoms)
	if err != nil {
		t.log.Warn("Failed to union auxiliary layer, flags default to false", map[string]interface{}{
			"layer": layer,
		})
		return models.Geometry{}
	}
	return u
}

func (t *Transformer) touchesUnion(g, union models.Geometry, stats *Stats) bool {
	if union.IsEmpty() {
		return false
	}
	switch spatial.Intersects(g, union) {
	case spatial.Intersecting:
		return true
	case spatial.Invalid:
		stats.IntersectionFailures++
	}
	return false
}

// recordProperties lays out the full output schema for one association.
// Fields that only exist post-event carry explicit nulls or zero scores in
// this pre-event baseline.
func recordProperties(a models.Association, aoi models.AOI, hasSolar, hasWater bool) geojson.Properties {
	b := a.Building

	solar := SolarPanelAbsent
	if hasSolar {
		solar = SolarPanelPresent
	}
	water := WaterHeaterAbsent
	if hasWater {
		water = WaterHeaterPresent
	}

	return geojson.Properties{
		"BUILDINGS_IDS": b.StructureID,
		"PEID":          b.StructureID,
		"PARCELWKT":     a.ParcelGeom.WKT(),

		"B.CAPTURE_PROJECT":  b.CollectionName,
		"METADATAVERSION":    MetadataVersion,
		"B.LAYERNAME":        SourceLayerName,
		"B.IMAGEID":          nil,
		"B.CHILD_AOI":        b.CollectionName,
		"B.ORTHOVSNADIR":     OrthoVsNadir,
		"B.CAMERATECHNOLOGY": CameraTechnology,
		"B.IMGDATE":          nil,
		"B.IMGGSD":           aoi.AvgGSD,

		"POOLAREA":   a.Site.PoolsTotalArea,
		"TRAMPOLINE": boolLabel(a.Site.HasTrampoline),
		"DECK":       boolLabel(a.Site.HasWoodenDeck),
		"POOL":       boolLabel(a.Site.HasPool),
		"ENCLOSURE":  boolLabel(a.Site.HasEnclosure),
		"SPORTCOURT": boolLabel(a.Site.HasAnySportCourt()),
		"TRAMPSCR":   nil,
		"DECKSCR":    nil,
		"POOLSCR":    nil,
		"ENCLOSUSCR": nil,
		"DIVINGBOAR": nil,
		"DIVINGSCR":  nil,
		"WATERSLIDE": nil,
		"WATSLIDSCR": nil,
		"PLAYGROUND": nil,
		"PLAYGSCR":   nil,
		"SPORTSCR":   nil,

		"PRIMARYSTR": boolLabel(b.IsPrimary),
		"ROOFTOPGEO": b.Geometry.WKT(),
		"GROUNDELEV": nil,
		"DETECTSCR":  1.0,
		"ROOFSHAPE":  mapRoofShape(b.RoofShape),
		"ROOFSHASCR": nil,
		"ROOFMATERI": mapRoofMaterial(b.RoofMaterial),
		"ROOFMATSCR": 1.0,
		"ROOFCONDIT": mapRoofCondition(b.RoofCondition),
		"ROOFSOLAR":  solar,
		"ROOFTREE":   int(math.Round(b.RoofTreeOverlapPct)),

		"DST5":   nil,
		"DSB5":   nil,
		"DST30":  nil,
		"DSB30":  nil,
		"DST100": nil,
		"DSB100": nil,
		"DST200": nil,
		"DSB200": nil,

		"CATASTROPHESCORE":                 0,
		"ROOFCONDIT_MISSINGMATERIALPERCEN": 0.0,
		"ROOFCONDIT_TARPPERCEN":            0.0,
		"ROOFCONDIT_DEBRISPERCENT":         0.0,
		"ROOFCONDIT_DISCOLORDETECT":        "FALSE",
		"ROOFCONDIT_DISCOLORPERCEN":        0.0,
		"ROOFCONDIT_DISCOLORSCORE":         0.0,
		"DAMAGE_LEVEL":                     nil,
		"HISTOSCORE":                       0.0,

		"CAPTURE_PROJECT":  aoi.Collection,
		"LAYERNAME":        aoi.Layer,
		"IMAGEID":          nil,
		"CHILD_AOI":        aoi.EventID,
		"ORTHOVSNADIR":     OrthoVsNadir,
		"CAMERATECHNOLOGY": CameraTechnology,
		"IMGDATE":          nil,
		"IMGGSD":           aoi.AvgGSD,

		"DSKWT5":               nil,
		"DSKWT30":              nil,
		"DSKWT100":             nil,
		"DSKWT200":             nil,
		"task_structures_info": nil,
		"structures_count":     nil,
		"property_id":          nil,

		"ROOFCONDIT_STRUCTURALDAMAGEPERCEN": 0.0,
		"ROOFWATERHEATER":                   water,
	}
}
