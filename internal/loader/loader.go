package loader

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/logger"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/store"
)

// ErrNoStructures signals that no region produced a loadable structures
// layer. Callers must treat this as fatal: the pipeline has nothing to work
// on. A region that loads successfully but contains zero structures does not
// trigger this condition.
var ErrNoStructures = errors.New("no structure data loaded from any region")

// LayerStat records the outcome of one region/layer load for observability.
type LayerStat struct {
	Region  string
	Layer   string
	Count   int
	Missing bool
}

// Datasets holds the three structure-side collections concatenated across
// regions, in region resolution order.
type Datasets struct {
	Structures   []models.Building
	SolarPanels  []models.AuxFeature
	WaterHeaters []models.AuxFeature
	Stats        []LayerStat
}

// Loader reads the partitioned source datasets through a LayerStore and
// resolves optional source attributes to their defaults, once, at load time.
type Loader struct {
	store store.LayerStore
	log   *logger.Logger
}

// New creates a Loader over the given store.
func New(s store.LayerStore, log *logger.Logger) *Loader {
	return &Loader{
		store: s,
		log:   log,
	}
}

// LoadDatasets loads structures, solar panels and pool heaters for each
// region, restricted to the AOI bounding box, and concatenates the results.
// A region whose structures layer cannot be loaded is skipped entirely; a
// failing auxiliary layer only yields an empty collection for that region.
// Returns ErrNoStructures when every region failed to produce a structures
// layer.
func (l *Loader) LoadDatasets(ctx context.Context, regions []string, bbox orb.Bound) (*Datasets, error) {
	out := &Datasets{}
	loadedRegions := 0

	for _, region := range regions {
		structures, err := l.store.LoadLayer(ctx, region, store.LayerStructures, bbox)
		if err != nil {
			if errors.Is(err, store.ErrLayerNotFound) {
				l.log.Warn("Structure data not found for region", map[string]interface{}{
					"region": region,
				})
			} else {
				l.log.Error("Failed to load structures for region", err, map[string]interface{}{
					"region": region,
				})
			}
			out.Stats = append(out.Stats, LayerStat{Region: region, Layer: store.LayerStructures, Missing: true})
			continue
		}
		loadedRegions++

		for _, f := range structures.Features {
			out.Structures = append(out.Structures, buildingFromFeature(f, region))
		}
		out.Stats = append(out.Stats, LayerStat{Region: region, Layer: store.LayerStructures, Count: len(structures.Features)})
		l.log.Info("Loaded structures", map[string]interface{}{
			"region": region,
			"count":  len(structures.Features),
		})

		out.SolarPanels = append(out.SolarPanels, l.loadAux(ctx, region, store.LayerSolarPanels, bbox, out)...)
		out.WaterHeaters = append(out.WaterHeaters, l.loadAux(ctx, region, store.LayerPoolHeaters, bbox, out)...)
	}

	if loadedRegions == 0 {
		return nil, ErrNoStructures
	}

	l.log.Info("Combined datasets", map[string]interface{}{
		"structures":    len(out.Structures),
		"solar_panels":  len(out.SolarPanels),
		"water_heaters": len(out.WaterHeaters),
		"regions":       loadedRegions,
	})

	return out, nil
}

// loadAux loads one auxiliary layer for a region. Any failure is demoted to
// a warning and an empty result; auxiliary data is never load-bearing.
func (l *Loader) loadAux(ctx context.Context, region, layer string, bbox orb.Bound, out *Datasets) []models.AuxFeature {
	fc, err := l.store.LoadLayer(ctx, region, layer, bbox)
	if err != nil {
		l.log.Warn("Auxiliary layer unavailable for region", map[string]interface{}{
			"region": region,
			"layer":  layer,
		})
		out.Stats = append(out.Stats, LayerStat{Region: region, Layer: layer, Missing: true})
		return nil
	}

	features := make([]models.AuxFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		features = append(features, models.AuxFeature{
			Region:   region,
			Geometry: models.NewGeometry(f.Geometry),
		})
	}

	out.Stats = append(out.Stats, LayerStat{Region: region, Layer: layer, Count: len(features)})
	l.log.Info("Loaded auxiliary layer", map[string]interface{}{
		"region": region,
		"layer":  layer,
		"count":  len(features),
	})

	return features
}

// LoadParcels loads the property partitions for each region and concatenates
// the results. A region without parcel data is skipped with a warning; when
// no region yields parcels the result is an empty, correctly-typed slice,
// never an error. Downstream must tolerate zero parcels.
func (l *Loader) LoadParcels(ctx context.Context, regions []string, bbox orb.Bound) ([]models.Parcel, error) {
	parcels := []models.Parcel{}
	loadedRegions := 0

	for _, region := range regions {
		fc, err := l.store.LoadPropertyLayer(ctx, region, bbox)
		if err != nil {
			l.log.Warn("Property data unavailable for region", map[string]interface{}{
				"region": region,
			})
			continue
		}
		loadedRegions++

		for _, f := range fc.Features {
			parcels = append(parcels, parcelFromFeature(f, region))
		}
		l.log.Info("Loaded parcels", map[string]interface{}{
			"region": region,
			"count":  len(fc.Features),
		})
	}

	if loadedRegions == 0 {
		l.log.Warn("No property data loaded from any region", map[string]interface{}{
			"regions": regions,
		})
	}

	return parcels, nil
}

func buildingFromFeature(f *geojson.Feature, region string) models.Building {
	return models.Building{
		StructureID:        f.Properties.MustString("structure_id", ""),
		ParcelID:           f.Properties.MustString("parcel_id", ""),
		RoofShape:          f.Properties.MustString("roof_shape_majority", ""),
		RoofMaterial:       f.Properties.MustString("roof_material_majority", ""),
		RoofCondition:      f.Properties.MustString("roof_condition_general", ""),
		RoofTreeOverlapPct: f.Properties.MustFloat64("roof_tree_overlap_pct", 0),
		IsPrimary:          f.Properties.MustBool("is_primary", false),
		CollectionName:     f.Properties.MustString("vexcel_collection_name", ""),
		Region:             region,
		Geometry:           models.NewGeometry(f.Geometry),
	}
}

func parcelFromFeature(f *geojson.Feature, region string) models.Parcel {
	return models.Parcel{
		ParcelID: f.Properties.MustString("parcel_id", ""),
		Site: models.SiteFeatures{
			HasPool:              f.Properties.MustBool("has_pool", false),
			PoolsTotalArea:       f.Properties.MustFloat64("pools_total_area", 0),
			HasTrampoline:        f.Properties.MustBool("has_trampoline", false),
			TrampolineCount:      int(f.Properties.MustFloat64("trampoline_ct", 0)),
			HasWoodenDeck:        f.Properties.MustBool("has_wooden_deck", false),
			WoodenDeckArea:       f.Properties.MustFloat64("wooden_deck_area", 0),
			HasEnclosure:         f.Properties.MustBool("has_enclosure", false),
			EnclosureArea:        f.Properties.MustFloat64("enclosure_area", 0),
			HasTennisCourt:       f.Properties.MustBool("has_tennis_court", false),
			TennisCourtCount:     int(f.Properties.MustFloat64("tennis_court_ct", 0)),
			HasBasketballCourt:   f.Properties.MustBool("has_basketball_court", false),
			BasketballCourtCount: int(f.Properties.MustFloat64("basketball_court_ct", 0)),
			HasSportPitch:        f.Properties.MustBool("has_sport_pitch", false),
			SportPitchCount:      int(f.Properties.MustFloat64("sport_pitch_ct", 0)),
		},
		Region:   region,
		Geometry: models.NewGeometry(f.Geometry),
	}
}
