package models

import (
	"time"
)

// AOI represents one area-of-interest candidate fetched from the imagery
// provider. An AOI is immutable once selected; a single run processes exactly
// one of them.
type AOI struct {
	EventID          string    `json:"event_id"`
	EventName        string    `json:"event_name"`
	Collection       string    `json:"collection"`
	Layer            string    `json:"layer"`
	AvgGSD           float64   `json:"avg_gsd"`
	AreaKM2          float64   `json:"area_km2"`
	FirstCaptureDate time.Time `json:"first_capture_date,omitempty"`
	LastCaptureDate  time.Time `json:"last_capture_date,omitempty"`
	Geometry         Geometry  `json:"geometry"`
}

// Building represents one structure footprint from the partitioned source
// datasets. Optional source attributes are resolved to their defaults at load
// time, so every field here always carries a usable value.
type Building struct {
	StructureID        string   `json:"structure_id"`
	ParcelID           string   `json:"parcel_id"`
	RoofShape          string   `json:"roof_shape_majority"`
	RoofMaterial       string   `json:"roof_material_majority"`
	RoofCondition      string   `json:"roof_condition_general"`
	RoofTreeOverlapPct float64  `json:"roof_tree_overlap_pct"`
	IsPrimary          bool     `json:"is_primary"`
	CollectionName     string   `json:"vexcel_collection_name"`
	Region             string   `json:"-"`
	Geometry           Geometry `json:"geometry"`
}

// SiteFeatures holds the parcel-level site attributes carried into the
// association result. Booleans default to false and numerics to zero when the
// source record omits them.
type SiteFeatures struct {
	HasPool              bool    `json:"has_pool"`
	PoolsTotalArea       float64 `json:"pools_total_area"`
	HasTrampoline        bool    `json:"has_trampoline"`
	TrampolineCount      int     `json:"trampoline_ct"`
	HasWoodenDeck        bool    `json:"has_wooden_deck"`
	WoodenDeckArea       float64 `json:"wooden_deck_area"`
	HasEnclosure         bool    `json:"has_enclosure"`
	EnclosureArea        float64 `json:"enclosure_area"`
	HasTennisCourt       bool    `json:"has_tennis_court"`
	TennisCourtCount     int     `json:"tennis_court_ct"`
	HasBasketballCourt   bool    `json:"has_basketball_court"`
	BasketballCourtCount int     `json:"basketball_court_ct"`
	HasSportPitch        bool    `json:"has_sport_pitch"`
	SportPitchCount      int     `json:"sport_pitch_ct"`
}

// HasAnySportCourt reports whether any of the three sport-court subtypes is
// present on the parcel.
func (s SiteFeatures) HasAnySportCourt() bool {
	return s.HasTennisCourt || s.HasBasketballCourt || s.HasSportPitch
}

// Parcel represents one property parcel record. ParcelID is the unique key
// the association join runs on.
type Parcel struct {
	ParcelID string       `json:"parcel_id"`
	Site     SiteFeatures `json:"site_features"`
	Region   string       `json:"-"`
	Geometry Geometry     `json:"geometry"`
}

// AuxFeature represents one auxiliary feature (solar panel, water heater).
// Auxiliary features carry no join key; relevance to a building is decided
// purely by spatial intersection.
type AuxFeature struct {
	Region   string   `json:"-"`
	Geometry Geometry `json:"geometry"`
}

// Association pairs one building with its best-overlapping parcel. The
// building geometry is overwritten in place when regularization substitutes
// the orthogonalized footprint; the parcel boundary is kept alongside for the
// output schema.
type Association struct {
	Building   Building
	ParcelGeom Geometry
	Site       SiteFeatures
	// Overlap is the building-parcel intersection area used as the
	// deduplication ranking key, computed for every association when
	// deduplication is enabled. Zero when deduplication is disabled or
	// the intersection could not be computed.
	Overlap float64
}
