package transform

// Fixed values of the catastrophe output schema. Downstream damage
// assessment tooling keys on these exact strings.
const (
	MetadataVersion  = "3.90.1"
	SourceLayerName  = "bluesky-ultra-oceania"
	CameraTechnology = "UltraCam_Osprey_4.1_f120"
	OrthoVsNadir     = "ortho"

	SolarPanelPresent  = "SOLAR PANEL"
	SolarPanelAbsent   = "NO SOLAR PANEL"
	WaterHeaterPresent = "WATER HEATER"
	WaterHeaterAbsent  = "NO WATER HEATER"
)

// mapRoofShape passes known shapes through and collapses everything else,
// including missing values, to Unknown.
func mapRoofShape(shape string) string {
	switch shape {
	case "gable", "hip", "flat":
		return shape
	default:
		return "Unknown"
	}
}

// mapRoofMaterial folds source material classes into the output vocabulary.
func mapRoofMaterial(material string) string {
	switch material {
	case "metal":
		return "metal"
	case "concrete_tile", "clay_tile", "tile":
		return "tile"
	case "solid_concrete":
		return "membrane"
	default:
		return "Unknown"
	}
}

// mapRoofCondition converts the categorical condition to the numeric score
// expected downstream. Unknown conditions score as fair.
func mapRoofCondition(condition string) float64 {
	switch condition {
	case "excellent":
		return 5.0
	case "good":
		return 4.0
	case "fair":
		return 3.0
	case "poor":
		return 2.0
	default:
		return 3.0
	}
}

// boolLabel renders booleans in the upper-case string form the schema uses.
func boolLabel(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
