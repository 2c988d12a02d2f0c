package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the fixed taxonomy of disaster types. The zero value is
// CategoryOther; classification always produces a member of this set.
type Category string

const (
	// Geophysical.
	CategoryEarthquake Category = "EARTHQUAKE"
	CategoryTsunami    Category = "TSUNAMI"
	CategoryVolcano    Category = "VOLCANO"
	CategoryLandslide  Category = "LANDSLIDE"
	CategoryAvalanche  Category = "AVALANCHE"
	CategorySinkhole   Category = "SINKHOLE"

	// Hydrological.
	CategoryFlood      Category = "FLOOD"
	CategoryFlashFlood Category = "FLASH_FLOOD"
	CategoryStormSurge Category = "STORM_SURGE"

	// Meteorological.
	CategoryHurricane   Category = "HURRICANE"
	CategoryTyphoon     Category = "TYPHOON"
	CategoryCyclone     Category = "CYCLONE"
	CategoryTornado     Category = "TORNADO"
	CategorySevereStorm Category = "SEVERE_STORM"
	CategoryBlizzard    Category = "BLIZZARD"
	CategoryIceStorm    Category = "ICE_STORM"
	CategoryHailstorm   Category = "HAILSTORM"
	CategoryHeatWave    Category = "HEAT_WAVE"
	CategoryColdWave    Category = "COLD_WAVE"

	// Climatological.
	CategoryDrought  Category = "DROUGHT"
	CategoryWildfire Category = "WILDFIRE"
	CategoryFamine   Category = "FAMINE"

	// Biological.
	CategoryEpidemic    Category = "EPIDEMIC"
	CategoryPandemic    Category = "PANDEMIC"
	CategoryInfestation Category = "INFESTATION"

	// Technological.
	CategoryIndustrialAccident Category = "INDUSTRIAL_ACCIDENT"
	CategoryChemicalSpill      Category = "CHEMICAL_SPILL"
	CategoryNuclearIncident    Category = "NUCLEAR_INCIDENT"
	CategoryOilSpill           Category = "OIL_SPILL"
	CategoryBuildingCollapse   Category = "BUILDING_COLLAPSE"
	CategoryTransportAccident  Category = "TRANSPORT_ACCIDENT"
	CategoryPowerOutage        Category = "POWER_OUTAGE"

	// Human-driven.
	CategoryArmedConflict      Category = "ARMED_CONFLICT"
	CategoryTerroristAttack    Category = "TERRORIST_ATTACK"
	CategoryCivilUnrest        Category = "CIVIL_UNREST"
	CategoryHumanitarianCrisis Category = "HUMANITARIAN_CRISIS"
	CategoryRefugeeCrisis      Category = "REFUGEE_CRISIS"

	// Catch-alls.
	CategoryNaturalDisaster Category = "NATURAL_DISASTER"
	CategoryOther           Category = "OTHER"
)

// Categories lists every taxonomy member in declaration order.
var Categories = []Category{
	CategoryEarthquake, CategoryTsunami, CategoryVolcano, CategoryLandslide,
	CategoryAvalanche, CategorySinkhole,
	CategoryFlood, CategoryFlashFlood, CategoryStormSurge,
	CategoryHurricane, CategoryTyphoon, CategoryCyclone, CategoryTornado,
	CategorySevereStorm, CategoryBlizzard, CategoryIceStorm, CategoryHailstorm,
	CategoryHeatWave, CategoryColdWave,
	CategoryDrought, CategoryWildfire, CategoryFamine,
	CategoryEpidemic, CategoryPandemic, CategoryInfestation,
	CategoryIndustrialAccident, CategoryChemicalSpill, CategoryNuclearIncident,
	CategoryOilSpill, CategoryBuildingCollapse, CategoryTransportAccident,
	CategoryPowerOutage,
	CategoryArmedConflict, CategoryTerroristAttack, CategoryCivilUnrest,
	CategoryHumanitarianCrisis, CategoryRefugeeCrisis,
	CategoryNaturalDisaster, CategoryOther,
}

// ParseCategory normalizes a free-form category string to a taxonomy member.
// Unrecognized values map to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
	for _, known := range Categories {
		if c == known {
			return known
		}
	}
	return CategoryOther
}

// Slug returns the lowercase hyphenated form used as an event ID prefix,
// e.g. FLASH_FLOOD -> "flash-flood".
func (c Category) Slug() string {
	if c == "" {
		c = CategoryOther
	}
	return strings.ToLower(strings.ReplaceAll(string(c), "_", "-"))
}

// Severity is the ordinal impact scale. Ordering is significant:
// LOW < MEDIUM < HIGH < CRITICAL.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity maps a severity label to its ordinal. Unknown labels map to
// SeverityLow so that a garbled source hint never inflates impact.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MEDIUM", "MODERATE":
		return SeverityMedium
	case "HIGH", "SEVERE":
		return SeverityHigh
	case "CRITICAL", "EXTREME":
		return SeverityCritical
	default:
		return SeverityLow
	}
}

// MarshalJSON encodes the severity label, not the ordinal, so the export
// payload stays readable and stable.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*s = ParseSeverity(label)
	return nil
}
