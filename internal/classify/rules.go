package classify

import (
	"fmt"
	"os"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"gopkg.in/yaml.v3"
)

// Rules holds the keyword-to-category tables and severity thresholds for the
// deterministic rule stage. Defaults are embedded; a YAML rules file can
// override any table for tuning without a rebuild.
type Rules struct {
	// Keywords maps each category to the lowercase keywords that vote for it.
	Keywords map[domain.Category][]string `yaml:"keywords"`

	// Priority breaks score ties: earlier categories win. Specific categories
	// come before generic ones, e.g. EARTHQUAKE before NATURAL_DISASTER.
	Priority []domain.Category `yaml:"priority"`

	// Severity keyword tiers, applied to the normalized text.
	CriticalTerms []string `yaml:"critical_terms"`
	HighTerms     []string `yaml:"high_terms"`
	MediumTerms   []string `yaml:"medium_terms"`

	// Magnitude thresholds (seismic categories).
	MagnitudeCritical float64 `yaml:"magnitude_critical"`
	MagnitudeHigh     float64 `yaml:"magnitude_high"`
	MagnitudeMedium   float64 `yaml:"magnitude_medium"`

	// Casualty/affected-population thresholds.
	CasualtiesCritical int `yaml:"casualties_critical"`
	CasualtiesHigh     int `yaml:"casualties_high"`
}

// Load returns the default rules, overlaid with the YAML file at path when
// path is non-empty. Only non-zero fields of the file override defaults.
func Load(path string) (*Rules, error) {
	rules := defaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	for cat, words := range override.Keywords {
		rules.Keywords[cat] = words
	}
	if len(override.Priority) > 0 {
		rules.Priority = override.Priority
	}
	if len(override.CriticalTerms) > 0 {
		rules.CriticalTerms = override.CriticalTerms
	}
	if len(override.HighTerms) > 0 {
		rules.HighTerms = override.HighTerms
	}
	if len(override.MediumTerms) > 0 {
		rules.MediumTerms = override.MediumTerms
	}
	if override.MagnitudeCritical > 0 {
		rules.MagnitudeCritical = override.MagnitudeCritical
	}
	if override.MagnitudeHigh > 0 {
		rules.MagnitudeHigh = override.MagnitudeHigh
	}
	if override.MagnitudeMedium > 0 {
		rules.MagnitudeMedium = override.MagnitudeMedium
	}
	if override.CasualtiesCritical > 0 {
		rules.CasualtiesCritical = override.CasualtiesCritical
	}
	if override.CasualtiesHigh > 0 {
		rules.CasualtiesHigh = override.CasualtiesHigh
	}
	return rules, nil
}

func defaultRules() *Rules {
	return &Rules{
		Keywords: map[domain.Category][]string{
			domain.CategoryEarthquake: {"earthquake", "quake", "seismic", "tremor", "aftershock"},
			domain.CategoryTsunami:    {"tsunami", "tidal wave"},
			domain.CategoryVolcano:    {"volcano", "volcanic", "eruption", "lava", "ash cloud"},
			domain.CategoryLandslide:  {"landslide", "mudslide", "rockslide", "debris flow"},
			domain.CategoryAvalanche:  {"avalanche"},
			domain.CategorySinkhole:   {"sinkhole"},

			domain.CategoryFlood:      {"flood", "flooding", "inundation", "deluge", "overflow"},
			domain.CategoryFlashFlood: {"flash flood"},
			domain.CategoryStormSurge: {"storm surge"},

			domain.CategoryHurricane:   {"hurricane"},
			domain.CategoryTyphoon:     {"typhoon"},
			domain.CategoryCyclone:     {"cyclone", "tropical storm"},
			domain.CategoryTornado:     {"tornado", "twister"},
			domain.CategorySevereStorm: {"severe storm", "thunderstorm", "hailstorm", "windstorm", "gale"},
			domain.CategoryBlizzard:    {"blizzard", "snowstorm"},
			domain.CategoryIceStorm:    {"ice storm", "freezing rain"},
			domain.CategoryHailstorm:   {"hail"},
			domain.CategoryHeatWave:    {"heat wave", "heatwave", "extreme heat", "record temperatures"},
			domain.CategoryColdWave:    {"cold wave", "cold snap", "extreme cold", "deep freeze"},

			domain.CategoryDrought:  {"drought", "water shortage", "dry spell"},
			domain.CategoryWildfire: {"wildfire", "forest fire", "bushfire", "brush fire", "blaze"},
			domain.CategoryFamine:   {"famine", "food crisis", "starvation"},

			domain.CategoryEpidemic:    {"epidemic", "outbreak", "disease", "cholera", "ebola"},
			domain.CategoryPandemic:    {"pandemic"},
			domain.CategoryInfestation: {"locust", "infestation", "swarm"},

			domain.CategoryIndustrialAccident: {"industrial accident", "factory explosion", "mine collapse", "gas explosion"},
			domain.CategoryChemicalSpill:      {"chemical leak", "chemical spill", "toxic", "contamination"},
			domain.CategoryNuclearIncident:    {"nuclear", "radiation", "radioactive"},
			domain.CategoryOilSpill:           {"oil spill", "oil leak"},
			domain.CategoryBuildingCollapse:   {"building collapse", "bridge collapse", "structure collapse", "dam failure"},
			domain.CategoryTransportAccident:  {"plane crash", "train derailment", "derailed", "shipwreck", "ferry sank", "bus crash"},
			domain.CategoryPowerOutage:        {"power outage", "blackout", "grid failure"},

			domain.CategoryArmedConflict:      {"war", "airstrike", "shelling", "artillery", "invasion", "offensive", "missile strike", "combat"},
			domain.CategoryTerroristAttack:    {"terrorist", "terrorism", "suicide bombing", "car bomb"},
			domain.CategoryCivilUnrest:        {"riot", "unrest", "protest", "clashes", "coup"},
			domain.CategoryHumanitarianCrisis: {"humanitarian crisis", "humanitarian aid", "aid convoy"},
			domain.CategoryRefugeeCrisis:      {"refugee", "displaced", "displacement", "asylum seekers"},

			domain.CategoryNaturalDisaster: {"natural disaster", "disaster", "catastrophe"},
		},
		Priority: priorityOrder(),

		CriticalTerms: []string{"catastrophic", "devastating", "massive", "deadly", "fatal", "red alert", "state of emergency"},
		HighTerms:     []string{"severe", "major", "significant", "serious", "dangerous", "orange alert", "widespread"},
		MediumTerms:   []string{"moderate", "considerable", "notable", "yellow alert"},

		MagnitudeCritical: 7.0,
		MagnitudeHigh:     6.0,
		MagnitudeMedium:   5.0,

		CasualtiesCritical: 10000,
		CasualtiesHigh:     1000,
	}
}

// priorityOrder is the declaration order of the taxonomy with the generic
// catch-alls forced last, so a tie between a specific and a generic category
// always resolves to the specific one.
func priorityOrder() []domain.Category {
	var order []domain.Category
	for _, c := range domain.Categories {
		if c == domain.CategoryNaturalDisaster || c == domain.CategoryOther {
			continue
		}
		order = append(order, c)
	}
	return append(order, domain.CategoryNaturalDisaster, domain.CategoryOther)
}
