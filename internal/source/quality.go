package source

import "strings"

// isDisasterNews decides whether a general-news headline actually describes
// a disaster. Exclusion terms veto first, then a disaster context phrase
// accepts, and finally two or more impact indicators accept conflict and
// humanitarian stories that lack a named disaster phrase.
func isDisasterNews(title, summary string) bool {
	text := strings.ToLower(title + " " + summary)

	for _, term := range newsExcludeTerms {
		if strings.Contains(text, term) {
			return false
		}
	}

	for _, phrase := range disasterContextPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	hits := 0
	for _, term := range impactIndicators {
		if strings.Contains(text, term) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}

// newsExcludeTerms veto political, business, and lifestyle coverage that
// frequently borrows disaster vocabulary ("economic crisis", "market
// catastrophe").
var newsExcludeTerms = []string{
	"political crisis", "economic crisis", "trade dispute", "election results",
	"court decision", "stock market", "parliament", "senate",
	"prime minister", "budget", "constitutional",

	"sports", "entertainment", "celebrity", "movie", "music", "fashion",
	"software", "social media", "cryptocurrency", "bitcoin",

	"conference", "summit", "ceremony", "anniversary", "celebration",
	"festival", "award", "prize", "competition", "interview",
}

// disasterContextPhrases are multi-word phrases that only appear in genuine
// disaster coverage. Single keywords like "fire" or "storm" are too noisy on
// general news feeds.
var disasterContextPhrases = []string{
	"earthquake magnitude", "earthquake strikes", "earthquake hits", "seismic activity",
	"wildfire burns", "wildfire spreads", "fire destroys", "forest fire",
	"flood waters", "flooding affects", "flood victims", "flash flood",
	"hurricane winds", "hurricane makes landfall", "storm surge", "tropical storm",
	"tornado touches down", "tornado destroys",
	"volcano erupts", "volcanic ash", "lava flows", "volcanic activity",
	"landslide buries", "mudslide hits", "rockslide",
	"drought affects", "water shortage", "severe drought",
	"blizzard hits", "snowstorm", "ice storm",

	"civilians killed", "civilian casualties", "bombing attack", "bomb blast",
	"airstrike hits", "missile strike", "explosion kills", "terrorist attack",
	"refugee crisis", "displaced persons", "humanitarian aid", "humanitarian crisis",
	"evacuation ordered", "emergency declared", "state of emergency",
	"casualties reported", "people killed", "people injured",
	"rescue operations", "search and rescue", "emergency response",
	"disaster zone", "damage assessment",

	"building collapse", "bridge collapse", "dam failure", "power outage",
	"train derailment", "plane crash", "ship sinking", "oil spill",
	"chemical leak", "gas explosion", "industrial accident",

	"disease outbreak", "epidemic", "pandemic", "health emergency",
	"contamination", "radiation leak",
}

// impactIndicators are single impact words; any two together mark a story
// as disaster coverage even without a named disaster phrase.
var impactIndicators = []string{
	"killed", "dead", "casualties", "injured", "wounded", "missing",
	"destroyed", "damaged", "collapsed", "evacuated", "displaced",
	"emergency", "crisis", "disaster", "catastrophe", "tragedy",
}
