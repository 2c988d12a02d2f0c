package geocode

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// FallbackGeocoder tries the wrapped geocoder first and degrades to the
// embedded country-centroid gazetteer when the provider fails, times out, or
// has no match. Fallback results carry IsFallback=true so merge logic and
// confidence scoring treat them as reduced positional evidence. inner may be
// nil, which turns the gazetteer into the only resolution path.
type FallbackGeocoder struct {
	inner  Geocoder
	logger *slog.Logger
}

func NewFallbackGeocoder(inner Geocoder, logger *slog.Logger) *FallbackGeocoder {
	return &FallbackGeocoder{inner: inner, logger: logger}
}

func (g *FallbackGeocoder) Resolve(ctx context.Context, locationText string) (Result, error) {
	if g.inner != nil {
		result, err := g.inner.Resolve(ctx, locationText)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrGeocodeNotFound) {
			g.logger.Warn("geocode provider failed, using fallback",
				"location", locationText, "error", err)
		}
	}

	if result, ok := gazetteerLookup(locationText); ok {
		return result, nil
	}
	return Result{}, domain.ErrGeocodeNotFound
}

// gazetteerLookup matches location text against known place names, preferring
// an exact normalized match, then the longest contained name. Iteration order
// is canonicalized so repeated lookups of the same text are deterministic.
func gazetteerLookup(text string) (Result, bool) {
	key := NormalizeKey(text)
	if c, ok := gazetteer[key]; ok {
		return fallbackResult(key, c), true
	}

	var bestName string
	var bestCoord coord
	for _, name := range gazetteerNames {
		if strings.Contains(key, name) && len(name) > len(bestName) {
			bestName = name
			bestCoord = gazetteer[name]
		}
	}
	if bestName == "" {
		return Result{}, false
	}
	return fallbackResult(bestName, bestCoord), true
}

func fallbackResult(name string, c coord) Result {
	return Result{
		Lat:        c.lat,
		Lon:        c.lon,
		Name:       name,
		Precision:  domain.PrecisionCountry,
		IsFallback: true,
	}
}

type coord struct{ lat, lon float64 }

// gazetteer maps normalized country and major-city names to centroids
// (capital coordinates for countries). Coarse on purpose: this is the
// resolution of last resort.
var gazetteer = map[string]coord{
	"afghanistan":   {34.5553, 69.2075},
	"australia":     {-35.2809, 149.1300},
	"bangladesh":    {23.8103, 90.4125},
	"brazil":        {-15.7942, -47.8822},
	"canada":        {45.4215, -75.6972},
	"chile":         {-33.4489, -70.6693},
	"china":         {39.9042, 116.4074},
	"colombia":      {4.7110, -74.0721},
	"ecuador":       {-0.1807, -78.4678},
	"egypt":         {30.0444, 31.2357},
	"ethiopia":      {9.1450, 40.4897},
	"france":        {48.8566, 2.3522},
	"germany":       {52.5200, 13.4050},
	"greece":        {37.9838, 23.7275},
	"guatemala":     {14.6349, -90.5069},
	"haiti":         {18.5944, -72.3074},
	"iceland":       {64.1466, -21.9426},
	"india":         {28.6139, 77.2090},
	"indonesia":     {-6.2088, 106.8456},
	"iran":          {35.6892, 51.3890},
	"iraq":          {33.3152, 44.3661},
	"israel":        {31.7683, 35.2137},
	"italy":         {41.9028, 12.4964},
	"japan":         {35.6762, 139.6503},
	"kenya":         {-1.2921, 36.8219},
	"lebanon":       {33.8547, 35.8623},
	"madagascar":    {-18.8792, 47.5079},
	"mexico":        {19.4326, -99.1332},
	"morocco":       {33.9716, -6.8498},
	"mozambique":    {-25.9692, 32.5732},
	"myanmar":       {16.8661, 96.1951},
	"nepal":         {27.7172, 85.3240},
	"new zealand":   {-41.2866, 174.7756},
	"nigeria":       {9.0765, 7.3986},
	"pakistan":      {33.6844, 73.0479},
	"palestine":     {31.9522, 35.2332},
	"peru":          {-12.0464, -77.0428},
	"philippines":   {14.5995, 120.9842},
	"russia":        {55.7558, 37.6176},
	"somalia":       {2.0469, 45.3182},
	"south korea":   {37.5665, 126.9780},
	"spain":         {40.4168, -3.7038},
	"sri lanka":     {6.9271, 79.8612},
	"sudan":         {15.5007, 32.5599},
	"syria":         {33.5138, 36.2765},
	"taiwan":        {25.0330, 121.5654},
	"thailand":      {13.7563, 100.5018},
	"turkey":        {41.0082, 28.9784},
	"ukraine":       {50.4501, 30.5234},
	"united states": {38.9072, -77.0369},
	"vietnam":       {21.0285, 105.8542},
	"yemen":         {15.5527, 48.5164},

	// Regions and major cities that show up constantly in headlines.
	"california": {36.7783, -119.4179},
	"florida":    {27.7663, -82.6404},
	"honshu":     {36.2048, 138.2529},
	"istanbul":   {41.0082, 28.9784},
	"jakarta":    {-6.2088, 106.8456},
	"kathmandu":  {27.7172, 85.3240},
	"kyiv":       {50.4501, 30.5234},
	"manila":     {14.5995, 120.9842},
	"sumatra":    {-0.5897, 101.3431},
	"texas":      {31.9686, -99.9018},
	"tokyo":      {35.6762, 139.6503},
}

// gazetteerNames holds gazetteer keys sorted for deterministic scans.
var gazetteerNames = func() []string {
	names := make([]string, 0, len(gazetteer))
	for name := range gazetteer {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()
