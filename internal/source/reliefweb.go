package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// ReliefWeb pulls the UN OCHA disaster database. Entries carry typed
// disaster categories and country names but no coordinates, so the country
// list becomes the location text for geocoding.
type ReliefWeb struct {
	apiURL     string
	httpClient *http.Client
}

func NewReliefWeb(apiURL string, client *http.Client) *ReliefWeb {
	return &ReliefWeb{apiURL: apiURL, httpClient: client}
}

func (s *ReliefWeb) Name() string            { return "reliefweb" }
func (s *ReliefWeb) Type() domain.SourceType { return domain.SourceTypeAPI }

type reliefWebResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Fields struct {
			Title   string `json:"name"`
			Body    string `json:"description"`
			Country []struct {
				Name string `json:"name"`
			} `json:"country"`
			Date struct {
				Created string `json:"created"`
			} `json:"date"`
			Type []struct {
				Name string `json:"name"`
			} `json:"type"`
			URL string `json:"url"`
		} `json:"fields"`
	} `json:"data"`
}

func (s *ReliefWeb) Fetch(ctx context.Context, since time.Time) ([]domain.RawRecord, error) {
	q := url.Values{}
	q.Set("appname", "crisis-aggregator")
	q.Set("limit", "50")
	q.Add("sort[]", "date:desc")
	for _, f := range []string{"name", "description", "country", "date", "type", "url"} {
		q.Add("fields[include][]", f)
	}
	q.Set("filter[field]", "date.created")
	q.Set("filter[value][from]", since.UTC().Format("2006-01-02"))

	var resp reliefWebResponse
	if err := getJSON(ctx, s.httpClient, s.apiURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	records := make([]domain.RawRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		f := item.Fields

		var countries []string
		for _, c := range f.Country {
			if c.Name != "" {
				countries = append(countries, c.Name)
			}
		}

		created, _ := time.Parse(time.RFC3339, f.Date.Created)

		records = append(records, domain.RawRecord{
			SourceID:     s.Name(),
			SourceType:   s.Type(),
			FetchedAt:    fetchedAt,
			Title:        f.Title,
			Body:         f.Body,
			LocationText: strings.Join(countries, ", "),
			Timestamp:    created.UTC(),
			CategoryHint: mapReliefWebType(f.Type),
			Reference:    firstNonEmpty(f.URL, item.ID),
		})
	}
	return records, nil
}

// mapReliefWebType maps ReliefWeb's typed disaster taxonomy onto ours. The
// first recognized type wins; unrecognized types leave the hint empty so the
// keyword stage classifies from text. More specific terms are checked before
// their substrings (flash flood before flood).
func mapReliefWebType(types []struct {
	Name string `json:"name"`
}) domain.Category {
	for _, t := range types {
		name := strings.ToLower(t.Name)
		for _, m := range reliefWebTypeMap {
			if strings.Contains(name, m.term) {
				return m.category
			}
		}
	}
	return ""
}

var reliefWebTypeMap = []struct {
	term     string
	category domain.Category
}{
	{"earthquake", domain.CategoryEarthquake},
	{"tsunami", domain.CategoryTsunami},
	{"volcano", domain.CategoryVolcano},
	{"land slide", domain.CategoryLandslide},
	{"landslide", domain.CategoryLandslide},
	{"mud slide", domain.CategoryLandslide},
	{"flash flood", domain.CategoryFlashFlood},
	{"storm surge", domain.CategoryStormSurge},
	{"flood", domain.CategoryFlood},
	{"tropical cyclone", domain.CategoryCyclone},
	{"cyclone", domain.CategoryCyclone},
	{"severe local storm", domain.CategorySevereStorm},
	{"tornado", domain.CategoryTornado},
	{"snow avalanche", domain.CategoryAvalanche},
	{"snow", domain.CategoryBlizzard},
	{"cold wave", domain.CategoryColdWave},
	{"heat wave", domain.CategoryHeatWave},
	{"drought", domain.CategoryDrought},
	{"wild fire", domain.CategoryWildfire},
	{"fire", domain.CategoryWildfire},
	{"epidemic", domain.CategoryEpidemic},
	{"insect infestation", domain.CategoryInfestation},
	{"technological disaster", domain.CategoryIndustrialAccident},
}
