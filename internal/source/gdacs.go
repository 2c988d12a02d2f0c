package source

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// GDACS pulls the Global Disaster Alert and Coordination System RSS feed.
// Alert levels (Red/Orange/Green) appear in the item text and feed the
// severity keyword tiers downstream, so the body is passed through whole.
type GDACS struct {
	feedURL    string
	httpClient *http.Client
	parser     *gofeed.Parser
}

func NewGDACS(feedURL string, client *http.Client) *GDACS {
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = userAgent
	return &GDACS{feedURL: feedURL, httpClient: client, parser: p}
}

func (s *GDACS) Name() string            { return "gdacs" }
func (s *GDACS) Type() domain.SourceType { return domain.SourceTypeAPI }

func (s *GDACS) Fetch(ctx context.Context, since time.Time) ([]domain.RawRecord, error) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	var records []domain.RawRecord
	for _, item := range feed.Items {
		published := itemTime(item)
		if !published.IsZero() && published.Before(since) {
			continue
		}

		records = append(records, domain.RawRecord{
			SourceID:   s.Name(),
			SourceType: s.Type(),
			FetchedAt:  fetchedAt,
			Title:      item.Title,
			Body:       firstNonEmpty(item.Description, item.Content),
			Timestamp:  published,
			Reference:  firstNonEmpty(item.Link, item.GUID),
		})
	}
	return records, nil
}

// itemTime returns the best timestamp a feed item carries, zero when the
// item reports none.
func itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return time.Time{}
	}
}
