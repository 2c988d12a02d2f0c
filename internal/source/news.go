package source

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// maxItemsPerFeed bounds how deep into each feed we read. General news
// feeds are mostly non-disaster content; the gate discards the rest.
const maxItemsPerFeed = 20

// News pulls general-news RSS/Atom feeds and keeps only items that pass the
// disaster quality gate. One broken feed does not fail the source as long as
// at least one other feed parsed.
type News struct {
	feedURLs []string
	parser   *gofeed.Parser
	logger   *slog.Logger
}

func NewNews(feedURLs []string, client *http.Client, logger *slog.Logger) *News {
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = userAgent
	return &News{feedURLs: feedURLs, parser: p, logger: logger}
}

func (s *News) Name() string            { return "news" }
func (s *News) Type() domain.SourceType { return domain.SourceTypeFeed }

func (s *News) Fetch(ctx context.Context, since time.Time) ([]domain.RawRecord, error) {
	fetchedAt := time.Now().UTC()
	var records []domain.RawRecord
	var failed int

	for _, url := range s.feedURLs {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			s.logger.Warn("news feed failed", "feed", url, "error", err)
			failed++
			continue
		}

		items := feed.Items
		if len(items) > maxItemsPerFeed {
			items = items[:maxItemsPerFeed]
		}
		for _, item := range items {
			if !isDisasterNews(item.Title, item.Description) {
				continue
			}
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
	}

	if failed == len(s.feedURLs) {
		return nil, errors.New("all news feeds failed")
	}
	return records, nil
}
