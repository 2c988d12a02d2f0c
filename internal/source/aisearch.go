package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// AISearch asks an OpenAI-compatible model for recent disasters the
// structured sources may have missed. Its output is free text shaped by a
// prompt, so records carry the lowest reliability weight and go through the
// full enrichment pipeline like any other source.
type AISearch struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAISearch(baseURL, apiKey, model string, timeout time.Duration) *AISearch {
	return &AISearch{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *AISearch) Name() string            { return "ai-search" }
func (s *AISearch) Type() domain.SourceType { return domain.SourceTypeAI }

const searchPromptFormat = `List major disasters and emergencies worldwide since %s.
Only include real, verified events. Return a JSON array, maximum 15 entries:
[
  {
    "title": "Specific disaster title",
    "description": "Two-sentence description with impact details",
    "location": "City, Country",
    "category": "EARTHQUAKE|FLOOD|WILDFIRE|HURRICANE|VOLCANO|TORNADO|DROUGHT|OTHER",
    "date": "YYYY-MM-DD",
    "source": "Reporting agency or outlet"
  }
]`

// aiDraft is one entry of the model's JSON array.
type aiDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Source      string `json:"source"`
}

func (s *AISearch) Fetch(ctx context.Context, since time.Time) ([]domain.RawRecord, error) {
	prompt := fmt.Sprintf(searchPromptFormat, since.UTC().Format("2006-01-02"))

	content, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
	}

	drafts, err := parseDrafts(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
	}

	fetchedAt := time.Now().UTC()
	records := make([]domain.RawRecord, 0, len(drafts))
	for _, d := range drafts {
		if d.Title == "" {
			continue
		}
		var reported time.Time
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			reported = t.UTC()
		}
		records = append(records, domain.RawRecord{
			SourceID:     s.Name(),
			SourceType:   s.Type(),
			FetchedAt:    fetchedAt,
			Title:        d.Title,
			Body:         d.Description,
			LocationText: d.Location,
			Timestamp:    reported,
			CategoryHint: domain.ParseCategory(d.Category),
			Reference:    d.Source,
		})
	}
	return records, nil
}

// parseDrafts extracts the JSON array from a completion that may wrap it in
// prose or markdown fences.
func parseDrafts(content string) ([]aiDraft, error) {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in completion")
	}

	var drafts []aiDraft
	if err := json.Unmarshal([]byte(content[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("parse completion: %w", err)
	}
	return drafts, nil
}

func (s *AISearch) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       s.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return completion.Choices[0].Message.Content, nil
}
