package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// Estimate is the AI collaborator's independent classification of a record.
type Estimate struct {
	Category   domain.Category
	Severity   domain.Severity
	Confidence int
}

// Enhancer is the optional AI classification collaborator. It may be absent
// or failing at any time; callers must treat errors as "no opinion".
type Enhancer interface {
	Classify(ctx context.Context, text string) (Estimate, error)
}

// OpenAIEnhancer implements Enhancer against an OpenAI-compatible chat
// completion endpoint.
type OpenAIEnhancer struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenAIEnhancer(baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) *OpenAIEnhancer {
	return &OpenAIEnhancer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

const classifyPrompt = `Classify the disaster described below. Respond with a single JSON object:
{"category": "<UPPER_SNAKE_CASE category>", "severity": "LOW|MEDIUM|HIGH|CRITICAL", "confidence": <0-100>}

Text:
`

func (e *OpenAIEnhancer) Classify(ctx context.Context, text string) (Estimate, error) {
	content, err := e.complete(ctx, classifyPrompt+truncate(text, 2000))
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
	}

	var parsed struct {
		Category   string `json:"category"`
		Severity   string `json:"severity"`
		Confidence int    `json:"confidence"`
	}
	if err := json.Unmarshal(extractJSON(content), &parsed); err != nil {
		return Estimate{}, fmt.Errorf("%w: bad response: %v", domain.ErrAIUnavailable, err)
	}

	conf := parsed.Confidence
	if conf < 0 || conf > 100 {
		conf = 50
	}
	return Estimate{
		Category:   domain.ParseCategory(parsed.Category),
		Severity:   domain.ParseSeverity(parsed.Severity),
		Confidence: conf,
	}, nil
}

// complete performs one chat completion call and returns the message content.
func (e *OpenAIEnhancer) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       e.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": 0.1,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
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

// extractJSON pulls the first JSON object or array out of a completion that
// may be wrapped in prose or markdown fences.
func extractJSON(content string) []byte {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(content, pair[0])
		end := strings.LastIndexByte(content, pair[1])
		if start >= 0 && end > start {
			return []byte(content[start : end+1])
		}
	}
	return []byte(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
