package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// Client implements Geocoder against a Nominatim-compatible search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a geocoding client. The timeout bounds each resolution;
// an expired timeout surfaces as an error and the caller falls back.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Resolve looks the location text up against the provider. Returns
// domain.ErrGeocodeNotFound when the provider has no match.
func (c *Client) Resolve(ctx context.Context, locationText string) (Result, error) {
	params := url.Values{
		"q":      {locationText},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "crisis-aggregator/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("geocode API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	if len(places) == 0 {
		return Result{}, domain.ErrGeocodeNotFound
	}

	p := places[0]
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lon, errLon := strconv.ParseFloat(p.Lon, 64)
	if errLat != nil || errLon != nil {
		return Result{}, fmt.Errorf("geocode response: bad coordinates %q,%q", p.Lat, p.Lon)
	}

	return Result{
		Lat:       lat,
		Lon:       lon,
		Name:      p.DisplayName,
		Precision: domain.PrecisionPlace,
	}, nil
}

// Nominatim response shape; coordinates arrive as strings.
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
