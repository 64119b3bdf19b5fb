// Package geo wraps the Google Maps Geocoding HTTP API and builds
// directions links.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const geocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrNoResults indicates the query geocoded to nothing.
var ErrNoResults = errors.New("no geocoding results")

// Place is a resolved location.
type Place struct {
	Lat     float64
	Lng     float64
	Address string
}

// Service resolves place names and addresses to coordinates.
type Service interface {
	Geocode(ctx context.Context, query string) (*Place, error)
}

// Config holds the Google geocoder settings.
type Config struct {
	APIKey  string
	Timeout time.Duration

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// Google is the Google Maps Geocoding API client.
type Google struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGoogle creates a geocoder.
func NewGoogle(cfg *Config) *Google {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geocodeURL
	}
	return &Google{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a place name or address to WGS84 coordinates,
// preferring Korean-language results.
func (g *Google) Geocode(ctx context.Context, query string) (*Place, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)
	params.Set("language", "ko")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build geocode request")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "geocode request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("geocode API status %d: %s", resp.StatusCode, body)
	}

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode geocode response")
	}
	if len(decoded.Results) == 0 {
		return nil, errors.Wrapf(ErrNoResults, "query %q status %s", query, decoded.Status)
	}

	first := decoded.Results[0]
	address := first.FormattedAddress
	if address == "" {
		address = query
	}
	return &Place{
		Lat:     first.Geometry.Location.Lat,
		Lng:     first.Geometry.Location.Lng,
		Address: address,
	}, nil
}

// BuildDirectionsURL builds a Google Maps directions link from the
// user's shared location to the destination.
func BuildDirectionsURL(startLat, startLng, destLat, destLng float64) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/%v,%v/%v,%v/",
		startLat, startLng, destLat, destLng)
}

var _ Service = (*Google)(nil)
