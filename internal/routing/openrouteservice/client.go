// Package openrouteservice provides the OpenRouteService-backed candidate
// route provider.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanroute/cleanroute/internal/provider/resilience"
	"github.com/cleanroute/cleanroute/internal/routing"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultProfile is the routing profile candidates are generated for.
	DefaultProfile = "driving-car"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// maxCandidates caps how many alternatives are requested.
	maxCandidates = 5
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// Profile is the routing profile (optional, defaults to driving-car).
	Profile string

	// HTTPClient is the HTTP client to use (optional). If nil, uses a
	// resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService candidate-route provider.
type Client struct {
	apiKey     string
	baseURL    string
	profile    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		profile:    profile,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GenerateCandidates returns alternative routes between two points. Route
// ids are positional, so repeated calls over identical data stay
// deterministic.
func (c *Client) GenerateCandidates(ctx context.Context, origin, destination geo.Point) ([]routing.Route, error) {
	if err := routing.ValidateCoordinates(origin); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}
	if err := routing.ValidateCoordinates(destination); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}

	orsReq := orsRequest{
		Coordinates: [][]float64{
			{origin.Lon, origin.Lat},
			{destination.Lon, destination.Lat},
		},
		AlternativeRoutes: &alternativeRoutesOpts{TargetCount: maxCandidates},
		Geometry:          true,
		Units:             "m",
	}

	body, err := json.Marshal(orsReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, c.profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "directions request failed",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close() //nolint:errcheck // best effort close

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp.StatusCode, respBody)
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	routes := make([]routing.Route, 0, len(orsResp.Routes))
	for i, r := range orsResp.Routes {
		routes = append(routes, routing.Route{
			ID:               fmt.Sprintf("ors-%d", i),
			Origin:           origin,
			Destination:      destination,
			GeometryPolyline: r.Geometry,
			DistanceMeters:   int(r.Summary.Distance),
			DurationSeconds:  int(r.Summary.Duration),
		})
	}

	c.logger.Debug().
		Int("candidates", len(routes)).
		Float64("origin_lat", origin.Lat).
		Float64("origin_lon", origin.Lon).
		Msg("generated candidate routes")

	return routes, nil
}

// parseError maps an ORS error response to a routing error.
func (c *Client) parseError(status int, body []byte) error {
	var orsErr orsError
	message := "directions request failed"
	if err := json.Unmarshal(body, &orsErr); err == nil && orsErr.Error.Message != "" {
		message = orsErr.Error.Message
	}

	underlying := routing.ErrProviderUnavailable
	if status == http.StatusNotFound {
		underlying = routing.ErrNoRouteFound
	}

	return &routing.Error{
		Provider: ProviderName,
		Code:     fmt.Sprintf("HTTP_%d", status),
		Message:  message,
		Err:      underlying,
	}
}
