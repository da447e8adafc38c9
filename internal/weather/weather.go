// Package weather provides the wind data the live heading view consumes.
// The real provider is an external HTTP service; a stub stands in when none
// is configured.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Wind is a current wind reading.
type Wind struct {
	DirectionDeg float64 `json:"direction_deg"`
	SpeedKmh     float64 `json:"speed_kmh"`
	GustsKmh     float64 `json:"gusts_kmh"`
}

// Provider exposes current wind conditions at a coordinate.
type Provider interface {
	CurrentWind(ctx context.Context, lat, lng float64) (Wind, error)
}

// HTTPProvider queries an Open-Meteo compatible endpoint.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPProvider creates a provider against the given base URL.
func NewHTTPProvider(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type currentResponse struct {
	Current struct {
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
		WindGusts     float64 `json:"wind_gusts_10m"`
	} `json:"current"`
}

// CurrentWind fetches wind conditions. The caller's context deadline bounds
// the request.
func (p *HTTPProvider) CurrentWind(ctx context.Context, lat, lng float64) (Wind, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lng))
	q.Set("current", "wind_speed_10m,wind_direction_10m,wind_gusts_10m")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return Wind{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Wind{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Wind{}, fmt.Errorf("weather provider returned status %d", resp.StatusCode)
	}

	var body currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Wind{}, fmt.Errorf("failed to decode weather response: %w", err)
	}

	return Wind{
		DirectionDeg: body.Current.WindDirection,
		SpeedKmh:     body.Current.WindSpeed,
		GustsKmh:     body.Current.WindGusts,
	}, nil
}

// StubProvider returns calm wind. Selected when no provider is configured.
type StubProvider struct{}

func (StubProvider) CurrentWind(ctx context.Context, lat, lng float64) (Wind, error) {
	return Wind{DirectionDeg: 270, SpeedKmh: 8, GustsKmh: 12}, nil
}
