package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohamedthameursassi/saferoute/routing"
)

// OSRM API response structures for alternative routes
type OSRMResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Routes  []OSRMRoute `json:"routes"`
}

type OSRMRoute struct {
	Distance float64           `json:"distance"` // in meters
	Duration float64           `json:"duration"` // in seconds
	Geometry *geojson.Geometry `json:"geometry"`
	Legs     []OSRMLeg         `json:"legs"`
}

type OSRMLeg struct {
	Summary string `json:"summary"`
}

// OSRMClient fetches alternative driving routes for candidate ranking.
type OSRMClient struct {
	osrmBaseURL string
	profile     string
	httpClient  *http.Client
}

func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OSRMClient{
		osrmBaseURL: strings.TrimRight(baseURL, "/"),
		profile:     "driving",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Candidates returns the provider's routes in provider order.
func (c *OSRMClient) Candidates(ctx context.Context, origin, destination routing.Coordinate) ([]routing.Candidate, error) {
	// OSRM expects lng,lat;lng,lat
	url := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?alternatives=true&steps=false&geometries=geojson&overview=full",
		c.osrmBaseURL, c.profile,
		origin.Lon, origin.Lat,
		destination.Lon, destination.Lat,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call OSRM API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OSRM response: %w", err)
	}

	var osrmResp OSRMResponse
	if err := json.Unmarshal(body, &osrmResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("OSRM API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode OSRM response: %w", err)
	}

	if osrmResp.Code == "NoRoute" {
		return nil, fmt.Errorf("%w: OSRM: %s", routing.ErrNoPathFound, osrmResp.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSRM API returned status %d: %s", resp.StatusCode, osrmResp.Code)
	}
	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		return nil, fmt.Errorf("OSRM returned no valid routes: %s", osrmResp.Code)
	}

	cands := make([]routing.Candidate, 0, len(osrmResp.Routes))
	for i, r := range osrmResp.Routes {
		cands = append(cands, routing.Candidate{
			Geometry:  lineString(r.Geometry),
			DurationS: r.Duration,
			DistanceM: r.Distance,
			Label:     routeLabel(r, i),
		})
	}
	return cands, nil
}

func lineString(g *geojson.Geometry) orb.LineString {
	if g == nil {
		return nil
	}
	if ls, ok := g.Geometry().(orb.LineString); ok {
		return ls
	}
	return nil
}

func routeLabel(r OSRMRoute, i int) string {
	parts := make([]string, 0, len(r.Legs))
	for _, leg := range r.Legs {
		if s := strings.TrimSpace(leg.Summary); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Route %d", i+1)
	}
	return strings.Join(parts, ", ")
}
