package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohamedthameursassi/saferoute/models"
)

// ErrLocationNotFound is returned for every geocoding failure.
var ErrLocationNotFound = errors.New("location not found")

type nominatimResult struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	County  string `json:"county"`
	State   string `json:"state"`
}

// place picks the most specific settlement name available.
func (a nominatimAddress) place() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.County} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Nominatim resolves free-text places to coordinates and the region/place
// names used by the risk model.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (n *Nominatim) Geocode(ctx context.Context, query string) (models.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Place{}, fmt.Errorf("%w: empty query", ErrLocationNotFound)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return models.Place{}, fmt.Errorf("%w: %v", ErrLocationNotFound, err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return models.Place{}, fmt.Errorf("%w: geocoding %q: %v", ErrLocationNotFound, query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Place{}, fmt.Errorf("%w: geocoder returned status %d", ErrLocationNotFound, resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Place{}, fmt.Errorf("%w: decoding geocoder response: %v", ErrLocationNotFound, err)
	}
	if len(results) == 0 {
		return models.Place{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	}

	r := results[0]
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)
	if errLat != nil || errLon != nil {
		return models.Place{}, fmt.Errorf("%w: invalid coordinates %q, %q", ErrLocationNotFound, r.Lat, r.Lon)
	}

	return models.Place{
		Location:    models.Location{Latitude: lat, Longitude: lon},
		Region:      strings.ToUpper(r.Address.State),
		Place:       strings.ToUpper(r.Address.place()),
		DisplayName: r.DisplayName,
	}, nil
}
