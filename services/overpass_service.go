package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/serjvanilla/go-overpass"

	"github.com/mohamedthameursassi/saferoute/routing"
)

// ErrEmptyNetwork is returned when no drivable way lies around a query.
var ErrEmptyNetwork = errors.New("no drivable road network around query")

const drivableHighways = "motorway|motorway_link|trunk|trunk_link|primary|primary_link|" +
	"secondary|secondary_link|tertiary|tertiary_link|unclassified|residential|living_street|service"

// Free-flow speeds in km/h for ways without a usable maxspeed tag.
var highwaySpeeds = map[string]float64{
	"motorway":       100,
	"motorway_link":  60,
	"trunk":          80,
	"trunk_link":     50,
	"primary":        60,
	"primary_link":   40,
	"secondary":      50,
	"secondary_link": 40,
	"tertiary":       40,
	"tertiary_link":  30,
	"unclassified":   30,
	"residential":    30,
	"living_street":  10,
	"service":        20,
}

var speedPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(mph|km/h|kmh)?\s*$`)

// OverpassNetwork downloads the drivable OSM network around each query.
type OverpassNetwork struct {
	client  *overpass.Client
	radiusM float64
	timeout time.Duration
}

func NewOverpassNetwork(endpoint string, radiusM float64, timeout time.Duration) *OverpassNetwork {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassNetwork{
		client:  &client,
		radiusM: radiusM,
		timeout: timeout,
	}
}

// Network fetches ways within a circle centred between origin and
// destination. The radius is at least radiusM and always reaches both ends.
func (o *OverpassNetwork) Network(ctx context.Context, origin, destination routing.Coordinate) (*routing.Graph, error) {
	center, radius := searchArea(origin, destination, o.radiusM)
	query := fmt.Sprintf(`[out:json][timeout:%d];
way["highway"~"^(%s)$"](around:%.0f,%.6f,%.6f);
(._;>;);
out body;`,
		int(o.timeout.Seconds()), drivableHighways, radius, center.Lat, center.Lon)

	type queryResult struct {
		res overpass.Result
		err error
	}
	done := make(chan queryResult, 1)
	go func() {
		res, err := o.client.Query(query)
		done <- queryResult{res: res, err: err}
	}()

	var res overpass.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", r.err)
		}
		res = r.res
	}

	ways := make([]osmWay, 0, len(res.Ways))
	for _, w := range res.Ways {
		way := osmWay{ID: w.ID, Tags: w.Tags}
		for _, n := range w.Nodes {
			if n == nil {
				continue
			}
			way.Nodes = append(way.Nodes, osmNode{ID: n.ID, Lat: n.Lat, Lon: n.Lon})
		}
		ways = append(ways, way)
	}

	g := buildGraph(ways)
	if len(g.Nodes) == 0 {
		return nil, ErrEmptyNetwork
	}
	log.Printf("Overpass network: %d nodes, %d edges within %.0f m", len(g.Nodes), g.EdgeCount(), radius)
	return g, nil
}

func searchArea(origin, destination routing.Coordinate, minRadiusM float64) (routing.Coordinate, float64) {
	center := routing.Coordinate{
		Lat: (origin.Lat + destination.Lat) / 2,
		Lon: (origin.Lon + destination.Lon) / 2,
	}
	half := routing.HaversineDistance(origin, destination) / 2
	// room for detours around the straight line
	radius := half*1.2 + 500
	return center, math.Max(radius, minRadiusM)
}

type osmNode struct {
	ID       int64
	Lat, Lon float64
}

type osmWay struct {
	ID    int64
	Tags  map[string]string
	Nodes []osmNode
}

// buildGraph turns OSM ways into a directed road graph. Each consecutive
// pair of way nodes becomes one edge per permitted direction.
func buildGraph(ways []osmWay) *routing.Graph {
	g := routing.NewGraph()
	for _, w := range ways {
		if len(w.Nodes) < 2 {
			continue
		}
		forward, backward := directions(w.Tags)
		speedMS := wayspeed(w.Tags) / 3.6
		name := w.Tags["name"]

		for i := 0; i+1 < len(w.Nodes); i++ {
			a, b := w.Nodes[i], w.Nodes[i+1]
			if a.ID == b.ID {
				continue
			}
			g.AddNode(a.ID, a.Lat, a.Lon)
			g.AddNode(b.ID, b.Lat, b.Lon)

			length := geo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
			travel := 0.0
			if speedMS > 0 {
				travel = length / speedMS
			}
			if forward {
				g.AddEdge(a.ID, b.ID, length, travel, name)
			}
			if backward {
				g.AddEdge(b.ID, a.ID, length, travel, name)
			}
		}
	}
	return g
}

func directions(tags map[string]string) (forward, backward bool) {
	switch strings.ToLower(tags["oneway"]) {
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return false, true
	case "no", "false", "0":
		return true, true
	}
	if tags["junction"] == "roundabout" || tags["highway"] == "motorway" {
		return true, false
	}
	return true, true
}

// wayspeed returns the way's speed in km/h, or 0 when nothing is known.
func wayspeed(tags map[string]string) float64 {
	if s, ok := parseMaxspeed(tags["maxspeed"]); ok {
		return s
	}
	return highwaySpeeds[tags["highway"]]
}

// parseMaxspeed reads values like "50", "30 mph" or "50;70" (first wins).
func parseMaxspeed(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	if i := strings.IndexAny(raw, ";|"); i >= 0 {
		raw = raw[:i]
	}
	m := speedPattern.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if m[2] == "mph" {
		v *= 1.609344
	}
	return v, true
}
