package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedthameursassi/saferoute/routing"
)

func street(id int64, tags map[string]string, nodes ...osmNode) osmWay {
	return osmWay{ID: id, Tags: tags, Nodes: nodes}
}

var (
	nA = osmNode{ID: 1, Lat: 38.7000, Lon: -9.1400}
	nB = osmNode{ID: 2, Lat: 38.7010, Lon: -9.1400}
	nC = osmNode{ID: 3, Lat: 38.7020, Lon: -9.1400}
)

func TestBuildGraph_TwoWayStreet(t *testing.T) {
	g := buildGraph([]osmWay{
		street(10, map[string]string{"highway": "residential", "name": "Rua A"}, nA, nB, nC),
	})

	assert.Len(t, g.Nodes, 3)
	assert.Equal(t, 4, g.EdgeCount())

	e := g.Edges[1][0]
	assert.Equal(t, int64(2), e.ToID)
	assert.Equal(t, "Rua A", e.Name)
	assert.InDelta(t, 111.2, e.Distance, 0.5)
	// residential default of 30 km/h
	assert.InDelta(t, e.Distance/(30/3.6), e.TravelTime, 1e-9)
}

func TestBuildGraph_Oneway(t *testing.T) {
	tests := []struct {
		name      string
		tags      map[string]string
		forward   bool
		backwards bool
	}{
		{"yes", map[string]string{"highway": "primary", "oneway": "yes"}, true, false},
		{"reverse", map[string]string{"highway": "primary", "oneway": "-1"}, false, true},
		{"roundabout", map[string]string{"highway": "primary", "junction": "roundabout"}, true, false},
		{"motorway", map[string]string{"highway": "motorway"}, true, false},
		{"explicit no", map[string]string{"highway": "motorway", "oneway": "no"}, true, true},
		{"untagged", map[string]string{"highway": "primary"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph([]osmWay{street(1, tt.tags, nA, nB)})
			assert.Equal(t, tt.forward, len(g.Edges[1]) == 1)
			assert.Equal(t, tt.backwards, len(g.Edges[2]) == 1)
		})
	}
}

func TestBuildGraph_SkipsDegenerateWays(t *testing.T) {
	g := buildGraph([]osmWay{
		street(1, map[string]string{"highway": "primary"}, nA),
		street(2, map[string]string{"highway": "primary"}, nA, nA),
	})
	assert.Empty(t, g.Nodes)
	assert.Zero(t, g.EdgeCount())
}

func TestParseMaxspeed(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"50", 50, true},
		{"50 km/h", 50, true},
		{"30 mph", 30 * 1.609344, true},
		{"50;70", 50, true},
		{"PT:urban", 0, false},
		{"", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseMaxspeed(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestWayspeed_FallsBackToHighwayClass(t *testing.T) {
	assert.Equal(t, 60.0, wayspeed(map[string]string{"highway": "primary", "maxspeed": "signals"}))
	assert.Equal(t, 80.0, wayspeed(map[string]string{"highway": "primary", "maxspeed": "80"}))
	assert.Zero(t, wayspeed(map[string]string{"highway": "track"}))
}

func TestSearchArea(t *testing.T) {
	o := routing.Coordinate{Lat: 38.70, Lon: -9.14}
	d := routing.Coordinate{Lat: 38.80, Lon: -9.14}

	center, radius := searchArea(o, d, 5000)
	assert.InDelta(t, 38.75, center.Lat, 1e-9)
	// both ends must be inside the circle
	assert.Greater(t, radius, routing.HaversineDistance(center, d))

	_, radius = searchArea(o, o, 5000)
	assert.Equal(t, 5000.0, radius)
}

func TestOverpassNetwork_Network(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[
			{"type":"node","id":1,"lat":38.7000,"lon":-9.1400},
			{"type":"node","id":2,"lat":38.7010,"lon":-9.1400},
			{"type":"way","id":10,"nodes":[1,2],"tags":{"highway":"residential","oneway":"yes"}}
		]}`))
	}))
	defer srv.Close()

	o := NewOverpassNetwork(srv.URL, 1000, 5*time.Second)
	g, err := o.Network(context.Background(), routing.Coordinate{Lat: 38.70, Lon: -9.14}, routing.Coordinate{Lat: 38.701, Lon: -9.14})
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestOverpassNetwork_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	_, err := NewOverpassNetwork(srv.URL, 1000, time.Second).Network(context.Background(), routing.Coordinate{}, routing.Coordinate{})
	assert.ErrorIs(t, err, ErrEmptyNetwork)
}

func TestGraphStore_RoundTripAndCrop(t *testing.T) {
	g := buildGraph([]osmWay{
		street(10, map[string]string{"highway": "residential"}, nA, nB, nC),
		street(11, map[string]string{"highway": "residential"},
			osmNode{ID: 9, Lat: 39.5, Lon: -8.0}, osmNode{ID: 8, Lat: 39.501, Lon: -8.0}),
	})
	path := filepath.Join(t.TempDir(), "graphs", "net.gob")
	require.NoError(t, SaveGraph(path, g))

	store, err := LoadGraphStore(path, 200)
	require.NoError(t, err)
	assert.Len(t, store.Graph().Nodes, 5)
	assert.Equal(t, g.EdgeCount(), store.Graph().EdgeCount())

	sub, err := store.Network(context.Background(),
		routing.Coordinate{Lat: nA.Lat, Lon: nA.Lon},
		routing.Coordinate{Lat: nC.Lat, Lon: nC.Lon})
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 3)
	assert.Equal(t, 4, sub.EdgeCount())

	_, err = store.Network(context.Background(), routing.Coordinate{Lat: 10, Lon: 10}, routing.Coordinate{Lat: 10, Lon: 10})
	assert.ErrorIs(t, err, ErrEmptyNetwork)
}

func TestLoadGraph_Missing(t *testing.T) {
	_, err := LoadGraph(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}
