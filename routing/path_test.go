package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeCosts costs every edge by travel time plus risk * weight.
func timeCosts(g *Graph, risk map[EdgeID]float64, weight float64) CostMap {
	costs := make(CostMap)
	for _, edges := range g.Edges {
		for _, e := range edges {
			r := risk[e.ID()]
			costs[e.ID()] = EdgeCost{Cost: e.TravelTime + r*weight, Risk: r}
		}
	}
	return costs
}

// diamond has two routes from 1 to 4: a fast one through 2 and a slow one
// through 3.
func diamond() *Graph {
	g := NewGraph()
	g.AddNode(1, 0, 0)
	g.AddNode(2, 0.001, 0.001)
	g.AddNode(3, -0.001, 0.001)
	g.AddNode(4, 0, 0.002)
	g.AddEdge(1, 2, 100, 10, "fast a")
	g.AddEdge(2, 4, 100, 10, "fast b")
	g.AddEdge(1, 3, 150, 15, "slow a")
	g.AddEdge(3, 4, 150, 15, "slow b")
	return g
}

func TestSimpleShortestPath(t *testing.T) {
	g := &Graph{
		Nodes: map[int64]*Node{
			1: {ID: 1, Latitude: 0, Longitude: 0},
			2: {ID: 2, Latitude: 0, Longitude: 1},
			3: {ID: 3, Latitude: 0, Longitude: 2},
		},
		Edges: map[int64][]*Edge{
			1: {{FromID: 1, ToID: 2, Distance: 100, TravelTime: 10}},
			2: {{FromID: 2, ToID: 3, Distance: 200, TravelTime: 20}},
		},
	}

	path, err := ShortestPath(context.Background(), g, timeCosts(g, nil, 0), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, path.Nodes)
	assert.Equal(t, 30.0, path.Cost)
	assert.Equal(t, 300.0, path.Distance())
}

func TestShortestPath_ZeroRiskIsMinimumTime(t *testing.T) {
	g := diamond()

	path, err := ShortestPath(context.Background(), g, timeCosts(g, nil, 1000), 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, path.Nodes)
	assert.Equal(t, 20.0, path.Cost)
	assert.Equal(t, 0.0, TotalRisk(path.Edges, timeCosts(g, nil, 1000)))
}

func TestShortestPath_AvoidsRiskyEdges(t *testing.T) {
	g := diamond()
	risk := map[EdgeID]float64{
		{From: 2, To: 4}: 0.5,
	}
	costs := timeCosts(g, risk, 1000)

	path, err := ShortestPath(context.Background(), g, costs, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, path.Nodes)
	assert.Equal(t, 30.0, path.Cost)
	assert.Equal(t, 0.0, TotalRisk(path.Edges, costs))
}

func TestShortestPath_ParallelEdgesUseCheapest(t *testing.T) {
	g := NewGraph()
	g.AddNode(1, 0, 0)
	g.AddNode(2, 0, 0.001)
	slow := g.AddEdge(1, 2, 120, 40, "service road")
	fast := g.AddEdge(1, 2, 100, 10, "avenue")
	require.Equal(t, 0, slow.Key)
	require.Equal(t, 1, fast.Key)

	costs := CostMap{
		slow.ID(): {Cost: 40, Risk: 0.1},
		fast.ID(): {Cost: 10, Risk: 0.2},
	}
	path, err := ShortestPath(context.Background(), g, costs, 1, 2)
	require.NoError(t, err)
	require.Len(t, path.Edges, 1)
	assert.Equal(t, fast, path.Edges[0])
	assert.InDelta(t, 20.0, TotalRisk(path.Edges, costs), 1e-12)
}

func TestShortestPath_Disconnected(t *testing.T) {
	g := diamond()
	g.AddNode(5, 1, 1)

	_, err := ShortestPath(context.Background(), g, timeCosts(g, nil, 0), 1, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPathFound))
	assert.False(t, errors.Is(err, ErrNodeNotFound))
}

func TestShortestPath_DirectedEdges(t *testing.T) {
	g := diamond()

	_, err := ShortestPath(context.Background(), g, timeCosts(g, nil, 0), 4, 1)
	assert.ErrorIs(t, err, ErrNoPathFound)
}

func TestShortestPath_UncostedEdgesAreSkipped(t *testing.T) {
	g := diamond()
	costs := timeCosts(g, nil, 0)
	delete(costs, EdgeID{From: 1, To: 2})

	path, err := ShortestPath(context.Background(), g, costs, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, path.Nodes)
}

func TestShortestPath_MissingNode(t *testing.T) {
	g := diamond()

	_, err := ShortestPath(context.Background(), g, timeCosts(g, nil, 0), 1, 99)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = ShortestPath(context.Background(), g, timeCosts(g, nil, 0), 99, 1)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestShortestPath_SameNode(t *testing.T) {
	g := diamond()

	path, err := ShortestPath(context.Background(), g, timeCosts(g, nil, 0), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, path.Nodes)
	assert.Empty(t, path.Edges)
}

func TestShortestPath_CancelledContext(t *testing.T) {
	g := diamond()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := ShortestPath(ctx, g, timeCosts(g, nil, 0), 1, 4)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTotalRisk_DirectionInvariant(t *testing.T) {
	g := NewGraph()
	for i := int64(1); i <= 5; i++ {
		g.AddNode(i, 0, float64(i)*0.001)
	}
	risk := map[EdgeID]float64{}
	values := []float64{0.125, 0.5, 0.75, 0.0625}
	lengths := []float64{111.5, 90.25, 47, 230}
	for i := int64(1); i < 5; i++ {
		fwd := g.AddEdge(i, i+1, lengths[i-1], 10, "")
		back := g.AddEdge(i+1, i, lengths[i-1], 10, "")
		risk[fwd.ID()] = values[i-1]
		risk[back.ID()] = values[i-1]
	}
	costs := timeCosts(g, risk, 100)

	forward, err := ShortestPath(context.Background(), g, costs, 1, 5)
	require.NoError(t, err)
	backward, err := ShortestPath(context.Background(), g, costs, 5, 1)
	require.NoError(t, err)

	reversed := make([]*Edge, len(forward.Edges))
	for i, e := range forward.Edges {
		reversed[len(reversed)-1-i] = e
	}

	want := TotalRisk(forward.Edges, costs)
	assert.InDelta(t, want, TotalRisk(reversed, costs), 1e-9)
	assert.InDelta(t, want, TotalRisk(backward.Edges, costs), 1e-9)
}

func TestNearestNode(t *testing.T) {
	g := diamond()

	id, dist, err := g.NearestNode(Coordinate{Lat: 0.0009, Lon: 0.0011}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.Less(t, dist, 50.0)

	_, _, err = g.NearestNode(Coordinate{Lat: 1, Lon: 1}, 500)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, _, err = NewGraph().NearestNode(Coordinate{}, 0)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCropAndWaypoints(t *testing.T) {
	g := diamond()
	cropped := g.Crop(orb.Bound{Min: orb.Point{-0.0005, -0.0015}, Max: orb.Point{0.0025, 0.0015}})

	assert.Len(t, cropped.Nodes, 4)
	assert.Equal(t, 4, cropped.EdgeCount())

	upper := g.Crop(orb.Bound{Min: orb.Point{-0.0005, -0.0005}, Max: orb.Point{0.0025, 0.0015}})
	assert.Len(t, upper.Nodes, 3)
	assert.Equal(t, 2, upper.EdgeCount())

	wps := g.Waypoints([]int64{1, 2, 4})
	assert.Equal(t, []Coordinate{{Lat: 0, Lon: 0}, {Lat: 0.001, Lon: 0.001}, {Lat: 0, Lon: 0.002}}, wps)

	lat, lon, ok := g.Midpoint(g.Edges[1][0])
	require.True(t, ok)
	assert.InDelta(t, 0.0005, lat, 1e-12)
	assert.InDelta(t, 0.0005, lon, 1e-12)
}
