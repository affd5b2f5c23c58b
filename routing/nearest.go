package routing

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

var (
	// ErrNodeNotFound reports that a query point could not be snapped to
	// the graph.
	ErrNodeNotFound = errors.New("node not found in graph")
	// ErrNoPathFound reports that the destination is unreachable.
	ErrNoPathFound = errors.New("no path found")
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// HaversineDistance returns the great-circle distance in meters.
func HaversineDistance(a, b Coordinate) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// NearestNode snaps coord to the closest node by great-circle distance.
// maxSnapM bounds the accepted distance; zero or less disables the bound.
func (g *Graph) NearestNode(coord Coordinate, maxSnapM float64) (int64, float64, error) {
	var nearestNode int64
	minDistance := math.Inf(1)

	for nodeID, node := range g.Nodes {
		dist := HaversineDistance(coord, Coordinate{
			Lat: node.Latitude,
			Lon: node.Longitude,
		})
		if dist < minDistance || (dist == minDistance && nodeID < nearestNode) {
			minDistance = dist
			nearestNode = nodeID
		}
	}

	if math.IsInf(minDistance, 1) {
		return 0, 0, fmt.Errorf("%w: no node near (%.6f, %.6f)", ErrNodeNotFound, coord.Lat, coord.Lon)
	}
	if maxSnapM > 0 && minDistance > maxSnapM {
		return 0, 0, fmt.Errorf("%w: nearest node %d is %.0fm from (%.6f, %.6f)",
			ErrNodeNotFound, nearestNode, minDistance, coord.Lat, coord.Lon)
	}
	return nearestNode, minDistance, nil
}
