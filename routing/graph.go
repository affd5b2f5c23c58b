package routing

import (
	"github.com/paulmach/orb"
)

// Node represents a vertex in the road network
type Node struct {
	ID        int64   // Unique identifier for the node
	Latitude  float64 // Geographic latitude in degrees
	Longitude float64 // Geographic longitude in degrees
}

func (n *Node) Point() orb.Point {
	return orb.Point{n.Longitude, n.Latitude}
}

// Edge represents a directed road segment between two nodes. Key tells
// parallel edges between the same pair of nodes apart.
type Edge struct {
	FromID     int64   // ID of the starting node
	ToID       int64   // ID of the ending node
	Key        int     // Parallel edge index
	Distance   float64 // Length in meters
	TravelTime float64 // Travel time in seconds, 0 when unknown
	Name       string  // Optional street name
}

// EdgeID identifies an edge within a multigraph.
type EdgeID struct {
	From int64
	To   int64
	Key  int
}

func (e *Edge) ID() EdgeID {
	return EdgeID{From: e.FromID, To: e.ToID, Key: e.Key}
}

// Graph represents a directed multigraph of road nodes and edges. A graph is
// read-only once handed to a query.
type Graph struct {
	Nodes map[int64]*Node   // Map of node IDs to node objects
	Edges map[int64][]*Edge // Map of node IDs to outgoing edges
}

func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[int64]*Node),
		Edges: make(map[int64][]*Edge),
	}
}

func (g *Graph) AddNode(id int64, lat, lon float64) *Node {
	n := &Node{ID: id, Latitude: lat, Longitude: lon}
	g.Nodes[id] = n
	return n
}

// AddEdge appends an edge from -> to and assigns the next free parallel key.
func (g *Graph) AddEdge(from, to int64, distance, travelTime float64, name string) *Edge {
	key := 0
	for _, e := range g.Edges[from] {
		if e.ToID == to && e.Key >= key {
			key = e.Key + 1
		}
	}
	e := &Edge{
		FromID:     from,
		ToID:       to,
		Key:        key,
		Distance:   distance,
		TravelTime: travelTime,
		Name:       name,
	}
	g.Edges[from] = append(g.Edges[from], e)
	return e
}

func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.Edges {
		n += len(edges)
	}
	return n
}

// Bound returns the bounding box of all nodes.
func (g *Graph) Bound() orb.Bound {
	mp := make(orb.MultiPoint, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		mp = append(mp, n.Point())
	}
	return mp.Bound()
}

// Crop returns the subgraph of nodes inside b and the edges joining them.
// Nodes and edges are shared with g, not copied.
func (g *Graph) Crop(b orb.Bound) *Graph {
	out := NewGraph()
	for id, n := range g.Nodes {
		if b.Contains(n.Point()) {
			out.Nodes[id] = n
		}
	}
	for from, edges := range g.Edges {
		if _, ok := out.Nodes[from]; !ok {
			continue
		}
		for _, e := range edges {
			if _, ok := out.Nodes[e.ToID]; ok {
				out.Edges[from] = append(out.Edges[from], e)
			}
		}
	}
	return out
}

// Midpoint returns the arithmetic midpoint of an edge's endpoints.
func (g *Graph) Midpoint(e *Edge) (lat, lon float64, ok bool) {
	from, okFrom := g.Nodes[e.FromID]
	to, okTo := g.Nodes[e.ToID]
	if !okFrom || !okTo {
		return 0, 0, false
	}
	return (from.Latitude + to.Latitude) / 2, (from.Longitude + to.Longitude) / 2, true
}

// Waypoints converts a node sequence to (lat, lon) coordinates.
func (g *Graph) Waypoints(nodes []int64) []Coordinate {
	out := make([]Coordinate, 0, len(nodes))
	for _, id := range nodes {
		if n, ok := g.Nodes[id]; ok {
			out = append(out, Coordinate{Lat: n.Latitude, Lon: n.Longitude})
		}
	}
	return out
}
