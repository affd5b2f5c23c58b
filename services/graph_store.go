package services

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/mohamedthameursassi/saferoute/routing"
)

const metersPerDegree = 111320.0

// GraphStore serves a preloaded road graph, cropped to each query.
type GraphStore struct {
	graph   *routing.Graph
	marginM float64
}

func NewGraphStore(g *routing.Graph, marginM float64) *GraphStore {
	return &GraphStore{graph: g, marginM: marginM}
}

// LoadGraphStore reads a gob graph produced by cmd/graphgob.
func LoadGraphStore(path string, marginM float64) (*GraphStore, error) {
	g, err := LoadGraph(path)
	if err != nil {
		return nil, err
	}
	return NewGraphStore(g, marginM), nil
}

func (s *GraphStore) Graph() *routing.Graph {
	return s.graph
}

// Network returns the part of the stored graph inside the bounding box of
// origin and destination, padded by the store margin.
func (s *GraphStore) Network(ctx context.Context, origin, destination routing.Coordinate) (*routing.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := orb.MultiPoint{origin.Point(), destination.Point()}.Bound()
	b = b.Pad(s.marginM / metersPerDegree)

	g := s.graph.Crop(b)
	if len(g.Nodes) == 0 {
		return nil, ErrEmptyNetwork
	}
	return g, nil
}

func LoadGraph(path string) (*routing.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open graph file: %w", err)
	}
	defer f.Close()

	g := routing.NewGraph()
	if err := gob.NewDecoder(f).Decode(g); err != nil {
		return nil, fmt.Errorf("could not decode graph %s: %w", path, err)
	}
	return g, nil
}

func SaveGraph(path string, g *routing.Graph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create GOB file %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(g); err != nil {
		return fmt.Errorf("failed to encode GOB to %s: %w", path, err)
	}
	return nil
}
