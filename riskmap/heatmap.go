package riskmap

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Cell aggregates the risk points that fall in one slippy-map tile.
type Cell struct {
	Tile     maptile.Tile
	Count    int
	MaxScore float64
	Centroid orb.Point
}

// Heatmap groups points into tiles at the given zoom, ordered by accident
// count descending. Count sums occurrences, not distinct locations.
func (s *Surface) Heatmap(zoom maptile.Zoom) []Cell {
	if s == nil || len(s.points) == 0 {
		return nil
	}

	type acc struct {
		cell           Cell
		sumLon, sumLat float64
	}
	cells := make(map[maptile.Tile]*acc)
	for _, p := range s.points {
		t := maptile.At(p.Point(), zoom)
		a, ok := cells[t]
		if !ok {
			a = &acc{cell: Cell{Tile: t}}
			cells[t] = a
		}
		a.cell.Count += p.Count
		if p.Score > a.cell.MaxScore {
			a.cell.MaxScore = p.Score
		}
		w := float64(p.Count)
		a.sumLon += p.Longitude * w
		a.sumLat += p.Latitude * w
	}

	out := make([]Cell, 0, len(cells))
	for _, a := range cells {
		n := float64(a.cell.Count)
		a.cell.Centroid = orb.Point{a.sumLon / n, a.sumLat / n}
		out = append(out, a.cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Tile.X != out[j].Tile.X {
			return out[i].Tile.X < out[j].Tile.X
		}
		return out[i].Tile.Y < out[j].Tile.Y
	})
	return out
}
