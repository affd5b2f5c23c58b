package riskmap

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

type index struct {
	tree *quadtree.Quadtree
}

type indexedPoint struct {
	i int
	p orb.Point
}

func (ip *indexedPoint) Point() orb.Point {
	return ip.p
}

func newIndex(points []RiskPoint) *index {
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, p.Point())
	}
	// Padding keeps single-point and collinear sets inside a non-empty bound.
	tree := quadtree.New(mp.Bound().Pad(1e-6))
	for i, p := range points {
		if err := tree.Add(&indexedPoint{i: i, p: p.Point()}); err != nil {
			return nil
		}
	}
	return &index{tree: tree}
}

func (ix *index) nearest(q orb.Point) (int, bool) {
	found := ix.tree.Find(q)
	if found == nil {
		return 0, false
	}
	ip, ok := found.(*indexedPoint)
	if !ok {
		return 0, false
	}
	return ip.i, true
}
