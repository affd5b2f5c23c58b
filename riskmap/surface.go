// Package riskmap holds historical accident locations and answers
// nearest-location risk queries.
package riskmap

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultIndexThreshold is the point count above which lookups go through
// the quadtree instead of a linear scan.
const DefaultIndexThreshold = 512

// Location is a single historical accident record.
type Location struct {
	Latitude  float64
	Longitude float64
}

// RiskPoint is a distinct accident location. Score is Count relative to the
// most frequent location of the same dataset, not a probability.
type RiskPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int     `json:"count"`
	Score     float64 `json:"score"`
}

func (p RiskPoint) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// Surface is an immutable set of risk points. It is safe for concurrent use.
type Surface struct {
	points   []RiskPoint
	maxCount int
	index    *index
}

type Option func(*options)

type options struct {
	indexThreshold int
}

// WithIndexThreshold sets the point count above which a spatial index is
// built. Zero or negative values always build it.
func WithIndexThreshold(n int) Option {
	return func(o *options) {
		o.indexThreshold = n
	}
}

// Build groups accident records by exact coordinate and normalizes the
// counts. Records with non-finite coordinates are skipped.
func Build(records []Location, opts ...Option) *Surface {
	counts := make(map[orb.Point]int)
	order := make([]orb.Point, 0)
	for _, r := range records {
		if !finite(r.Latitude) || !finite(r.Longitude) {
			continue
		}
		key := orb.Point{r.Longitude, r.Latitude}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	points := make([]RiskPoint, 0, len(order))
	for _, key := range order {
		points = append(points, RiskPoint{
			Latitude:  key.Lat(),
			Longitude: key.Lon(),
			Count:     counts[key],
		})
	}
	return NewSurface(points, opts...)
}

// NewSurface builds a surface from pre-counted points. Scores are always
// recomputed from the counts.
func NewSurface(points []RiskPoint, opts ...Option) *Surface {
	o := options{indexThreshold: DefaultIndexThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Surface{points: make([]RiskPoint, 0, len(points))}
	for _, p := range points {
		if p.Count <= 0 || !finite(p.Latitude) || !finite(p.Longitude) {
			continue
		}
		s.points = append(s.points, p)
		if p.Count > s.maxCount {
			s.maxCount = p.Count
		}
	}
	for i := range s.points {
		s.points[i].Score = float64(s.points[i].Count) / float64(s.maxCount)
	}

	if len(s.points) > 0 && len(s.points) > o.indexThreshold {
		s.index = newIndex(s.points)
	}
	return s
}

// NearestRisk returns the score of the closest point and its planar
// distance in degrees. An empty surface returns (0, +Inf).
func (s *Surface) NearestRisk(lat, lon float64) (float64, float64) {
	if s == nil || len(s.points) == 0 || !finite(lat) || !finite(lon) {
		return 0, math.Inf(1)
	}
	q := orb.Point{lon, lat}

	if s.index != nil {
		if i, ok := s.index.nearest(q); ok {
			p := s.points[i]
			return p.Score, planar.Distance(q, p.Point())
		}
	}

	best := -1
	bestDist := math.Inf(1)
	for i, p := range s.points {
		d := planar.DistanceSquared(q, p.Point())
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return s.points[best].Score, math.Sqrt(bestDist)
}

func (s *Surface) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

func (s *Surface) MaxCount() int {
	if s == nil {
		return 0
	}
	return s.maxCount
}

// Indexed reports whether lookups use the spatial index.
func (s *Surface) Indexed() bool {
	return s != nil && s.index != nil
}

// Points returns a copy of the stored points.
func (s *Surface) Points() []RiskPoint {
	if s == nil {
		return nil
	}
	out := make([]RiskPoint, len(s.points))
	copy(out, s.points)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
