package cost

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mohamedthameursassi/saferoute/estimator"
	"github.com/mohamedthameursassi/saferoute/routing"
)

const edgeChunk = 256

// Session evaluates costs for a single query. Each distinct feature tuple
// reaches the model at most once per session.
type Session struct {
	eval     *Evaluator
	features estimator.Features

	mu   sync.Mutex
	memo map[estimator.Features]*memoEntry

	modelUsed atomic.Bool
	fallbacks atomic.Int64
}

type memoEntry struct {
	once sync.Once
	p    estimator.Prediction
}

// Assessment is the breakdown of a point risk evaluation.
type Assessment struct {
	Heuristic  float64
	Distance   float64
	Prediction estimator.Prediction
	Risk       float64
}

// NewSession starts a query using features for every edge.
func (e *Evaluator) NewSession(features estimator.Features) *Session {
	return &Session{
		eval:     e,
		features: features,
		memo:     make(map[estimator.Features]*memoEntry),
	}
}

// ModelUsed reports whether at least one prediction succeeded.
func (s *Session) ModelUsed() bool {
	return s.modelUsed.Load()
}

// Fallbacks counts evaluations that fell back to heuristic risk because a
// configured model failed.
func (s *Session) Fallbacks() int64 {
	return s.fallbacks.Load()
}

func (s *Session) Predict(ctx context.Context, f estimator.Features) estimator.Prediction {
	if s.eval.model == nil {
		return estimator.Unavailable()
	}

	s.mu.Lock()
	entry, ok := s.memo[f]
	if !ok {
		entry = &memoEntry{}
		s.memo[f] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		entry.p = s.safePredict(ctx, f)
		if entry.p.OK() {
			s.modelUsed.Store(true)
		} else {
			log.Printf("Warning: risk model %s failed, using heuristic risk: %v", s.eval.model.Name(), entry.p.Err)
		}
	})
	if !entry.p.OK() {
		s.fallbacks.Add(1)
	}
	return entry.p
}

func (s *Session) safePredict(ctx context.Context, f estimator.Features) (p estimator.Prediction) {
	defer func() {
		if r := recover(); r != nil {
			p = estimator.Failed(fmt.Errorf("%w: model panicked: %v", estimator.ErrModelUnavailable, r))
		}
	}()
	return s.eval.model.Predict(ctx, f)
}

// PointRisk evaluates the blended risk at a single location.
func (s *Session) PointRisk(ctx context.Context, lat, lon float64, f estimator.Features) Assessment {
	h, dist := s.eval.HeuristicRisk(lat, lon)
	p := s.Predict(ctx, f)
	return Assessment{
		Heuristic:  h,
		Distance:   dist,
		Prediction: p,
		Risk:       Blend(h, p),
	}
}

// EdgeCost evaluates an edge at its midpoint.
func (s *Session) EdgeCost(ctx context.Context, g *routing.Graph, e *routing.Edge) routing.EdgeCost {
	travelTime := s.eval.TravelTime(e.Distance, e.TravelTime)

	lat, lon, ok := g.Midpoint(e)
	if !ok {
		return routing.EdgeCost{Cost: travelTime}
	}
	risk := s.PointRisk(ctx, lat, lon, s.features).Risk
	return routing.EdgeCost{
		Cost: s.eval.Cost(travelTime, risk),
		Risk: risk,
	}
}

// CostGraph costs every edge of g in parallel and returns once all of them
// are done. The graph itself is not modified.
func (s *Session) CostGraph(ctx context.Context, g *routing.Graph) (routing.CostMap, error) {
	edges := make([]*routing.Edge, 0, g.EdgeCount())
	for _, out := range g.Edges {
		edges = append(edges, out...)
	}
	results := make([]routing.EdgeCost, len(edges))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(s.eval.workers)
	for start := 0; start < len(edges); start += edgeChunk {
		start := start
		end := min(start+edgeChunk, len(edges))
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				results[i] = s.EdgeCost(gctx, g, edges[i])
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	costs := make(routing.CostMap, len(edges))
	for i, e := range edges {
		costs[e.ID()] = results[i]
	}
	return costs, nil
}
