// Package engine answers safe-route queries. It owns the active snapshot and
// wires the road network, risk costing and path selection together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/mohamedthameursassi/saferoute/cost"
	"github.com/mohamedthameursassi/saferoute/estimator"
	"github.com/mohamedthameursassi/saferoute/events"
	"github.com/mohamedthameursassi/saferoute/metrics"
	"github.com/mohamedthameursassi/saferoute/models"
	"github.com/mohamedthameursassi/saferoute/routing"
)

const publishTimeout = 5 * time.Second

// NetworkProvider supplies the road graph around a query. The returned graph
// must not be modified afterwards.
type NetworkProvider interface {
	Network(ctx context.Context, origin, destination routing.Coordinate) (*routing.Graph, error)
}

// CandidateProvider supplies whole alternative routes, in provider order.
type CandidateProvider interface {
	Candidates(ctx context.Context, origin, destination routing.Coordinate) ([]routing.Candidate, error)
}

// Query is a resolved origin/destination pair plus trip conditions.
type Query struct {
	Origin      models.Place
	Destination models.Place
	Weather     string
	At          time.Time
}

type Engine struct {
	snap atomic.Pointer[Snapshot]

	network    NetworkProvider
	candidates CandidateProvider
	publisher  events.Publisher

	timeout     time.Duration
	riskWeight  float64
	ranking     routing.RankOptions
	maxSnapM    float64
	workers     int
	fallbackKmh float64
	now         func() time.Time
}

type Option func(*Engine)

func WithNetwork(p NetworkProvider) Option {
	return func(e *Engine) { e.network = p }
}

func WithCandidates(p CandidateProvider) Option {
	return func(e *Engine) { e.candidates = p }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithTimeout bounds every query on top of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRiskWeight sets the graph-mode weight, paired with seconds.
func WithRiskWeight(w float64) Option {
	return func(e *Engine) { e.riskWeight = w }
}

// WithRanking sets the candidate-mode weight and its time unit.
func WithRanking(opts routing.RankOptions) Option {
	return func(e *Engine) { e.ranking = opts }
}

// WithMaxSnap rejects endpoints farther than m metres from the network.
func WithMaxSnap(m float64) Option {
	return func(e *Engine) { e.maxSnapM = m }
}

func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func WithFallbackSpeed(kmh float64) Option {
	return func(e *Engine) { e.fallbackKmh = kmh }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(snap *Snapshot, opts ...Option) *Engine {
	e := &Engine{
		publisher:   events.Noop{},
		riskWeight:  cost.DefaultRiskWeight,
		ranking:     routing.RankOptions{RiskWeight: 50, TimeUnit: time.Minute},
		fallbackKmh: cost.FallbackSpeedKmh,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if snap == nil {
		snap = NewSnapshot(nil, nil, nil)
	}
	e.snap.Store(snap)
	observeSnapshot(snap)
	return e
}

// Snapshot returns the active snapshot.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Reload publishes snap for all queries that start afterwards. Queries
// already running keep the snapshot they started with.
func (e *Engine) Reload(snap *Snapshot) {
	if snap == nil {
		return
	}
	old := e.snap.Swap(snap)
	observeSnapshot(snap)
	log.Printf("[reload] snapshot %s replaced %s", snap.Version, old.Version)
}

// ReloadFrom loads a new snapshot and swaps it in. On error the active
// snapshot stays in place.
func (e *Engine) ReloadFrom(ctx context.Context, l Loader) (*Snapshot, error) {
	snap, err := l.Load(ctx)
	metrics.ObserveReload(err)
	if err != nil {
		log.Printf("[reload] keeping snapshot %s: %v", e.Snapshot().Version, err)
		return nil, err
	}
	e.Reload(snap)
	return snap, nil
}

// RunReloader reloads every interval until ctx is done.
func (e *Engine) RunReloader(ctx context.Context, l Loader, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = e.ReloadFrom(ctx, l)
		}
	}
}

func observeSnapshot(s *Snapshot) {
	metrics.ObserveSnapshot(s.Surface.Len(), s.ModelLoaded())
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) evaluator(snap *Snapshot, weight float64) *cost.Evaluator {
	opts := []cost.Option{
		cost.WithRiskWeight(weight),
		cost.WithFallbackSpeed(e.fallbackKmh),
	}
	if e.workers > 0 {
		opts = append(opts, cost.WithWorkers(e.workers))
	}
	return cost.New(snap.Surface, snap.Model, opts...)
}

func (e *Engine) conditions(q Query, p models.Place) estimator.Conditions {
	at := q.At
	if at.IsZero() {
		at = e.now()
	}
	return estimator.Conditions{
		At:      at,
		Weather: q.Weather,
		Region:  p.Region,
		Place:   p.Place,
	}
}

func coordinate(p models.Place) routing.Coordinate {
	return routing.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
}

// ComputeSafeRoute finds the minimum-cost path through the road network
// between the query endpoints. Every edge is costed before the search
// starts, and a query that runs out of time returns ErrTimeout rather than a
// partial route.
func (e *Engine) ComputeSafeRoute(ctx context.Context, q Query) (*models.RouteResult, error) {
	start := time.Now()
	snap := e.Snapshot()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.computeSafeRoute(ctx, snap, q)
	err = classify(ctx, err)
	metrics.ObserveQuery(metrics.ModeGraph, outcome(err), time.Since(start))
	if err != nil {
		log.Printf("Safe route (%.6f, %.6f) -> (%.6f, %.6f) failed: %v",
			q.Origin.Latitude, q.Origin.Longitude, q.Destination.Latitude, q.Destination.Longitude, err)
		return nil, err
	}

	e.publish(events.RouteEvent{
		ID:              res.ID,
		Mode:            metrics.ModeGraph,
		Origin:          [2]float64{q.Origin.Latitude, q.Origin.Longitude},
		Destination:     [2]float64{q.Destination.Latitude, q.Destination.Longitude},
		TotalRisk:       res.TotalRisk,
		TotalCost:       res.TotalCost,
		Routes:          1,
		ModelUsed:       res.ModelUsed,
		SnapshotVersion: res.SnapshotVersion,
		ComputedAt:      res.ComputedAt,
	})
	return res, nil
}

func (e *Engine) computeSafeRoute(ctx context.Context, snap *Snapshot, q Query) (*models.RouteResult, error) {
	if e.network == nil {
		return nil, fmt.Errorf("%w: no network provider configured", ErrNetworkUnavailable)
	}
	origin, dest := coordinate(q.Origin), coordinate(q.Destination)

	g, err := e.network.Network(ctx, origin, dest)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	if g == nil || len(g.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty road network", ErrNetworkUnavailable)
	}

	startID, _, err := g.NearestNode(origin, e.maxSnapM)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	endID, _, err := g.NearestNode(dest, e.maxSnapM)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	eval := e.evaluator(snap, e.riskWeight)
	features := estimator.BuildFeatures(snap.Encoder, e.conditions(q, q.Origin))
	sess := eval.NewSession(features)

	costs, err := sess.CostGraph(ctx, g)
	if err != nil {
		return nil, err
	}
	metrics.ObserveEdgesCosted(len(costs))
	metrics.AddModelFallbacks(sess.Fallbacks())

	path, err := routing.ShortestPath(ctx, g, costs, startID, endID)
	if err != nil {
		return nil, err
	}

	travel := 0.0
	for _, edge := range path.Edges {
		travel += eval.TravelTime(edge.Distance, edge.TravelTime)
	}

	wps := g.Waypoints(path.Nodes)
	waypoints := make([]models.Waypoint, len(wps))
	for i, c := range wps {
		waypoints[i] = models.Waypoint{Lat: c.Lat, Lon: c.Lon}
	}

	return &models.RouteResult{
		ID:              uuid.NewString(),
		Origin:          q.Origin,
		Destination:     q.Destination,
		Waypoints:       waypoints,
		TotalRisk:       routing.TotalRisk(path.Edges, costs),
		TotalCost:       path.Cost,
		DistanceM:       path.Distance(),
		TravelTimeS:     travel,
		NodeCount:       len(path.Nodes),
		ModelUsed:       sess.ModelUsed(),
		SnapshotVersion: snap.Version,
		ComputedAt:      e.now(),
	}, nil
}

// RankRoutes scores the provider's alternatives and returns them cheapest
// first. A candidate's risk is the mean blended risk at its two ends.
func (e *Engine) RankRoutes(ctx context.Context, q Query) ([]routing.Candidate, error) {
	r, err := e.rankRoutes(ctx, q)
	if err != nil {
		return nil, err
	}
	return r.routes, nil
}

// Alternatives ranks candidate routes and shapes them for the API, marking
// the cheapest as best.
func (e *Engine) Alternatives(ctx context.Context, q Query) (*models.AlternativesResult, error) {
	r, err := e.rankRoutes(ctx, q)
	if err != nil {
		return nil, err
	}
	ranked, snap := r.routes, r.snap

	res := &models.AlternativesResult{
		ID:              uuid.NewString(),
		Origin:          q.Origin,
		Destination:     q.Destination,
		Routes:          make([]models.CandidateRoute, len(ranked)),
		RiskWeight:      e.ranking.RiskWeight,
		SnapshotVersion: snap.Version,
	}
	for i, c := range ranked {
		coords := make([][2]float64, len(c.Geometry))
		for j, p := range c.Geometry {
			coords[j] = [2]float64{p.X(), p.Y()}
		}
		res.Routes[i] = models.CandidateRoute{
			Label:       c.Label,
			Coordinates: coords,
			DurationMin: c.DurationS / 60,
			DistanceKm:  c.DistanceM / 1000,
			Risk:        c.Risk,
			BlendedCost: c.BlendedCost,
			Best:        i == 0,
		}
	}

	ev := events.RouteEvent{
		ID:              res.ID,
		Mode:            metrics.ModeCandidates,
		Origin:          [2]float64{q.Origin.Latitude, q.Origin.Longitude},
		Destination:     [2]float64{q.Destination.Latitude, q.Destination.Longitude},
		Routes:          len(ranked),
		ModelUsed:       r.modelUsed,
		SnapshotVersion: snap.Version,
		ComputedAt:      e.now(),
	}
	if len(ranked) > 0 {
		ev.TotalRisk = ranked[0].Risk
		ev.TotalCost = ranked[0].BlendedCost
	}
	e.publish(ev)
	return res, nil
}

// rankedRoutes is a scored candidate set and the snapshot it was scored on.
type rankedRoutes struct {
	routes    []routing.Candidate
	snap      *Snapshot
	modelUsed bool
}

func (e *Engine) rankRoutes(ctx context.Context, q Query) (rankedRoutes, error) {
	start := time.Now()
	snap := e.Snapshot()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ranked, modelUsed, err := e.scoreCandidates(ctx, snap, q)
	err = classify(ctx, err)
	metrics.ObserveQuery(metrics.ModeCandidates, outcome(err), time.Since(start))
	if err != nil {
		log.Printf("Route alternatives failed: %v", err)
		return rankedRoutes{}, err
	}
	return rankedRoutes{routes: ranked, snap: snap, modelUsed: modelUsed}, nil
}

func (e *Engine) scoreCandidates(ctx context.Context, snap *Snapshot, q Query) ([]routing.Candidate, bool, error) {
	if e.candidates == nil {
		return nil, false, fmt.Errorf("%w: no candidate provider configured", ErrNetworkUnavailable)
	}
	origin, dest := coordinate(q.Origin), coordinate(q.Destination)

	cands, err := e.candidates.Candidates(ctx, origin, dest)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		if errors.Is(err, ErrNoPathFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	if len(cands) == 0 {
		return nil, false, fmt.Errorf("%w: no candidate routes", ErrNoPathFound)
	}

	eval := e.evaluator(snap, e.ranking.RiskWeight)
	fromFeatures := estimator.BuildFeatures(snap.Encoder, e.conditions(q, q.Origin))
	toFeatures := estimator.BuildFeatures(snap.Encoder, e.conditions(q, q.Destination))
	sess := eval.NewSession(fromFeatures)

	scored := make([]routing.Candidate, len(cands))
	copy(scored, cands)
	for i := range scored {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		from, to := endpoints(scored[i].Geometry, origin, dest)
		a := sess.PointRisk(ctx, from.Lat, from.Lon, fromFeatures)
		b := sess.PointRisk(ctx, to.Lat, to.Lon, toFeatures)
		scored[i].Risk = (a.Risk + b.Risk) / 2
	}
	metrics.AddModelFallbacks(sess.Fallbacks())

	return routing.RankCandidates(scored, e.ranking), sess.ModelUsed(), nil
}

// endpoints returns the first and last geometry points, or the query
// endpoints when the geometry is empty.
func endpoints(ls orb.LineString, origin, dest routing.Coordinate) (routing.Coordinate, routing.Coordinate) {
	if len(ls) == 0 {
		return origin, dest
	}
	first, last := ls[0], ls[len(ls)-1]
	return routing.Coordinate{Lat: first.Y(), Lon: first.X()}, routing.Coordinate{Lat: last.Y(), Lon: last.X()}
}

// AssessPoint reports the risk at one location under the given conditions.
// Model failures are reported in the assessment, never as an error.
func (e *Engine) AssessPoint(ctx context.Context, lat, lon float64, c estimator.Conditions) models.RiskAssessment {
	start := time.Now()
	snap := e.Snapshot()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if c.At.IsZero() {
		c.At = e.now()
	}
	f := estimator.BuildFeatures(snap.Encoder, c)
	sess := e.evaluator(snap, e.riskWeight).NewSession(f)
	a := sess.PointRisk(ctx, lat, lon, f)
	metrics.AddModelFallbacks(sess.Fallbacks())

	out := models.RiskAssessment{
		Latitude:      lat,
		Longitude:     lon,
		HeuristicRisk: a.Heuristic,
		Risk:          a.Risk,
	}
	if !math.IsInf(a.Distance, 1) {
		d := a.Distance
		out.NearestDegree = &d
	}
	if a.Prediction.OK() {
		r := a.Prediction.Risk
		out.ModelRisk = &r
	} else if snap.ModelLoaded() && a.Prediction.Err != nil {
		out.ModelError = a.Prediction.Err.Error()
	}
	metrics.ObserveQuery(metrics.ModePoint, "ok", time.Since(start))
	return out
}

// publish hands the event to the publisher without holding up the caller.
func (e *Engine) publish(ev events.RouteEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := e.publisher.Publish(ctx, ev); err != nil {
			log.Printf("[events] route %s not published: %v", ev.ID, err)
		}
	}()
}
