// Package cost blends travel time with historical and learned accident risk
// into a single scalar cost per edge or per route.
package cost

import (
	"math"
	"runtime"

	"github.com/mohamedthameursassi/saferoute/estimator"
)

const (
	// DecayDegrees is the distance, in degrees, at which historical risk
	// decays to 1/e. 0.001 degrees of latitude is roughly 111 m.
	DecayDegrees = 0.001

	ModelWeight     = 0.7
	HeuristicWeight = 0.3

	// FallbackSpeedKmh is assumed when an edge has no measured travel time.
	FallbackSpeedKmh = 30.0

	// DefaultRiskWeight pairs with travel times in seconds.
	DefaultRiskWeight = 1000.0
)

// RiskSource answers nearest-location risk queries.
type RiskSource interface {
	NearestRisk(lat, lon float64) (score, distance float64)
}

// Evaluator computes costs from read-only shared state. It holds no
// per-query data and is safe for concurrent use.
type Evaluator struct {
	surface    RiskSource
	model      estimator.Estimator
	riskWeight float64
	speedMS    float64
	workers    int
}

type Option func(*Evaluator)

func WithRiskWeight(w float64) Option {
	return func(e *Evaluator) {
		if w >= 0 {
			e.riskWeight = w
		}
	}
}

func WithFallbackSpeed(kmh float64) Option {
	return func(e *Evaluator) {
		if kmh > 0 {
			e.speedMS = kmh / 3.6
		}
	}
}

// WithWorkers bounds the goroutines used by CostGraph.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New returns an evaluator. model may be nil, in which case every risk is
// the heuristic risk.
func New(surface RiskSource, model estimator.Estimator, opts ...Option) *Evaluator {
	e := &Evaluator{
		surface:    surface,
		model:      model,
		riskWeight: DefaultRiskWeight,
		speedMS:    FallbackSpeedKmh / 3.6,
		workers:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) HasModel() bool {
	return e.model != nil
}

func (e *Evaluator) RiskWeight() float64 {
	return e.riskWeight
}

// HeuristicRisk is the nearest historical score decayed exponentially with
// distance.
func (e *Evaluator) HeuristicRisk(lat, lon float64) (risk, distance float64) {
	if e.surface == nil {
		return 0, math.Inf(1)
	}
	score, dist := e.surface.NearestRisk(lat, lon)
	if math.IsInf(dist, 1) {
		return 0, dist
	}
	return score * math.Exp(-dist/DecayDegrees), dist
}

// Blend combines a heuristic risk with a model prediction. A failed
// prediction leaves the heuristic risk unchanged.
func Blend(heuristic float64, p estimator.Prediction) float64 {
	if !p.OK() {
		return heuristic
	}
	return ModelWeight*p.Risk + HeuristicWeight*heuristic
}

// TravelTime returns the measured travel time when positive, otherwise the
// time to cover lengthM at the fallback speed.
func (e *Evaluator) TravelTime(lengthM, travelTimeS float64) float64 {
	if travelTimeS > 0 {
		return travelTimeS
	}
	if lengthM <= 0 {
		return 0
	}
	return lengthM / e.speedMS
}

func (e *Evaluator) Cost(travelTime, risk float64) float64 {
	return travelTime + risk*e.riskWeight
}
