// Package estimator wraps the learned accident-risk model behind a typed
// prediction result.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrModelUnavailable marks a model that could not be loaded or reached.
	// It never aborts a route query.
	ErrModelUnavailable = errors.New("risk model unavailable")
	// ErrInvalidFeatures marks a feature tuple the model cannot score.
	ErrInvalidFeatures = errors.New("invalid model features")
)

// Estimator scores a feature tuple. Implementations report failures inside
// the Prediction instead of returning an error.
type Estimator interface {
	Predict(ctx context.Context, f Features) Prediction
	Name() string
}

// Prediction is either a risk value or the reason no value is available.
type Prediction struct {
	Risk float64
	Err  error
}

func (p Prediction) OK() bool {
	return p.Err == nil
}

func Predicted(risk float64) Prediction {
	if math.IsNaN(risk) || math.IsInf(risk, 0) {
		return Failed(fmt.Errorf("%w: non-finite output %v", ErrInvalidFeatures, risk))
	}
	return Prediction{Risk: risk}
}

func Failed(err error) Prediction {
	if err == nil {
		err = ErrModelUnavailable
	}
	return Prediction{Err: err}
}

// Unavailable is the prediction used when no model is configured.
func Unavailable() Prediction {
	return Prediction{Err: ErrModelUnavailable}
}
