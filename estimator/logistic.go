package estimator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mohamedthameursassi/saferoute/categorical"
)

// Numeric feature names in the model artifact.
const (
	FeatureHour  = "hora_do_dia"
	FeatureMonth = "mes"
)

// NumericTerm is a standardized numeric input: weight * (x - mean) / scale.
type NumericTerm struct {
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
	Weight float64 `json:"weight"`
}

func (t NumericTerm) apply(x float64) float64 {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	return t.Weight * (x - t.Mean) / scale
}

// LogisticModel scores the probability of a high-severity accident with a
// logistic regression over standardized numeric inputs and one-hot encoded
// categoricals. Categorical weights are indexed by encoded value; indices
// past the end contribute nothing.
type LogisticModel struct {
	ModelName   string                 `json:"name"`
	Intercept   float64                `json:"intercept"`
	Numeric     map[string]NumericTerm `json:"numeric"`
	Categorical map[string][]float64   `json:"categorical"`
}

func (m *LogisticModel) Name() string {
	if m.ModelName == "" {
		return "logistic"
	}
	return m.ModelName
}

func (m *LogisticModel) Predict(ctx context.Context, f Features) Prediction {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	if err := f.Validate(); err != nil {
		return Failed(err)
	}

	z := m.Intercept
	z += m.Numeric[FeatureHour].apply(float64(f.Hour))
	z += m.Numeric[FeatureMonth].apply(float64(f.Month))
	z += m.categoricalWeight(categorical.FeatureDayOfWeek, f.DayOfWeek)
	z += m.categoricalWeight(categorical.FeatureWeather, f.Weather)
	z += m.categoricalWeight(categorical.FeatureLocation, f.Location)

	return Predicted(1 / (1 + math.Exp(-z)))
}

func (m *LogisticModel) categoricalWeight(feature string, idx int) float64 {
	weights := m.Categorical[feature]
	if idx < 0 || idx >= len(weights) {
		return 0
	}
	return weights[idx]
}

// ParseLogistic decodes a model artifact.
func ParseLogistic(r io.Reader) (*LogisticModel, error) {
	var m LogisticModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: decoding model: %v", ErrModelUnavailable, err)
	}
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return nil, fmt.Errorf("%w: non-finite intercept", ErrModelUnavailable)
	}
	return &m, nil
}

// Load reads a model artifact from disk. Every failure wraps
// ErrModelUnavailable so callers can degrade to heuristic-only scoring.
func Load(path string) (*LogisticModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer f.Close()

	m, err := ParseLogistic(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
