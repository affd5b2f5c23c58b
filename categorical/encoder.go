// Package categorical maps categorical feature values to the indices the
// risk model was trained with.
package categorical

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Feature names used by the training pipeline.
const (
	FeatureDayOfWeek = "dia_semana"
	FeatureWeather   = "condicao_metereologica"
	FeatureLocation  = "localizacao"
)

// Mapping is feature name -> values in training order.
type Mapping map[string][]string

// Encoder is an immutable lookup built from a Mapping.
//
// Index 0 doubles as the fallback for unknown features and unseen values, so
// it cannot be told apart from the first value observed during training. The
// model was fit with that behaviour and callers rely on it.
//
// The mapping must be the one produced alongside the model it feeds; nothing
// here can detect a mismatch.
type Encoder struct {
	values  map[string][]string
	indexes map[string]map[string]int
}

func NewEncoder(m Mapping) *Encoder {
	e := &Encoder{
		values:  make(map[string][]string, len(m)),
		indexes: make(map[string]map[string]int, len(m)),
	}
	for feature, values := range m {
		idx := make(map[string]int, len(values))
		ordered := make([]string, 0, len(values))
		for _, v := range values {
			if _, dup := idx[v]; dup {
				continue
			}
			idx[v] = len(ordered)
			ordered = append(ordered, v)
		}
		e.values[feature] = ordered
		e.indexes[feature] = idx
	}
	return e
}

// Encode returns the index of value within feature, or 0 when either is
// unknown. It never fails.
func (e *Encoder) Encode(feature, value string) int {
	if e == nil {
		return 0
	}
	idx, ok := e.indexes[feature]
	if !ok {
		return 0
	}
	return idx[value]
}

// Known reports whether value was observed for feature.
func (e *Encoder) Known(feature, value string) bool {
	if e == nil {
		return false
	}
	_, ok := e.indexes[feature][value]
	return ok
}

func (e *Encoder) Features() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.values))
	for f := range e.values {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (e *Encoder) Values(feature string) []string {
	if e == nil {
		return nil
	}
	vals := e.values[feature]
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// Mapping returns a deep copy of the deduplicated mapping.
func (e *Encoder) Mapping() Mapping {
	out := make(Mapping)
	if e == nil {
		return out
	}
	for f := range e.values {
		out[f] = e.Values(f)
	}
	return out
}

// Parse reads a JSON mapping artifact: {"feature": ["v0", "v1", ...]}.
func Parse(r io.Reader) (*Encoder, error) {
	var m Mapping
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding mappings: %w", err)
	}
	return NewEncoder(m), nil
}

func Load(path string) (*Encoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mappings file: %w", err)
	}
	defer f.Close()

	enc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return enc, nil
}
