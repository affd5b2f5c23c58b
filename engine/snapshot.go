package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedthameursassi/saferoute/categorical"
	"github.com/mohamedthameursassi/saferoute/estimator"
	"github.com/mohamedthameursassi/saferoute/preprocessing"
	"github.com/mohamedthameursassi/saferoute/riskmap"
)

// Snapshot is the read-only state queries run against: the risk surface,
// the categorical mapping and the optional model. A snapshot is never
// modified after it is published.
type Snapshot struct {
	Surface  *riskmap.Surface
	Encoder  *categorical.Encoder
	Model    estimator.Estimator
	Version  string
	LoadedAt time.Time
}

// NewSnapshot stamps a fresh version. A nil surface or encoder is replaced
// by an empty one.
func NewSnapshot(surface *riskmap.Surface, enc *categorical.Encoder, model estimator.Estimator) *Snapshot {
	if surface == nil {
		surface = riskmap.NewSurface(nil)
	}
	if enc == nil {
		enc = categorical.NewEncoder(nil)
	}
	return &Snapshot{
		Surface:  surface,
		Encoder:  enc,
		Model:    model,
		Version:  uuid.NewString(),
		LoadedAt: time.Now(),
	}
}

func (s *Snapshot) ModelLoaded() bool {
	return s != nil && s.Model != nil
}

// Loader builds snapshots from the configured artifacts.
type Loader struct {
	Accidents      preprocessing.Source
	MappingsPath   string
	ModelPath      string
	ModelURL       string
	ModelTimeout   time.Duration
	IndexThreshold int
}

// Load reads every artifact. Only a failure to read accident history is
// fatal; a missing mapping or model degrades the snapshot instead.
func (l Loader) Load(ctx context.Context) (*Snapshot, error) {
	if l.Accidents == nil {
		return nil, fmt.Errorf("no accident source configured")
	}
	accidents, err := l.Accidents.Accidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accidents: %w", err)
	}

	var opts []riskmap.Option
	if l.IndexThreshold > 0 {
		opts = append(opts, riskmap.WithIndexThreshold(l.IndexThreshold))
	}
	surface := riskmap.Build(preprocessing.Locations(accidents), opts...)

	var enc *categorical.Encoder
	if l.MappingsPath != "" {
		enc, err = categorical.Load(l.MappingsPath)
		if err != nil {
			log.Printf("Warning: mappings unavailable, every category encodes to 0: %v", err)
		}
	}

	snap := NewSnapshot(surface, enc, l.model())
	log.Printf("Loaded snapshot %s: %d accidents, %d risk points, model=%t",
		snap.Version, len(accidents), surface.Len(), snap.ModelLoaded())
	return snap, nil
}

func (l Loader) model() estimator.Estimator {
	switch {
	case l.ModelURL != "":
		var opts []estimator.ClientOption
		if l.ModelTimeout > 0 {
			opts = append(opts, estimator.WithTimeout(l.ModelTimeout))
		}
		return estimator.NewClient(l.ModelURL, opts...)
	case l.ModelPath != "":
		m, err := estimator.Load(l.ModelPath)
		if err != nil {
			log.Printf("Warning: risk model not loaded, using heuristic risk only: %v", err)
			return nil
		}
		return m
	}
	return nil
}
