// Package events publishes computed route summaries to message brokers.
// Publishing is best effort: the query that produced an event never fails
// because of it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// RouteEvent summarises one answered query.
type RouteEvent struct {
	ID              string     `json:"id"`
	Mode            string     `json:"mode"`
	Origin          [2]float64 `json:"origin"`      // lat, lon
	Destination     [2]float64 `json:"destination"` // lat, lon
	TotalRisk       float64    `json:"total_risk"`
	TotalCost       float64    `json:"total_cost"`
	Routes          int        `json:"routes"`
	ModelUsed       bool       `json:"model_used"`
	SnapshotVersion string     `json:"snapshot_version"`
	ComputedAt      time.Time  `json:"computed_at"`
}

func (e RouteEvent) payload() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, ev RouteEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, RouteEvent) error { return nil }
func (Noop) Close() error                              { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev RouteEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			log.Printf("[events] close: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
