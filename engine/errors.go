package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohamedthameursassi/saferoute/estimator"
	"github.com/mohamedthameursassi/saferoute/routing"
	"github.com/mohamedthameursassi/saferoute/services"
)

var (
	// ErrLocationNotFound is returned by the geocoder and passed through.
	ErrLocationNotFound = services.ErrLocationNotFound
	ErrNodeNotFound     = routing.ErrNodeNotFound
	ErrNoPathFound      = routing.ErrNoPathFound
	// ErrModelUnavailable never fails a query; it only shows up in
	// assessments and logs.
	ErrModelUnavailable = estimator.ErrModelUnavailable

	ErrNetworkUnavailable = errors.New("road network unavailable")
	ErrTimeout            = errors.New("query timed out")
)

// classify turns a deadline into ErrTimeout and leaves everything else alone.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNoPathFound):
		return "no_path"
	case errors.Is(err, ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, ErrNetworkUnavailable):
		return "network_unavailable"
	case errors.Is(err, ErrLocationNotFound):
		return "location_not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
