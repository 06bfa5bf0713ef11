package monitor

import (
	"context"
	"time"
)

// Repository persists monitored routes.
type Repository interface {
	// Create stores a new monitored route.
	Create(ctx context.Context, m *MonitoredRoute) error

	// Get retrieves a monitored route by subscription ID.
	Get(ctx context.Context, id string) (*MonitoredRoute, error)

	// List returns all active monitored routes.
	List(ctx context.Context) ([]*MonitoredRoute, error)

	// UpdateState records the outcome of a re-evaluation.
	UpdateState(ctx context.Context, id string, state AlertState, evaluatedAt time.Time) error

	// Delete removes a monitored route. Subsequent evaluations must not
	// fire for it.
	Delete(ctx context.Context, id string) error
}
