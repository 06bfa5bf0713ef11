package monitor

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-instance deployments. Multi-instance
// deployments should use PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	routes map[string]*MonitoredRoute
}

// NewInMemoryRepository creates a new in-memory monitored-route repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		routes: make(map[string]*MonitoredRoute),
	}
}

// Create stores a new monitored route.
func (r *InMemoryRepository) Create(_ context.Context, m *MonitoredRoute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *m
	r.routes[m.ID] = &cpy
	return nil
}

// Get retrieves a monitored route by subscription ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*MonitoredRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.routes[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}

	cpy := *m
	return &cpy, nil
}

// List returns all active monitored routes.
func (r *InMemoryRepository) List(_ context.Context) ([]*MonitoredRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*MonitoredRoute, 0, len(r.routes))
	for _, m := range r.routes {
		cpy := *m
		routes = append(routes, &cpy)
	}
	return routes, nil
}

// UpdateState records the outcome of a re-evaluation.
func (r *InMemoryRepository) UpdateState(_ context.Context, id string, state AlertState, evaluatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.routes[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	m.State = state
	m.LastEvaluatedAt = evaluatedAt
	return nil
}

// Delete removes a monitored route.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(r.routes, id)
	return nil
}
