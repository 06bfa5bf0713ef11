// Package routing defines the contract with the external candidate-route
// provider. The engine never generates geometries itself; it only consumes
// candidate routes and their distances and times.
package routing

import (
	"context"
	"errors"

	"github.com/cleanroute/cleanroute/pkg/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider defines the interface for candidate-route providers.
type Provider interface {
	// GenerateCandidates returns alternative route geometries between two
	// points, typically 3-5 including a fastest and a shortest option. A
	// provider may legitimately return zero or one route.
	GenerateCandidates(ctx context.Context, origin, destination geo.Point) ([]Route, error)

	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Route represents a single candidate path between an origin and destination.
// Routes are supplied by the provider and read-only to the engine.
type Route struct {
	ID               string
	Origin           geo.Point
	Destination      geo.Point
	GeometryPolyline string // Encoded polyline (precision 5)
	DistanceMeters   int
	DurationSeconds  int
	Summary          string
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidateCoordinates checks if a point is within valid WGS84 ranges.
func ValidateCoordinates(p geo.Point) error {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
