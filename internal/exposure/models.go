// Package exposure computes pollution exposure scores for candidate routes.
package exposure

import (
	"errors"
	"time"

	"github.com/cleanroute/cleanroute/internal/griddata"
)

// Calculator errors.
var (
	// ErrMissingRouteData indicates the route carries no usable geometry.
	// The caller must obtain a valid route before scoring; every other data
	// problem degrades through the fallback chain instead of failing.
	ErrMissingRouteData = errors.New("route has no geometry to score")
)

// Traffic multipliers applied to segment exposure.
const (
	multiplierLow    = 1.0
	multiplierMedium = 1.3
	multiplierHigh   = 1.6
)

// RouteExposure is the aggregate scoring result for one route. Segment-level
// intermediates are discarded after aggregation; only this value survives the
// scoring call.
type RouteExposure struct {
	RouteID string

	// TotalExposure is the unbounded accumulator: sum over segments of
	// AQI x traverse seconds x traffic multiplier.
	TotalExposure float64

	// Score is TotalExposure normalized to [0,100] against the city ceiling.
	Score float64

	// Estimated is set when any segment used a low-confidence prediction or
	// a city-wide fallback. The score is still returned; callers surface the
	// caveat to end users.
	Estimated bool

	// Cells lists the distinct grid cells the route touched, in traversal
	// order. The result cache fingerprints entries against these cells.
	Cells []griddata.Cell

	ComputedAt time.Time
}

func trafficMultiplier(level griddata.TrafficLevel) float64 {
	switch level {
	case griddata.TrafficHigh:
		return multiplierHigh
	case griddata.TrafficMedium:
		return multiplierMedium
	default:
		return multiplierLow
	}
}
