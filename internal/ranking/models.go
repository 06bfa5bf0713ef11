// Package ranking orders candidate routes by a multi-objective criterion:
// exposure first, travel time second, with trade-off filtering against the
// fastest candidate.
package ranking

import (
	"errors"

	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/routing"
)

// Ranker errors.
var (
	// ErrNoCandidates indicates no routes were supplied to rank.
	ErrNoCandidates = errors.New("no candidate routes to rank")
	// ErrMismatchedInput indicates the routes and exposures lists differ in length.
	ErrMismatchedInput = errors.New("routes and exposures must be parallel lists")
	// ErrInvalidPreferences indicates preferences failed validation.
	ErrInvalidPreferences = errors.New("invalid preferences")
)

// highExposureScore is the normalized score above which a candidate counts
// toward the high-pollution alert condition.
const highExposureScore = 75.0

// Preferences are the per-request ranking knobs. They are supplied by the
// caller and never persisted.
type Preferences struct {
	// MaxTimeIncreasePercent is the largest acceptable travel-time increase
	// over the fastest candidate, inclusive (default: 30).
	MaxTimeIncreasePercent float64

	// AlertThresholdAQI is the exposure delta that triggers monitoring
	// alerts (default: 50).
	AlertThresholdAQI float64

	// ExposurePriority orders by exposure before time when true (default).
	// When false, time is the primary key and exposure breaks ties.
	ExposurePriority bool
}

// DefaultPreferences returns the default ranking preferences.
func DefaultPreferences() Preferences {
	return Preferences{
		MaxTimeIncreasePercent: 30,
		AlertThresholdAQI:      50,
		ExposurePriority:       true,
	}
}

// Validate rejects structurally invalid preferences before any computation.
func (p Preferences) Validate() error {
	if p.MaxTimeIncreasePercent < 0 {
		return ErrInvalidPreferences
	}
	if p.AlertThresholdAQI < 0 {
		return ErrInvalidPreferences
	}
	return nil
}

// TradeOff compares a candidate against the fastest candidate in the same
// request. Both percentages are recomputed per request.
type TradeOff struct {
	ExposureReductionPercent float64
	TimeIncreasePercent      float64
}

// Recommendation is a ranked candidate: the route, its exposure, trade-off
// metrics, and ranking annotations. It is the unit returned to callers and
// stored in the result cache.
type Recommendation struct {
	Route    routing.Route
	Exposure exposure.RouteExposure
	TradeOff TradeOff

	// Rank is the 1-based position in the ranked output.
	Rank int

	// IsFastest marks the comparison baseline; IsCleanest marks the
	// lowest-exposure entry. The two may coincide.
	IsFastest  bool
	IsCleanest bool

	// OverTimeBudget marks an entry whose time increase exceeds the
	// preference threshold but was retained to keep at least two
	// recommendations.
	OverTimeBudget bool
}

// Result is the ranked, filtered recommendation list plus request-level
// conditions the caller must act on.
type Result struct {
	Recommendations []Recommendation

	// HighExposure is set when every surviving candidate scores above 75.
	// The ranker only raises the condition; alert dispatch is external.
	HighExposure bool
}
