// Package monitor tracks routes currently being traveled and raises alert /
// all-clear transitions when their exposure moves past a threshold.
package monitor

import (
	"errors"
	"time"

	"github.com/cleanroute/cleanroute/internal/routing"
)

// Repository errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// DefaultThreshold is the exposure delta, in AQI-equivalent points, that
// triggers an alert when the caller does not configure one.
const DefaultThreshold = 50.0

// AlertState is the monitored route's current alert condition. A route is in
// exactly one state; NORMAL→ALERTED and ALERTED→NORMAL are the only legal
// transitions.
type AlertState string

const (
	StateNormal  AlertState = "NORMAL"
	StateAlerted AlertState = "ALERTED"
)

// Transition is the outcome of one re-evaluation.
type Transition int

const (
	// TransitionNone leaves the state unchanged and sends nothing.
	TransitionNone Transition = iota
	// TransitionAlert moves NORMAL→ALERTED and sends exactly one alert.
	TransitionAlert
	// TransitionAllClear moves ALERTED→NORMAL and sends exactly one all-clear.
	TransitionAllClear
)

// MonitoredRoute is one active subscription. Created at Subscribe with the
// baseline exposure of that moment; destroyed when the trip ends or the
// subscription is cancelled. Mutated only by the monitor loop.
type MonitoredRoute struct {
	ID     string
	UserID string
	Route  routing.Route

	// BaselineScore is the exposure score recorded at trip start.
	BaselineScore float64

	// Threshold is the exposure delta that flips the state.
	Threshold float64

	State AlertState

	CreatedAt       time.Time
	LastEvaluatedAt time.Time
}

// Next applies the guarded state machine to the current exposure score and
// returns the resulting state and transition. Re-evaluations that do not
// cross the threshold change nothing, so a route never emits duplicate
// notifications while it stays on one side.
func (m *MonitoredRoute) Next(currentScore float64) (AlertState, Transition) {
	delta := currentScore - m.BaselineScore

	switch m.State {
	case StateNormal:
		if delta > m.Threshold {
			return StateAlerted, TransitionAlert
		}
		return StateNormal, TransitionNone
	case StateAlerted:
		if delta <= m.Threshold {
			return StateNormal, TransitionAllClear
		}
		return StateAlerted, TransitionNone
	default:
		return m.State, TransitionNone
	}
}
