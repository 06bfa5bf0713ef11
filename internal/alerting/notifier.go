// Package alerting defines the alert-dispatch contract and its transports.
// Delivery, retry, and fan-out policy belong to the dispatch collaborator;
// the engine only hands over notifications and logs failures.
package alerting

import (
	"context"

	"github.com/cleanroute/cleanroute/internal/routing"
)

// Kind is the notification type.
type Kind string

const (
	// KindAlert signals exposure rose past the monitored threshold.
	KindAlert Kind = "ALERT"
	// KindAllClear signals exposure returned within the threshold.
	KindAllClear Kind = "ALL_CLEAR"
)

// Notification is one alert or all-clear message for a monitored route.
type Notification struct {
	UserID  string
	RouteID string
	Kind    Kind

	// BaselineScore and CurrentScore give the receiver the numbers behind
	// the transition.
	BaselineScore float64
	CurrentScore  float64

	// Alternative carries a lower-exposure route when the ranker produced
	// one at alert time. Nil otherwise, and always nil for all-clears.
	Alternative *routing.Route
}

// Notifier dispatches notifications to users. Implementations own their
// retry policy; the engine does not retry failures.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
