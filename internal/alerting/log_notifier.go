package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the structured log. Used in local
// development and as the fallback when no Pub/Sub project is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	event := n.logger.Info().
		Str("user_id", notification.UserID).
		Str("route_id", notification.RouteID).
		Str("kind", string(notification.Kind)).
		Float64("baseline_score", notification.BaselineScore).
		Float64("current_score", notification.CurrentScore)
	if notification.Alternative != nil {
		event = event.Str("alternative_route_id", notification.Alternative.ID)
	}
	event.Msg("route exposure notification")
	return nil
}
