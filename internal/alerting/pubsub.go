package alerting

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubNotifier publishes notifications to a Pub/Sub topic consumed by the
// notification delivery service.
type PubSubNotifier struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub notifier.
type PubSubConfig struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// notificationMessage is the wire form published to the topic.
type notificationMessage struct {
	UserID        string  `json:"user_id"`
	RouteID       string  `json:"route_id"`
	Kind          string  `json:"kind"`
	BaselineScore float64 `json:"baseline_score"`
	CurrentScore  float64 `json:"current_score"`
	AlternativeID string  `json:"alternative_route_id,omitempty"`
}

// NewPubSubNotifier creates a Pub/Sub-backed notifier.
func NewPubSubNotifier(ctx context.Context, cfg PubSubConfig) (*PubSubNotifier, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubNotifier{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		logger:    cfg.Logger,
	}, nil
}

// Notify publishes the notification and waits for the server acknowledgment.
func (n *PubSubNotifier) Notify(ctx context.Context, notification Notification) error {
	msg := notificationMessage{
		UserID:        notification.UserID,
		RouteID:       notification.RouteID,
		Kind:          string(notification.Kind),
		BaselineScore: notification.BaselineScore,
		CurrentScore:  notification.CurrentScore,
	}
	if notification.Alternative != nil {
		msg.AlternativeID = notification.Alternative.ID
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	result := n.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":    string(notification.Kind),
			"user_id": notification.UserID,
		},
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}

	n.logger.Debug().
		Str("user_id", notification.UserID).
		Str("route_id", notification.RouteID).
		Str("kind", string(notification.Kind)).
		Msg("notification published")

	return nil
}

// Close releases the underlying Pub/Sub client.
func (n *PubSubNotifier) Close() error {
	n.publisher.Stop()
	return n.client.Close()
}
