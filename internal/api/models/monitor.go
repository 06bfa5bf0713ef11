package models

// RouteInput describes a route a client wants monitored.
type RouteInput struct {
	ID               string `json:"id,omitempty"`
	Origin           Point  `json:"origin" validate:"required"`
	Destination      Point  `json:"destination" validate:"required"`
	GeometryPolyline string `json:"geometryPolyline" validate:"required"`
	DistanceMeters   int    `json:"distanceMeters,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
	Summary          string `json:"summary,omitempty"`
}

// SubscribeRequest is the request body for creating a monitoring subscription.
type SubscribeRequest struct {
	UserID       string     `json:"userId" validate:"required"`
	Route        RouteInput `json:"route" validate:"required"`
	ThresholdAqi *float64   `json:"thresholdAqi,omitempty" validate:"omitempty,gt=0"`
}

// SubscriptionResponse describes an active monitoring subscription.
type SubscriptionResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	RouteID       string    `json:"routeId"`
	BaselineScore float64   `json:"baselineScore"`
	ThresholdAqi  float64   `json:"thresholdAqi"`
	State         string    `json:"state"`
	CreatedAt     Timestamp `json:"createdAt"`
}
