package models

// PreferencesInput carries optional ranking preferences; absent fields fall
// back to server defaults.
type PreferencesInput struct {
	MaxTimeIncreasePercent *float64 `json:"maxTimeIncreasePercent,omitempty" validate:"omitempty,gte=0"`
	AlertThresholdAqi      *float64 `json:"alertThresholdAqi,omitempty" validate:"omitempty,gte=0"`
	ExposurePriority       *bool    `json:"exposurePriority,omitempty"`
}

// OptimizeRequest is the request body for optimizing a route.
type OptimizeRequest struct {
	Origin        *Point            `json:"origin" validate:"required"`
	Destination   *Point            `json:"destination" validate:"required"`
	DepartureTime *Timestamp        `json:"departureTime,omitempty"`
	Preferences   *PreferencesInput `json:"preferences,omitempty"`
}

// OptimizeResponse is the response for a single optimization.
type OptimizeResponse struct {
	GeneratedAt     Timestamp            `json:"generatedAt"`
	HighExposure    bool                 `json:"highExposure"`
	Recommendations []RecommendationView `json:"recommendations"`
}

// RecommendationView is one ranked route alternative.
type RecommendationView struct {
	RouteID          string        `json:"routeId"`
	Rank             int           `json:"rank"`
	Summary          string        `json:"summary,omitempty"`
	DistanceMeters   int           `json:"distanceMeters"`
	DurationSeconds  int           `json:"durationSeconds"`
	GeometryPolyline string        `json:"geometryPolyline,omitempty"`
	ExposureScore    float64       `json:"exposureScore"`
	Estimated        bool          `json:"estimated"`
	TradeOff         *TradeOffView `json:"tradeOff,omitempty"`
	IsFastest        bool          `json:"isFastest"`
	IsCleanest       bool          `json:"isCleanest"`
	OverTimeBudget   bool          `json:"overTimeBudget,omitempty"`
}

// TradeOffView quantifies a recommendation against the fastest candidate.
type TradeOffView struct {
	ExposureReductionPercent float64 `json:"exposureReductionPercent"`
	TimeIncreasePercent      float64 `json:"timeIncreasePercent"`
}

// BatchOptimizeRequest is the request body for batch optimization.
type BatchOptimizeRequest struct {
	Requests []OptimizeRequest `json:"requests" validate:"required,min=1,max=50"`
}

// BatchEntryError describes a failed batch element.
type BatchEntryError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchEntry is the per-element outcome; exactly one of Result and Error is set.
type BatchEntry struct {
	Result *OptimizeResponse `json:"result,omitempty"`
	Error  *BatchEntryError  `json:"error,omitempty"`
}

// BatchOptimizeResponse mirrors the request order element by element.
type BatchOptimizeResponse struct {
	GeneratedAt Timestamp    `json:"generatedAt"`
	Results     []BatchEntry `json:"results"`
}
