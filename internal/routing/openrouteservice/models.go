package openrouteservice

// orsRequest is the directions request body. ORS expects [lon, lat]
// coordinate order (GeoJSON).
type orsRequest struct {
	Coordinates       [][]float64            `json:"coordinates"`
	AlternativeRoutes *alternativeRoutesOpts `json:"alternative_routes,omitempty"`
	Geometry          bool                   `json:"geometry"`
	Units             string                 `json:"units"`
}

type alternativeRoutesOpts struct {
	TargetCount int `json:"target_count"`
}

// orsResponse is the directions response body, reduced to the fields the
// engine consumes.
type orsResponse struct {
	Routes []orsRoute `json:"routes"`
}

type orsRoute struct {
	Summary  orsSummary `json:"summary"`
	Geometry string     `json:"geometry"`
}

type orsSummary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// orsError is the ORS error response body.
type orsError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
