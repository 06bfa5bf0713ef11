package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cleanroute/cleanroute/internal/api/models"
	"github.com/cleanroute/cleanroute/internal/api/response"
	"github.com/cleanroute/cleanroute/internal/monitor"
	"github.com/cleanroute/cleanroute/internal/routing"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

// SubscriptionHandler handles route monitoring subscriptions.
type SubscriptionHandler struct {
	monitor *monitor.Service
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc *monitor.Service) *SubscriptionHandler {
	return &SubscriptionHandler{monitor: svc}
}

// Subscribe handles POST /v1/monitor/subscriptions - start monitoring a route.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var input models.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrs []models.FieldError
	if input.UserID == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "userId", Message: "userId is required"})
	}
	if input.Route.GeometryPolyline == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "route.geometryPolyline", Message: "route geometry is required"})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid subscription request", fieldErrs)
		return
	}

	route := routing.Route{
		ID:               input.Route.ID,
		Origin:           geo.Point{Lat: input.Route.Origin.Lat, Lon: input.Route.Origin.Lon},
		Destination:      geo.Point{Lat: input.Route.Destination.Lat, Lon: input.Route.Destination.Lon},
		GeometryPolyline: input.Route.GeometryPolyline,
		DistanceMeters:   input.Route.DistanceMeters,
		DurationSeconds:  input.Route.DurationSeconds,
		Summary:          input.Route.Summary,
	}
	if route.ID == "" {
		route.ID = "rt_" + uuid.New().String()[:12]
	}

	threshold := 0.0
	if input.ThresholdAqi != nil {
		threshold = *input.ThresholdAqi
	}

	subscriptionID, err := h.monitor.Subscribe(r.Context(), input.UserID, route, threshold)
	if err != nil {
		response.InternalError(w, r, "failed to create subscription")
		return
	}

	sub, err := h.monitor.Get(r.Context(), subscriptionID)
	if err != nil {
		response.InternalError(w, r, "failed to load subscription")
		return
	}

	location := fmt.Sprintf("/v1/monitor/subscriptions/%s", subscriptionID)
	response.Created(w, r, location, subscriptionView(sub))
}

// GetSubscription handles GET /v1/monitor/subscriptions/{subscriptionId}.
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionId")
	if subscriptionID == "" {
		response.BadRequest(w, r, "subscriptionId is required", nil)
		return
	}

	sub, err := h.monitor.Get(r.Context(), subscriptionID)
	if err != nil {
		if errors.Is(err, monitor.ErrSubscriptionNotFound) {
			response.NotFound(w, r, "subscription not found")
			return
		}
		response.InternalError(w, r, "failed to load subscription")
		return
	}

	response.JSON(w, r, http.StatusOK, subscriptionView(sub))
}

// Unsubscribe handles DELETE /v1/monitor/subscriptions/{subscriptionId}.
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionId")
	if subscriptionID == "" {
		response.BadRequest(w, r, "subscriptionId is required", nil)
		return
	}

	if err := h.monitor.Unsubscribe(r.Context(), subscriptionID); err != nil {
		if errors.Is(err, monitor.ErrSubscriptionNotFound) {
			response.NotFound(w, r, "subscription not found")
			return
		}
		response.InternalError(w, r, "failed to delete subscription")
		return
	}

	response.NoContent(w, r)
}

func subscriptionView(m *monitor.MonitoredRoute) models.SubscriptionResponse {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return models.SubscriptionResponse{
		ID:            m.ID,
		UserID:        m.UserID,
		RouteID:       m.Route.ID,
		BaselineScore: m.BaselineScore,
		ThresholdAqi:  m.Threshold,
		State:         string(m.State),
		CreatedAt:     models.Timestamp(createdAt),
	}
}
