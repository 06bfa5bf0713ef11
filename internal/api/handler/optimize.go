package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cleanroute/cleanroute/internal/api/models"
	"github.com/cleanroute/cleanroute/internal/api/response"
	"github.com/cleanroute/cleanroute/internal/engine"
	"github.com/cleanroute/cleanroute/internal/ranking"
	"github.com/cleanroute/cleanroute/internal/routing"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

const maxBatchSize = 50

// OptimizeHandler handles route optimization endpoints.
type OptimizeHandler struct {
	engine *engine.Service
}

// NewOptimizeHandler creates a new OptimizeHandler.
func NewOptimizeHandler(svc *engine.Service) *OptimizeHandler {
	return &OptimizeHandler{engine: svc}
}

// Optimize handles POST /v1/routes:optimize - rank route alternatives by exposure.
func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var input models.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	fieldErrs := validateOptimizeRequest(&input)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid optimize request", fieldErrs)
		return
	}

	result, err := h.runOptimize(r.Context(), &input)
	if err != nil {
		writeOptimizeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, result)
}

// OptimizeBatch handles POST /v1/routes:optimize-batch - multiple requests
// under one deadline; elements succeed or fail independently.
func (h *OptimizeHandler) OptimizeBatch(w http.ResponseWriter, r *http.Request) {
	var input models.BatchOptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if len(input.Requests) == 0 {
		response.BadRequest(w, r, "requests must not be empty", []models.FieldError{
			{Field: "requests", Message: "at least one request is required"},
		})
		return
	}
	if len(input.Requests) > maxBatchSize {
		response.BadRequest(w, r, "too many batch elements", []models.FieldError{
			{Field: "requests", Message: "at most 50 requests per batch"},
		})
		return
	}

	batch := make([]engine.BatchRequest, 0, len(input.Requests))
	for i, req := range input.Requests {
		if fieldErrs := validateOptimizeRequest(&req); len(fieldErrs) > 0 {
			response.BadRequest(w, r, "invalid optimize request in batch", prefixFieldErrors(i, fieldErrs))
			return
		}
		batch = append(batch, engine.BatchRequest{
			Origin:        geo.Point{Lat: req.Origin.Lat, Lon: req.Origin.Lon},
			Destination:   geo.Point{Lat: req.Destination.Lat, Lon: req.Destination.Lon},
			DepartureTime: departureTime(&req),
			Preferences:   preferences(&req),
		})
	}

	results := h.engine.OptimizeBatch(r.Context(), batch)

	resp := models.BatchOptimizeResponse{
		GeneratedAt: models.Timestamp(time.Now()),
		Results:     make([]models.BatchEntry, len(results)),
	}
	for i, res := range results {
		if res.Err != nil {
			resp.Results[i] = models.BatchEntry{Error: batchEntryError(res.Err)}
			continue
		}
		view := resultView(res.Result)
		resp.Results[i] = models.BatchEntry{Result: &view}
	}

	response.JSON(w, r, http.StatusOK, resp)
}

func (h *OptimizeHandler) runOptimize(ctx context.Context, input *models.OptimizeRequest) (*models.OptimizeResponse, error) {
	result, err := h.engine.Optimize(ctx,
		geo.Point{Lat: input.Origin.Lat, Lon: input.Origin.Lon},
		geo.Point{Lat: input.Destination.Lat, Lon: input.Destination.Lon},
		departureTime(input),
		preferences(input),
	)
	if err != nil {
		return nil, err
	}
	view := resultView(result)
	return &view, nil
}

func validateOptimizeRequest(input *models.OptimizeRequest) []models.FieldError {
	var errs []models.FieldError
	if input.Origin == nil {
		errs = append(errs, models.FieldError{Field: "origin", Message: "origin is required"})
	}
	if input.Destination == nil {
		errs = append(errs, models.FieldError{Field: "destination", Message: "destination is required"})
	}
	return errs
}

func prefixFieldErrors(index int, errs []models.FieldError) []models.FieldError {
	prefixed := make([]models.FieldError, len(errs))
	for i, e := range errs {
		e.Field = "requests[" + strconv.Itoa(index) + "]." + e.Field
		prefixed[i] = e
	}
	return prefixed
}

func departureTime(input *models.OptimizeRequest) time.Time {
	if input.DepartureTime != nil && !input.DepartureTime.Time().IsZero() {
		return input.DepartureTime.Time()
	}
	return time.Now()
}

func preferences(input *models.OptimizeRequest) ranking.Preferences {
	prefs := ranking.DefaultPreferences()
	if input.Preferences == nil {
		return prefs
	}
	if input.Preferences.MaxTimeIncreasePercent != nil {
		prefs.MaxTimeIncreasePercent = *input.Preferences.MaxTimeIncreasePercent
	}
	if input.Preferences.AlertThresholdAqi != nil {
		prefs.AlertThresholdAQI = *input.Preferences.AlertThresholdAqi
	}
	if input.Preferences.ExposurePriority != nil {
		prefs.ExposurePriority = *input.Preferences.ExposurePriority
	}
	return prefs
}

func resultView(result *ranking.Result) models.OptimizeResponse {
	resp := models.OptimizeResponse{
		GeneratedAt:     models.Timestamp(time.Now()),
		HighExposure:    result.HighExposure,
		Recommendations: make([]models.RecommendationView, len(result.Recommendations)),
	}
	for i, rec := range result.Recommendations {
		view := models.RecommendationView{
			RouteID:          rec.Route.ID,
			Rank:             rec.Rank,
			Summary:          rec.Route.Summary,
			DistanceMeters:   rec.Route.DistanceMeters,
			DurationSeconds:  rec.Route.DurationSeconds,
			GeometryPolyline: rec.Route.GeometryPolyline,
			ExposureScore:    rec.Exposure.Score,
			Estimated:        rec.Exposure.Estimated,
			IsFastest:        rec.IsFastest,
			IsCleanest:       rec.IsCleanest,
			OverTimeBudget:   rec.OverTimeBudget,
		}
		if !rec.IsFastest {
			view.TradeOff = &models.TradeOffView{
				ExposureReductionPercent: rec.TradeOff.ExposureReductionPercent,
				TimeIncreasePercent:      rec.TradeOff.TimeIncreasePercent,
			}
		}
		resp.Recommendations[i] = view
	}
	return resp
}

func writeOptimizeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ranking.ErrInvalidPreferences), errors.Is(err, routing.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, engine.ErrMissingRouteData), errors.Is(err, routing.ErrNoRouteFound):
		response.NotFound(w, r, "no routes found between the given points")
	case errors.Is(err, engine.ErrTimeout):
		response.Timeout(w, r, "route optimization deadline exceeded")
	case errors.Is(err, routing.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, "routing provider unavailable")
	default:
		response.InternalError(w, r, "route optimization failed")
	}
}

func batchEntryError(err error) *models.BatchEntryError {
	switch {
	case errors.Is(err, ranking.ErrInvalidPreferences), errors.Is(err, routing.ErrInvalidCoordinates):
		return &models.BatchEntryError{Code: "INVALID_REQUEST", Message: err.Error()}
	case errors.Is(err, engine.ErrMissingRouteData), errors.Is(err, routing.ErrNoRouteFound):
		return &models.BatchEntryError{Code: "NO_ROUTES", Message: "no routes found between the given points"}
	case errors.Is(err, engine.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &models.BatchEntryError{Code: "TIMEOUT", Message: "deadline exceeded"}
	case errors.Is(err, routing.ErrProviderUnavailable):
		return &models.BatchEntryError{Code: "PROVIDER_UNAVAILABLE", Message: "routing provider unavailable"}
	default:
		return &models.BatchEntryError{Code: "INTERNAL", Message: "route optimization failed"}
	}
}
