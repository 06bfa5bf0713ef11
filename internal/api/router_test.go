package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanroute/cleanroute/internal/alerting"
	"github.com/cleanroute/cleanroute/internal/api"
	"github.com/cleanroute/cleanroute/internal/api/models"
	"github.com/cleanroute/cleanroute/internal/engine"
	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/griddata"
	"github.com/cleanroute/cleanroute/internal/monitor"
	"github.com/cleanroute/cleanroute/internal/routecache"
	"github.com/cleanroute/cleanroute/internal/routing"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

const testCity = "amsterdam"

// stubProvider returns canned route candidates.
type stubProvider struct {
	routes []routing.Route
	err    error
}

func (p *stubProvider) GenerateCandidates(_ context.Context, _, _ geo.Point) ([]routing.Route, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.routes, nil
}

func (p *stubProvider) Name() string { return "stub" }

// eastboundRoute builds a ~1.5 km route at the given latitude.
func eastboundRoute(id string, lat float64, durationSeconds int) routing.Route {
	points := []geo.Point{
		{Lat: lat, Lon: 4.0},
		{Lat: lat, Lon: 4.0219},
	}
	return routing.Route{
		ID:               id,
		Origin:           points[0],
		Destination:      points[1],
		GeometryPolyline: geo.EncodePolyline(points),
		DistanceMeters:   1500,
		DurationSeconds:  durationSeconds,
	}
}

func seedRoute(t *testing.T, store *griddata.MemoryStore, route routing.Route, aqi float64) {
	t.Helper()

	points := geo.DecodePolyline(route.GeometryPolyline)
	require.NotEmpty(t, points)
	for _, seg := range geo.Segmentize(points, 500) {
		cell := griddata.CellFromLocation(testCity, seg.Midpoint())
		store.SetReading(&griddata.Reading{Cell: cell, AQI: aqi, Traffic: griddata.TrafficLow})
	}
}

func newTestRouter(t *testing.T, provider routing.Provider) (http.Handler, *griddata.MemoryStore) {
	t.Helper()

	store := griddata.NewMemoryStore()
	calc := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: store,
		Logger: zerolog.Nop(),
		City:   testCity,
	})
	cache := routecache.New(routecache.Config{
		Logger:      zerolog.Nop(),
		Fingerprint: engine.MeanAQIFingerprint(store),
	})
	eng := engine.NewService(engine.ServiceConfig{
		Provider:   provider,
		Calculator: calc,
		Cache:      cache,
		Reader:     store,
		Logger:     zerolog.Nop(),
	})
	mon := monitor.NewService(monitor.ServiceConfig{
		Repository: monitor.NewInMemoryRepository(),
		Calculator: calc,
		Provider:   provider,
		Notifier:   alerting.NewLogNotifier(zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})

	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: time.Now().Format(time.RFC3339),
		Logger:    zerolog.Nop(),
		Engine:    eng,
		Monitor:   mon,
		Cache:     cache,
	}), store
}

func TestRouter_HealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_SystemStatus(t *testing.T) {
	router, _ := newTestRouter(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.NotNil(t, status.Cache)
	assert.Zero(t, status.Cache.Hits)
	require.NotNil(t, status.Monitor)
	assert.Zero(t, status.Monitor.Sweeps)
}

func TestRouter_Optimize(t *testing.T) {
	fastDirty := eastboundRoute("fast-dirty", 52.0, 600)
	slowClean := eastboundRoute("slow-clean", 52.1, 700)
	router, store := newTestRouter(t, &stubProvider{routes: []routing.Route{fastDirty, slowClean}})
	seedRoute(t, store, fastDirty, 300)
	seedRoute(t, store, slowClean, 40)

	body := `{
		"origin": {"lat": 52.0, "lon": 4.0},
		"destination": {"lat": 52.0, "lon": 4.0219}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

	var resp models.OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, "slow-clean", resp.Recommendations[0].RouteID)
	assert.Equal(t, 1, resp.Recommendations[0].Rank)
	assert.True(t, resp.Recommendations[0].IsCleanest)
	assert.NotNil(t, resp.Recommendations[0].TradeOff)
	assert.True(t, resp.Recommendations[1].IsFastest)
	assert.Nil(t, resp.Recommendations[1].TradeOff)
	assert.False(t, resp.HighExposure)
}

func TestRouter_Optimize_ValidationError(t *testing.T) {
	router, _ := newTestRouter(t, &stubProvider{})

	body := `{"origin": {"lat": 52.0, "lon": 4.0}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "destination", problem.Errors[0].Field)
}

func TestRouter_Optimize_NoRoutes(t *testing.T) {
	router, _ := newTestRouter(t, &stubProvider{err: routing.ErrNoRouteFound})

	body := `{
		"origin": {"lat": 52.0, "lon": 4.0},
		"destination": {"lat": 52.0, "lon": 4.0219}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
}

func TestRouter_OptimizeBatch(t *testing.T) {
	route := eastboundRoute("only", 52.0, 600)
	router, store := newTestRouter(t, &stubProvider{routes: []routing.Route{route}})
	seedRoute(t, store, route, 80)

	body := `{
		"requests": [
			{"origin": {"lat": 52.0, "lon": 4.0}, "destination": {"lat": 52.0, "lon": 4.0219}},
			{"origin": {"lat": 52.0, "lon": 4.0}, "destination": {"lat": 52.0, "lon": 4.0219}}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize-batch", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.BatchOptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	for _, entry := range resp.Results {
		require.Nil(t, entry.Error)
		require.NotNil(t, entry.Result)
		assert.Len(t, entry.Result.Recommendations, 1)
	}
}

func TestRouter_OptimizeBatch_Empty(t *testing.T) {
	router, _ := newTestRouter(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize-batch", bytes.NewBufferString(`{"requests": []}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_SubscriptionLifecycle(t *testing.T) {
	route := eastboundRoute("commute", 52.0, 600)
	router, store := newTestRouter(t, &stubProvider{routes: []routing.Route{route}})
	seedRoute(t, store, route, 60)

	body, err := json.Marshal(models.SubscribeRequest{
		UserID: "user-1",
		Route: models.RouteInput{
			ID:               route.ID,
			Origin:           models.Point{Lat: route.Origin.Lat, Lon: route.Origin.Lon},
			Destination:      models.Point{Lat: route.Destination.Lat, Lon: route.Destination.Lon},
			GeometryPolyline: route.GeometryPolyline,
			DistanceMeters:   route.DistanceMeters,
			DurationSeconds:  route.DurationSeconds,
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/monitor/subscriptions", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sub models.SubscriptionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "user-1", sub.UserID)
	assert.Equal(t, "commute", sub.RouteID)
	assert.Equal(t, "NORMAL", sub.State)
	assert.Equal(t, "/v1/monitor/subscriptions/"+sub.ID, w.Header().Get("Location"))

	// Fetch it back.
	req = httptest.NewRequest(http.MethodGet, "/v1/monitor/subscriptions/"+sub.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Delete, then the fetch 404s.
	req = httptest.NewRequest(http.MethodDelete, "/v1/monitor/subscriptions/"+sub.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/monitor/subscriptions/"+sub.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Subscribe_MissingUser(t *testing.T) {
	router, _ := newTestRouter(t, &stubProvider{})

	body := `{"route": {"geometryPolyline": "_p~iF~ps|U"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/monitor/subscriptions", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "userId", problem.Errors[0].Field)
}
