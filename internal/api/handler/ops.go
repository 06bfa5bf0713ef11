// Package handler provides HTTP handlers for the CleanRoute API.
package handler

import (
	"net/http"
	"time"

	"github.com/cleanroute/cleanroute/internal/api/models"
	"github.com/cleanroute/cleanroute/internal/api/response"
	"github.com/cleanroute/cleanroute/internal/monitor"
	"github.com/cleanroute/cleanroute/internal/routecache"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	cache     *routecache.Cache
	monitor   *monitor.Service
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, cache *routecache.Cache, mon *monitor.Service) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		cache:     cache,
		monitor:   mon,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - cache and monitor counters.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.cache != nil {
		s := h.cache.Stats()
		status.Cache = &models.CacheStats{
			Entries:   s.Entries,
			Capacity:  s.Capacity,
			Hits:      s.Hits,
			Misses:    s.Misses,
			Evictions: s.Evictions,
		}
	}

	if h.monitor != nil {
		m := h.monitor.Metrics()
		stats := &models.MonitorStats{
			Sweeps:    m.Sweeps,
			Evaluated: m.Evaluated,
			Alerts:    m.Alerts,
			AllClears: m.AllClears,
			Failures:  m.Failures,
		}
		if !m.LastSweepAt.IsZero() {
			t := models.Timestamp(m.LastSweepAt)
			stats.LastSweepAt = &t
		}
		status.Monitor = stats
	}

	response.JSON(w, r, http.StatusOK, status)
}
