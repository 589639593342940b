package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arborcode/profilescope/pkg/version"
)

// healthHandler handles GET /health. Only this process's own dependencies
// (canonical store, worker pool) are checked; the external scraper and LLM
// providers are replaceable/best-effort dependencies and are intentionally
// excluded so a flaky upstream never makes this process look unhealthy.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK

	resp := HealthResponse{Version: version.Full()}

	storeHealth, err := s.store.Health(ctx)
	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		resp.Store = &canonicalHealth{Status: "unhealthy: " + err.Error()}
	} else {
		resp.Store = &canonicalHealth{Status: storeHealth.Status}
	}

	if s.pool != nil {
		poolHealth, err := s.pool.Health(ctx)
		if err != nil {
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			resp.Queue = &queuePoolHealth{
				IsHealthy:     poolHealth.IsHealthy,
				TotalWorkers:  poolHealth.TotalWorkers,
				ActiveWorkers: poolHealth.ActiveWorkers,
				QueueDepth:    poolHealth.QueueDepth,
			}
			if !poolHealth.IsHealthy && status == "healthy" {
				status = "degraded"
			}
		}
	}

	resp.Status = status
	c.JSON(httpStatus, resp)
}
