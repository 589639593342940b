package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/models"
)

// startRunHandler handles POST /api/v1/runs.
func (s *Server) startRunHandler(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if req.InputKind != models.InputKindDirectURL && req.InputKind != models.InputKindSearchQuery {
		writeError(c, http.StatusBadRequest, errors.New("input_kind must be \"direct-url\" or \"search-query\""))
		return
	}
	if req.Budget <= 0 {
		req.Budget = 10
	}

	runID, err := s.pool.StartRun(c.Request.Context(), req.Subject, req.InputKind, req.Budget, req.Consent.toFlags())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, StartRunResponse{RunID: runID, Status: models.StatusIntake})
}

// getRunHandler handles GET /api/v1/runs/:id.
func (s *Server) getRunHandler(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, canonicalstore.ErrNotFound) {
			writeError(c, http.StatusNotFound, ErrNotFound)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, runToResponse(run))
}

// getReportHandler handles GET /api/v1/runs/:id/report. The report reflects
// whatever evidence and claims are persisted so far, partial or complete —
// it does not wait for the run to reach completed.
func (s *Server) getReportHandler(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetRun(c.Request.Context(), id); err != nil {
		if errors.Is(err, canonicalstore.ErrNotFound) {
			writeError(c, http.StatusNotFound, ErrNotFound)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	report, err := s.orchestrator.GetReport(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// cancelRunHandler handles POST /api/v1/runs/:id/cancel. Only cancels a run
// currently claimed by a worker in this process; see pkg/queue's Open
// Question notes on single-process claim scope.
func (s *Server) cancelRunHandler(c *gin.Context) {
	id := c.Param("id")
	cancelled := s.pool.CancelRun(id)
	c.JSON(http.StatusOK, CancelRunResponse{RunID: id, Cancelled: cancelled})
}
