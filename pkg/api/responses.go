package api

import (
	"time"

	"github.com/arborcode/profilescope/pkg/models"
)

// StartRunResponse is returned by POST /api/v1/runs.
type StartRunResponse struct {
	RunID  string           `json:"run_id"`
	Status models.RunStatus `json:"status"`
}

// RunResponse is returned by GET /api/v1/runs/:id.
type RunResponse struct {
	ID            string           `json:"id"`
	Subject       string           `json:"subject"`
	InputKind     models.InputKind `json:"input_kind"`
	Status        models.RunStatus `json:"status"`
	EvidenceCount int              `json:"evidence_count"`
	ClaimsCount   int              `json:"claims_count"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func runToResponse(run *models.Run) RunResponse {
	return RunResponse{
		ID:            run.ID,
		Subject:       run.Subject,
		InputKind:     run.InputKind,
		Status:        run.Status,
		EvidenceCount: run.EvidenceCount,
		ClaimsCount:   run.ClaimsCount,
		ErrorMessage:  run.ErrorMessage,
		CreatedAt:     run.CreatedAt,
		UpdatedAt:     run.UpdatedAt,
	}
}

// CancelRunResponse is returned by POST /api/v1/runs/:id/cancel.
type CancelRunResponse struct {
	RunID     string `json:"run_id"`
	Cancelled bool   `json:"cancelled"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version"`
	Store   *canonicalHealth   `json:"store"`
	Queue   *queuePoolHealth   `json:"queue,omitempty"`
}

type canonicalHealth struct {
	Status string `json:"status"`
}

type queuePoolHealth struct {
	IsHealthy     bool `json:"is_healthy"`
	TotalWorkers  int  `json:"total_workers"`
	ActiveWorkers int  `json:"active_workers"`
	QueueDepth    int  `json:"queue_depth"`
}
