// Package models holds the core data types shared across the pipeline:
// runs, evidence, claims, and the ephemeral report shape.
package models

import "time"

// InputKind distinguishes a direct profile URL from a free-text search query.
type InputKind string

const (
	InputKindDirectURL    InputKind = "direct-url"
	InputKindSearchQuery  InputKind = "search-query"
)

// RunStatus is one of the nine lifecycle states of the run state machine.
type RunStatus string

const (
	StatusIntake     RunStatus = "intake"
	StatusDiscover   RunStatus = "discover"
	StatusFetch      RunStatus = "fetch"
	StatusNormalize  RunStatus = "normalize"
	StatusExtract    RunStatus = "extract"
	StatusVerify     RunStatus = "verify"
	StatusUpsert     RunStatus = "upsert"
	StatusSynthesize RunStatus = "synthesize"
	StatusPublish    RunStatus = "publish"
	StatusCompleted  RunStatus = "completed"
	StatusError      RunStatus = "error"
)

// stageOrder fixes the linear order of the success path, ending in the
// terminal completed state, so transitions can be validated as monotone.
// error is reachable from any non-terminal state and is not part of the order.
var stageOrder = []RunStatus{
	StatusIntake, StatusDiscover, StatusFetch, StatusNormalize,
	StatusExtract, StatusVerify, StatusUpsert, StatusSynthesize,
	StatusPublish, StatusCompleted,
}

// CanTransition reports whether moving from "from" to "to" respects the fixed
// stage order (exactly one stage forward; no stage may be skipped) or is the
// absorbing error transition.
func CanTransition(from, to RunStatus) bool {
	if to == StatusError {
		return from != StatusCompleted && from != StatusError
	}
	fromIdx, toIdx := -1, -1
	for i, s := range stageOrder {
		if s == from {
			fromIdx = i
		}
		if s == to {
			toIdx = i
		}
	}
	return fromIdx >= 0 && toIdx >= 0 && toIdx == fromIdx+1
}

// Run is one analysis of one subject, identified by a unique id, with a
// durable status. Created at intake, mutated only by the orchestrator, never
// deleted by the core.
type Run struct {
	ID            string
	Subject       string
	InputKind     InputKind
	Status        RunStatus
	Budget        int
	EvidenceCount int
	ClaimsCount   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
