// Package orchestrator drives one run's state machine end to end:
// intake -> discover -> fetch -> normalize -> extract -> verify -> upsert ->
// synthesize -> publish -> completed, with an absorbing error state (C8).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/extractor"
	"github.com/arborcode/profilescope/pkg/harvester"
	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/synthesizer"
	"github.com/arborcode/profilescope/pkg/verifier"
)

// Embedder is the narrow vector-store dependency the orchestrator needs to
// index evidence and claims after upsert.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// VectorStore is the subset of *vectorstore.Store the orchestrator depends
// on, narrowed so tests can substitute a fake.
type VectorStore interface {
	UpsertEvidence(ctx context.Context, evidenceID, subject, source, contentKind string, vec []float32) error
	UpsertClaim(ctx context.Context, claimID, subject, predicate, object string, vec []float32) error
}

// fanoutWidth bounds concurrent LLM calls inside the extract and verify
// stages, the same fixed-size-channel-semaphore shape as the pack's
// jobs.Runner worker dispatch.
const fanoutWidth = 4

// Orchestrator sequences Harvester, Extractor, Verifier and Synthesizer
// against a Run, persisting state via the canonical and vector stores.
type Orchestrator struct {
	store       canonicalstore.Store
	vector      VectorStore
	embedder    Embedder
	harvester   *harvester.Harvester
	extractor   *extractor.Extractor
	verifier    *verifier.Verifier
	synthesizer *synthesizer.Synthesizer

	consentMu sync.RWMutex
	consent   map[string]models.ConsentFlags
}

// New builds an Orchestrator. vector and embedder may both be nil, in which
// case the upsert stage's best-effort vector write is skipped entirely.
func New(store canonicalstore.Store, vector VectorStore, embedder Embedder, h *harvester.Harvester, e *extractor.Extractor, v *verifier.Verifier, s *synthesizer.Synthesizer) *Orchestrator {
	return &Orchestrator{
		store:       store,
		vector:      vector,
		embedder:    embedder,
		harvester:   h,
		extractor:   e,
		verifier:    v,
		synthesizer: s,
		consent:     make(map[string]models.ConsentFlags),
	}
}

// SetConsent records the consent model a run was started with. Consent is
// operator-supplied input, not part of any C2 schema column, so it lives
// only in this in-memory registry for the run's lifetime; a run resumed in
// a fresh process falls back to DefaultConsentFlags (see DESIGN.md).
func (o *Orchestrator) SetConsent(runID string, consent models.ConsentFlags) {
	o.consentMu.Lock()
	defer o.consentMu.Unlock()
	o.consent[runID] = consent
}

// ConsentFor returns the recorded consent for a run, or the default model
// if none was recorded (process restart, or report requested before intake
// recorded consent for any reason).
func (o *Orchestrator) ConsentFor(runID string) models.ConsentFlags {
	o.consentMu.RLock()
	defer o.consentMu.RUnlock()
	if c, ok := o.consent[runID]; ok {
		return c
	}
	return models.DefaultConsentFlags()
}

// forgetConsent drops a completed or errored run's consent entry so the
// registry does not grow unboundedly across a long-lived process.
func (o *Orchestrator) forgetConsent(runID string) {
	o.consentMu.Lock()
	defer o.consentMu.Unlock()
	delete(o.consent, runID)
}

// Drive runs a single run's state machine forward from its current
// persisted status to completed or error. It is safe to call again after a
// crash: each stage reloads the inputs it needs from the canonical store
// rather than trusting in-memory state left over from a prior process.
func (o *Orchestrator) Drive(ctx context.Context, runID string) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	consent := o.ConsentFor(runID)

	log := slog.With("run_id", run.ID, "subject", run.Subject)

	// approvedClaims bridges the verify and upsert stages within a single
	// Drive call. It is transient, not part of models.Run: if the process
	// restarts between verify and upsert, runUpsert re-derives it from the
	// canonical store (see its doc comment).
	var approvedClaims []models.Claim

	for {
		switch run.Status {
		case models.StatusIntake:
			if err := o.advance(ctx, run, models.StatusDiscover); err != nil {
				return err
			}

		case models.StatusDiscover:
			// No external I/O in the core pipeline; reserved for future
			// source-discovery fan-in.
			if err := o.advance(ctx, run, models.StatusFetch); err != nil {
				return err
			}

		case models.StatusFetch:
			if err := o.runFetch(ctx, run); err != nil {
				return o.fail(ctx, run, err)
			}

		case models.StatusNormalize:
			// No-op pass reserved for schema normalization across
			// heterogeneous evidence sources.
			if err := o.advance(ctx, run, models.StatusExtract); err != nil {
				return err
			}

		case models.StatusExtract:
			if err := o.runExtract(ctx, run); err != nil {
				return o.fail(ctx, run, err)
			}

		case models.StatusVerify:
			approved, err := o.runVerify(ctx, run, consent)
			if err != nil {
				return o.fail(ctx, run, err)
			}
			approvedClaims = approved

		case models.StatusUpsert:
			if err := o.runUpsert(ctx, run, approvedClaims, consent); err != nil {
				return o.fail(ctx, run, err)
			}

		case models.StatusSynthesize:
			// Synthesis is performed lazily on report retrieval; this
			// stage only marks that evidence and claims are settled.
			if err := o.advance(ctx, run, models.StatusPublish); err != nil {
				return err
			}

		case models.StatusPublish:
			if err := o.advance(ctx, run, models.StatusCompleted); err != nil {
				return err
			}

		case models.StatusCompleted:
			log.Info("run completed")
			o.forgetConsent(run.ID)
			return nil

		case models.StatusError:
			log.Warn("run ended in error", "error_message", run.ErrorMessage)
			o.forgetConsent(run.ID)
			return fmt.Errorf("run %s ended in error: %s", run.ID, run.ErrorMessage)

		default:
			return o.fail(ctx, run, fmt.Errorf("unknown run status %q", run.Status))
		}

		if err := ctx.Err(); err != nil {
			return o.fail(ctx, run, fmt.Errorf("run cancelled: %w", err))
		}
	}
}

// advance validates and persists a forward transition, then mirrors it onto
// the in-memory run so the driving loop observes the latest status.
func (o *Orchestrator) advance(ctx context.Context, run *models.Run, to models.RunStatus) error {
	if !models.CanTransition(run.Status, to) {
		return o.fail(ctx, run, fmt.Errorf("invalid transition %s -> %s", run.Status, to))
	}
	if err := o.store.UpdateRunStatus(ctx, run.ID, to, ""); err != nil {
		return o.fail(ctx, run, fmt.Errorf("persist status %s: %w", to, err))
	}
	run.Status = to
	return nil
}

// fail transitions the run to the absorbing error state and returns cause
// so callers can propagate it. The status write uses a background context:
// a cancelled run must still be able to record why it stopped.
func (o *Orchestrator) fail(ctx context.Context, run *models.Run, cause error) error {
	if !models.CanTransition(run.Status, models.StatusError) {
		// Already terminal; nothing to record.
		return cause
	}
	if uerr := o.store.UpdateRunStatus(context.Background(), run.ID, models.StatusError, cause.Error()); uerr != nil {
		slog.Error("orchestrator: failed to persist error status", "run_id", run.ID, "error", uerr)
	}
	run.Status = models.StatusError
	run.ErrorMessage = cause.Error()
	o.forgetConsent(run.ID)
	return cause
}

// GetReport synthesizes a Report from a run's currently persisted state.
// Decoupled from the state machine: it can be called at any point in a
// run's life and reflects whatever evidence and claims have been written
// so far, partial or complete.
func (o *Orchestrator) GetReport(ctx context.Context, runID string) (*models.Report, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	evidence, err := o.store.GetEvidenceBySubject(ctx, run.Subject)
	if err != nil {
		return nil, fmt.Errorf("load evidence for %s: %w", run.Subject, err)
	}
	claims, err := o.store.GetClaimsBySubject(ctx, run.Subject)
	if err != nil {
		return nil, fmt.Errorf("load claims for %s: %w", run.Subject, err)
	}
	report := o.synthesizer.Synthesize(ctx, run.Subject, evidence, claims, o.ConsentFor(runID))
	return &report, nil
}
