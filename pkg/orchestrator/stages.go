package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/arborcode/profilescope/pkg/models"
)

// runFetch invokes the Harvester and persists the resulting evidence to the
// canonical store before advancing. Evidence is always persisted, even an
// empty list; a failed harvest policy (not a per-item failure) is fatal.
func (o *Orchestrator) runFetch(ctx context.Context, run *models.Run) error {
	evidence, err := o.harvester.Harvest(ctx, run.Subject, run.InputKind, run.Budget)
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}

	count := 0
	for i := range evidence {
		if evidence[i].ID == "" {
			evidence[i].ID = uuid.New().String()
		}
		id, _, err := o.store.CreateEvidence(ctx, &evidence[i])
		if err != nil {
			return fmt.Errorf("persist evidence from %s: %w", evidence[i].Source, err)
		}
		evidence[i].ID = id
		count++
	}

	if err := o.store.UpdateRunCounts(ctx, run.ID, count, run.ClaimsCount); err != nil {
		return fmt.Errorf("update evidence count: %w", err)
	}
	run.EvidenceCount = count

	return o.advance(ctx, run, models.StatusNormalize)
}

// runExtract loads the run's persisted evidence and extracts claims for
// each item, fanned out over a bounded worker pool. Extraction results are
// written back onto each evidence row so a later resume re-derives the
// same claims deterministically via the extractor's prior-extraction
// shortcut, rather than needing claims to be carried in memory.
func (o *Orchestrator) runExtract(ctx context.Context, run *models.Run) error {
	evidence, err := o.store.GetEvidenceBySubject(ctx, run.Subject)
	if err != nil {
		return fmt.Errorf("load evidence: %w", err)
	}

	claims := o.extractAll(ctx, run.Subject, evidence)

	if err := o.store.UpdateRunCounts(ctx, run.ID, run.EvidenceCount, len(claims)); err != nil {
		return fmt.Errorf("update claims count: %w", err)
	}
	run.ClaimsCount = len(claims)

	return o.advance(ctx, run, models.StatusVerify)
}

// extractAll runs the Extractor over every evidence item with up to
// fanoutWidth concurrent calls in flight, per §5's bounded-fan-out option.
func (o *Orchestrator) extractAll(ctx context.Context, subject string, evidence []models.Evidence) []models.Claim {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		claims []models.Claim
		sem    = make(chan struct{}, fanoutWidth)
	)

	for i := range evidence {
		ev := &evidence[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			produced := o.extractor.Extract(ctx, subject, ev)
			if ev.Extraction != nil {
				if err := o.store.UpdateEvidenceExtraction(ctx, ev.ID, ev.Extraction); err != nil {
					slog.Warn("orchestrator: failed to persist extraction, claims from this evidence may be re-derived on retry",
						"evidence_id", ev.ID, "error", err)
				}
			}

			mu.Lock()
			claims = append(claims, produced...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return claims
}

// runVerify re-derives the claim list (cheap: extraction already persisted,
// so this shortcuts straight to claimsFromExtraction) and verifies each
// claim, fanned out over a bounded worker pool. Only approved claims
// survive, with the verifier's tags and redaction applied.
func (o *Orchestrator) runVerify(ctx context.Context, run *models.Run, consent models.ConsentFlags) ([]models.Claim, error) {
	evidence, err := o.store.GetEvidenceBySubject(ctx, run.Subject)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}
	claims := o.extractAll(ctx, run.Subject, evidence)

	approved := o.verifyAll(ctx, claims, consent)

	if err := o.advance(ctx, run, models.StatusUpsert); err != nil {
		return nil, err
	}
	return approved, nil
}

// verifyAll runs the Verifier over every claim with up to fanoutWidth
// concurrent calls in flight. Existing claims passed to each Verify call
// are a snapshot taken before fan-out begins (every candidate claim of this
// verify pass, including the one being verified), matching §5's "ordering is not
// semantically meaningful" allowance.
func (o *Orchestrator) verifyAll(ctx context.Context, claims []models.Claim, consent models.ConsentFlags) []models.Claim {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		approved []models.Claim
		sem      = make(chan struct{}, fanoutWidth)
	)

	existing := make([]models.Claim, len(claims))
	copy(existing, claims)

	for i := range claims {
		claim := claims[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			decision := o.verifier.Verify(ctx, &claim, consent, existing)
			if !decision.Approved {
				return
			}
			claim.PolicyTags = append(claim.PolicyTags, decision.Tags...)
			if decision.Redacted != "" {
				claim.Object = decision.Redacted
			}

			mu.Lock()
			approved = append(approved, claim)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return approved
}

// runUpsert writes approved claims to the canonical store first
// (authoritative; any failure is fatal) and only then, best-effort, indexes
// evidence and claims into the vector store. A vector-store failure is
// logged and never fails the run.
func (o *Orchestrator) runUpsert(ctx context.Context, run *models.Run, approved []models.Claim, consent models.ConsentFlags) error {
	if approved == nil {
		// Resumed directly into upsert in a fresh process: re-derive.
		evidence, err := o.store.GetEvidenceBySubject(ctx, run.Subject)
		if err != nil {
			return fmt.Errorf("load evidence: %w", err)
		}
		claims := o.extractAll(ctx, run.Subject, evidence)
		approved = o.verifyAll(ctx, claims, consent)
	}

	for i := range approved {
		if approved[i].ID == "" {
			approved[i].ID = uuid.New().String()
		}
		if err := o.store.CreateClaim(ctx, &approved[i]); err != nil {
			return fmt.Errorf("persist claim %s=%s: %w", approved[i].Predicate, approved[i].Object, err)
		}
	}

	o.bestEffortIndex(ctx, run.Subject, approved)

	return o.advance(ctx, run, models.StatusSynthesize)
}

// bestEffortIndex embeds and upserts evidence and approved claims into the
// vector store. Every error here is logged and swallowed: C3 is never
// authoritative and must never abort a run.
func (o *Orchestrator) bestEffortIndex(ctx context.Context, subject string, approved []models.Claim) {
	if o.vector == nil || o.embedder == nil {
		return
	}

	evidence, err := o.store.GetEvidenceBySubject(ctx, subject)
	if err != nil {
		slog.Warn("orchestrator: failed to load evidence for vector indexing, skipping", "subject", subject, "error", err)
	}
	for _, ev := range evidence {
		vec := o.embedder.Embed(ctx, ev.Content)
		if err := o.vector.UpsertEvidence(ctx, ev.ID, subject, ev.Source, string(ev.ContentKind), vec); err != nil {
			slog.Warn("orchestrator: vector upsert of evidence failed, continuing", "evidence_id", ev.ID, "error", err)
		}
	}

	for _, c := range approved {
		text := c.Predicate + " " + c.Object
		vec := o.embedder.Embed(ctx, text)
		if err := o.vector.UpsertClaim(ctx, c.ID, subject, c.Predicate, c.Object, vec); err != nil {
			slog.Warn("orchestrator: vector upsert of claim failed, continuing", "claim_id", c.ID, "predicate", c.Predicate, "error", err)
		}
	}
}
