package canonicalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arborcode/profilescope/pkg/models"
)

// CreateRun inserts a new run row.
func (c *Client) CreateRun(ctx context.Context, run *models.Run) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (id, subject, input_kind, status, budget, evidence_count, claims_count, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Subject, string(run.InputKind), string(run.Status), run.Budget,
		run.EvidenceCount, run.ClaimsCount, run.ErrorMessage, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun loads a run by ID.
func (c *Client) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, subject, input_kind, status, budget, evidence_count, claims_count, error_message, created_at, updated_at
		FROM runs WHERE id = $1`, id)

	var run models.Run
	var inputKind, status string
	if err := row.Scan(&run.ID, &run.Subject, &inputKind, &status, &run.Budget,
		&run.EvidenceCount, &run.ClaimsCount, &run.ErrorMessage, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.InputKind = models.InputKind(inputKind)
	run.Status = models.RunStatus(status)
	return &run, nil
}

// UpdateRunStatus sets a run's status (and, for the error state, its error
// message) and bumps updated_at. Callers enforce CanTransition before
// calling this; the store does not re-validate the transition.
func (c *Client) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errMsg string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE runs SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return checkRowsAffected(res, id)
}

// UpdateRunCounts updates the denormalized evidence/claim counters on a run.
func (c *Client) UpdateRunCounts(ctx context.Context, id string, evidenceCount, claimsCount int) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE runs SET evidence_count = $1, claims_count = $2, updated_at = $3 WHERE id = $4`,
		evidenceCount, claimsCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update run counts: %w", err)
	}
	return checkRowsAffected(res, id)
}

// ListActiveRuns returns every run not yet in a terminal status, oldest
// first, for the worker pool's polling and orphan-sweep queries.
func (c *Client) ListActiveRuns(ctx context.Context) ([]models.Run, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, subject, input_kind, status, budget, evidence_count, claims_count, error_message, created_at, updated_at
		FROM runs WHERE status NOT IN ($1, $2) ORDER BY created_at ASC`,
		string(models.StatusCompleted), string(models.StatusError))
	if err != nil {
		return nil, fmt.Errorf("list active runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		var run models.Run
		var inputKind, status string
		if err := rows.Scan(&run.ID, &run.Subject, &inputKind, &status, &run.Budget,
			&run.EvidenceCount, &run.ClaimsCount, &run.ErrorMessage, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan active run: %w", err)
		}
		run.InputKind = models.InputKind(inputKind)
		run.Status = models.RunStatus(status)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active runs: %w", err)
	}
	return out, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// CreateEvidence inserts an evidence row, deduplicating on (subject, hash).
// A duplicate hash for the same subject is not an error: the existing row's
// ID is returned with created=false so callers can treat re-harvested
// content as already covered.
func (c *Client) CreateEvidence(ctx context.Context, ev *models.Evidence) (string, bool, error) {
	var extractionJSON []byte
	if ev.Extraction != nil {
		var err error
		extractionJSON, err = json.Marshal(ev.Extraction)
		if err != nil {
			return "", false, fmt.Errorf("marshal extraction: %w", err)
		}
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO evidence (id, subject_id, source_url, collected_at, content_text, content_type, hash, extraction_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (subject_id, hash) DO NOTHING`,
		ev.ID, ev.Subject, ev.Source, ev.CollectedAt, ev.Content, string(ev.ContentKind), ev.Hash, nullableJSON(extractionJSON))
	if err != nil {
		return "", false, fmt.Errorf("insert evidence: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return ev.ID, true, nil
	}

	var existingID string
	row := c.db.QueryRowContext(ctx, `SELECT id FROM evidence WHERE subject_id = $1 AND hash = $2`, ev.Subject, ev.Hash)
	if err := row.Scan(&existingID); err != nil {
		return "", false, fmt.Errorf("lookup existing evidence: %w", err)
	}
	return existingID, false, nil
}

// UpdateEvidenceExtraction attaches or replaces the extraction payload on an
// already-persisted evidence row.
func (c *Client) UpdateEvidenceExtraction(ctx context.Context, id string, extraction *models.Extraction) error {
	extractionJSON, err := json.Marshal(extraction)
	if err != nil {
		return fmt.Errorf("marshal extraction: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `UPDATE evidence SET extraction_json = $1 WHERE id = $2`, extractionJSON, id)
	if err != nil {
		return fmt.Errorf("update evidence extraction: %w", err)
	}
	return checkRowsAffected(res, id)
}

// GetEvidenceBySubject loads all evidence collected for a subject.
func (c *Client) GetEvidenceBySubject(ctx context.Context, subject string) ([]models.Evidence, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, subject_id, source_url, collected_at, content_text, content_type, hash, extraction_json
		FROM evidence WHERE subject_id = $1 ORDER BY collected_at DESC`, subject)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var out []models.Evidence
	for rows.Next() {
		var ev models.Evidence
		var contentKind string
		var extractionJSON sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Subject, &ev.Source, &ev.CollectedAt, &ev.Content, &contentKind, &ev.Hash, &extractionJSON); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		ev.ContentKind = models.ContentKind(contentKind)
		if extractionJSON.Valid && extractionJSON.String != "" {
			var extraction models.Extraction
			if err := json.Unmarshal([]byte(extractionJSON.String), &extraction); err != nil {
				return nil, fmt.Errorf("unmarshal extraction for evidence %s: %w", ev.ID, err)
			}
			ev.Extraction = &extraction
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CreateClaim inserts a new claim row.
func (c *Client) CreateClaim(ctx context.Context, claim *models.Claim) error {
	provenanceJSON, err := json.Marshal(claim.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO claims (id, subject_id, predicate, object, confidence, first_seen_at, last_verified_at, provenance_json, policy_tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		claim.ID, claim.Subject, claim.Predicate, claim.Object, claim.Confidence,
		claim.FirstSeenAt, claim.LastVerifiedAt, provenanceJSON, toTextArray(claim.PolicyTags))
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// GetClaimsBySubject loads all claims recorded for a subject.
func (c *Client) GetClaimsBySubject(ctx context.Context, subject string) ([]models.Claim, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, subject_id, predicate, object, confidence, first_seen_at, last_verified_at, provenance_json, policy_tags
		FROM claims WHERE subject_id = $1 ORDER BY last_verified_at DESC`, subject)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var out []models.Claim
	for rows.Next() {
		var claim models.Claim
		var provenanceJSON []byte
		var tags pgTextArray
		if err := rows.Scan(&claim.ID, &claim.Subject, &claim.Predicate, &claim.Object, &claim.Confidence,
			&claim.FirstSeenAt, &claim.LastVerifiedAt, &provenanceJSON, &tags); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		if err := json.Unmarshal(provenanceJSON, &claim.Provenance); err != nil {
			return nil, fmt.Errorf("unmarshal provenance for claim %s: %w", claim.ID, err)
		}
		claim.PolicyTags = []string(tags)
		out = append(out, claim)
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
