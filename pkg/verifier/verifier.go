// Package verifier decides, per claim, whether it is approved and what
// policy tags and redaction it carries (C6).
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arborcode/profilescope/pkg/models"
)

// Completer is the narrow LLM dependency for the optional consistency
// overlay; nil disables it entirely.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Decision is the result of Verify.
type Decision struct {
	Approved bool
	Redacted string // set only when the claim's object was redacted
	Tags     []string
	Reason   string
}

// Verifier implements C6's Verify contract.
type Verifier struct {
	maskers map[string]Masker
	llm     Completer
}

// New builds a Verifier. llm may be nil to disable the advisory overlay.
func New(llm Completer) *Verifier {
	return &Verifier{maskers: defaultMaskerRegistry(), llm: llm}
}

// Verify decides approval, tags, and redaction for one claim.
func (v *Verifier) Verify(ctx context.Context, claim *models.Claim, consent models.ConsentFlags, existing []models.Claim) (decision Decision) {
	decision = v.verifyDeterministic(claim, consent)

	if v.llm == nil {
		return decision
	}
	overlay, ok := v.verifyLLMOverlay(ctx, claim, existing)
	if !ok {
		return decision
	}
	return tighten(decision, overlay)
}

func (v *Verifier) verifyDeterministic(claim *models.Claim, consent models.ConsentFlags) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			decision = Decision{
				Approved: false,
				Tags:     []string{"verification_failed"},
				Reason:   fmt.Sprintf("verification_failed: %v", r),
			}
		}
	}()

	tags := []string{confidenceTag(claim.Confidence)}
	tags = append(tags, provenanceTags(claim)...)

	category, sensitive := sensitiveCategory(claim.Predicate)
	if !sensitive {
		return Decision{Approved: true, Tags: tags}
	}

	allowed := consentAllows(consent, category)
	if !allowed {
		reason := fmt.Sprintf("rejected: %s disclosure requires consent, which was not granted", category)
		sensTag := "sensitive:pii"
		if category == "email" {
			sensTag = "sensitive:contact"
		}
		return Decision{
			Approved: false,
			Tags:     append(tags, sensTag),
			Reason:   reason,
		}
	}

	masker := maskerFor(v.maskers, claim.Predicate)
	redacted := masker.Mask(claim.Object)
	tags = append(tags, "sensitive:pii", "consent:"+category)
	return Decision{
		Approved: true,
		Redacted: redacted,
		Tags:     tags,
		Reason:   "approved with redaction: consent granted",
	}
}

// verifyLLMOverlay consults the LLM for consistency against existing claims.
// Returns ok=false on any failure so the caller falls back to the
// deterministic decision.
func (v *Verifier) verifyLLMOverlay(ctx context.Context, claim *models.Claim, existing []models.Claim) (Decision, bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s = %s (confidence %.2f)\n", claim.Predicate, claim.Object, claim.Confidence)
	b.WriteString("Existing claims for consistency check:\n")
	for _, e := range existing {
		fmt.Fprintf(&b, "- %s = %s\n", e.Predicate, e.Object)
	}
	b.WriteString(`Respond with strict JSON: {"reject": bool, "extra_tags": ["..."], "tighten_redaction": bool}`)

	raw, err := v.llm.Complete(ctx,
		"You review a single extracted claim for consistency against other known claims about the same subject. You may only make the decision stricter, never looser.",
		b.String())
	if err != nil {
		slog.Warn("verifier: llm overlay failed, using deterministic decision", "error", err)
		return Decision{}, false
	}

	overlay, err := parseOverlay(raw)
	if err != nil {
		slog.Warn("verifier: llm overlay output not parseable, using deterministic decision", "error", err)
		return Decision{}, false
	}
	return overlay, true
}

// tighten applies an LLM overlay decision on top of a deterministic one.
// The overlay may only reject an approved claim, add tags, or redact
// further — never loosen an already-rejected or already-redacted decision.
func tighten(base, overlay Decision) Decision {
	out := base
	if overlay.Approved == false && base.Approved {
		out.Approved = false
		out.Reason = "rejected by llm consistency overlay"
	}
	for _, tag := range overlay.Tags {
		if !containsTag(out.Tags, tag) {
			out.Tags = append(out.Tags, tag)
		}
	}
	if overlay.Redacted != "" && out.Redacted == "" && out.Approved {
		out.Redacted = overlay.Redacted
	}
	return out
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func confidenceTag(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "verified:high"
	case confidence >= 0.6:
		return "verified:medium"
	default:
		return "verified:low"
	}
}

func provenanceTags(claim *models.Claim) []string {
	var tags []string
	if strings.Contains(strings.ToLower(claim.Provenance.Source), "linkedin") {
		tags = append(tags, "source:linkedin_scraping")
	} else {
		tags = append(tags, "source:web_scraping")
	}
	tags = append(tags, "consent:public_data")
	return tags
}

// sensitiveCategory classifies a predicate into a consent
// category, per §4.6's sensitive-category rule.
func sensitiveCategory(predicate string) (category string, sensitive bool) {
	switch predicate {
	case models.PredicateHasEmail:
		return "email", true
	case models.PredicateHasPhone:
		return "phone", true
	case "has_address":
		return "address", true
	case "has_ssn":
		return "pii", true
	default:
		lower := strings.ToLower(predicate)
		if strings.Contains(lower, "personal") || strings.Contains(lower, "private") || strings.Contains(lower, "confidential") {
			return "pii", true
		}
		return "", false
	}
}

type overlayResponse struct {
	Reject           bool     `json:"reject"`
	ExtraTags        []string `json:"extra_tags"`
	TightenRedaction bool     `json:"tighten_redaction"`
}

func parseOverlay(raw string) (Decision, error) {
	var resp overlayResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return Decision{}, err
	}
	d := Decision{Approved: !resp.Reject, Tags: resp.ExtraTags}
	if resp.TightenRedaction {
		d.Redacted = "[REDACTED]"
	}
	return d, nil
}

func consentAllows(consent models.ConsentFlags, category string) bool {
	switch category {
	case "email":
		return consent.Email
	case "phone":
		return consent.Phone
	case "address":
		return consent.Address
	default:
		return false // generic pii categories require explicit handling, default closed
	}
}
