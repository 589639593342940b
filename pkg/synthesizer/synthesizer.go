// Package synthesizer produces a Report from a run's evidence and claims,
// via an LLM when configured and a full deterministic fallback otherwise
// (C7).
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/scraper"
)

// Completer is the narrow LLM dependency.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const synthesisSystemPrompt = `You write a professional profile analysis report from structured profile data and extracted claims.
Respond with strict JSON matching this shape:
{"summary": "...", "key_roles": ["..."], "timeline": [{"date": "...", "event": "...", "source": "..."}],
 "consent_badges": ["..."], "confidence_score": 0.0,
 "linkedin_profile_analysis": {"completeness_score": 0.0, "profile_strength": "Strong|Good|Moderate|Weak",
 "keyword_optimization": {"score": 0.0, "identified_keywords": ["..."], "missing_keywords": ["..."]},
 "engagement_metrics": {"followers": 0, "connections": 0, "traction_rating": "High|Medium|Low", "analysis": "..."},
 "profile_sections": {"headline": "...", "about": "...", "experience": "...",
 "education": {"present": true, "count": 0, "quality": "...", "feedback": "..."}},
 "recommendations": ["...", "...", "...", "...", "..."]}}`

// Synthesizer implements C7's Synthesize contract.
type Synthesizer struct {
	llm Completer
}

// New builds a Synthesizer. llm may be nil, in which case Synthesize
// always uses the deterministic fallback path.
func New(llm Completer) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize produces a Report for subject from its persisted evidence and
// approved claims.
func (s *Synthesizer) Synthesize(ctx context.Context, subject string, evidence []models.Evidence, claims []models.Claim, consent models.ConsentFlags) models.Report {
	profile := findProfileEvidence(evidence)
	if profile == nil {
		return minimalReport(subject, len(evidence), len(claims))
	}

	if s.llm != nil {
		if report, ok := s.synthesizeViaLLM(ctx, subject, profile, claims); ok {
			report.ConsentBadges = consentBadges(consent)
			return report
		}
	}

	report := fallbackReport(profile, claims)
	report.ConsentBadges = consentBadges(consent)
	return report
}

func (s *Synthesizer) synthesizeViaLLM(ctx context.Context, subject string, profile *scraper.Profile, claims []models.Claim) (models.Report, bool) {
	top := topClaims(claims, 10)
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return models.Report{}, false
	}
	claimsJSON, err := json.Marshal(top)
	if err != nil {
		return models.Report{}, false
	}

	prompt := fmt.Sprintf("Subject: %s\nProfile: %s\nTop claims: %s", subject, profileJSON, claimsJSON)
	raw, err := s.llm.Complete(ctx, synthesisSystemPrompt, prompt)
	if err != nil {
		slog.Warn("synthesizer: llm call failed, falling back to deterministic synthesis", "error", err)
		return models.Report{}, false
	}

	var report models.Report
	if err := extractJSONObject(raw, &report); err != nil {
		slog.Warn("synthesizer: llm output not parseable, falling back to deterministic synthesis", "error", err)
		return models.Report{}, false
	}
	if report.Summary == "" {
		slog.Warn("synthesizer: llm output missing required fields, falling back to deterministic synthesis")
		return models.Report{}, false
	}
	return report, true
}

func extractJSONObject(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object found in LLM response")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func findProfileEvidence(evidence []models.Evidence) *scraper.Profile {
	for i := range evidence {
		ev := &evidence[i]
		if ev.ContentKind != models.ContentKindJSON {
			continue
		}
		var raw any
		if err := json.Unmarshal([]byte(ev.Content), &raw); err != nil {
			continue
		}
		profile, err := scraper.DecodeProfile(raw)
		if err != nil {
			continue
		}
		if profile.Name != "" || profile.LinkedInID != "" {
			return profile
		}
	}
	return nil
}

func topClaims(claims []models.Claim, n int) []models.Claim {
	sorted := make([]models.Claim, len(claims))
	copy(sorted, claims)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func consentBadges(consent models.ConsentFlags) []string {
	var badges []string
	if consent.Profile {
		badges = append(badges, "consent:profile")
	}
	if consent.Email {
		badges = append(badges, "consent:email")
	}
	if consent.Phone {
		badges = append(badges, "consent:phone")
	}
	if consent.Address {
		badges = append(badges, "consent:address")
	}
	return badges
}

func minimalReport(subject string, evidenceCount, claimsCount int) models.Report {
	return models.Report{
		Summary: fmt.Sprintf(
			"No profile-shaped evidence was available for %s. %d evidence record(s) and %d claim(s) were collected during this run.",
			subject, evidenceCount, claimsCount),
		ConfidenceScore: 0.5,
	}
}
