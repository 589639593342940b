// Package extractor turns an evidence record into claim candidates, via an
// LLM when configured and a deterministic rule-based pass otherwise (C5).
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/scraper"
)

// Completer is the subset of *llmclient.Client the extractor depends on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest mirrors llmclient.CompletionRequest so this package
// does not need to import llmclient directly; callers pass an adapter.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

const systemPrompt = `You extract factual claims about a person from a single piece of evidence.
Respond with a strict JSON object: {"entities": ["..."], "claims": [{"predicate": "...", "object": "...", "confidence": 0.0}]}.
Only use predicates from this vocabulary when applicable: has_name, works_at, has_title, located_in, has_about, graduated_from, has_degree, has_skill, has_followers, has_connections, graduation_year, has_email, has_phone.
Be conservative: omit anything you are not confident about.`

// Extractor implements C5's Extract contract.
type Extractor struct {
	llm Completer
}

// New builds an Extractor. llm may be nil, in which case Extract always
// uses the deterministic rule-based fallback.
func New(llm Completer) *Extractor {
	return &Extractor{llm: llm}
}

// Extract produces claims for one evidence record, mutating evidence in
// place to attach its extraction result (callers persist that via C2).
func (e *Extractor) Extract(ctx context.Context, subject string, evidence *models.Evidence) []models.Claim {
	if evidence.Extraction != nil {
		return claimsFromExtraction(subject, evidence, evidence.Extraction, "extracted:ai")
	}

	extraction, ok := e.extractViaLLM(ctx, subject, evidence)
	if !ok {
		if e.llm != nil {
			return nil
		}
		extraction = ruleBasedExtraction(evidence)
		evidence.Extraction = extraction
		return claimsFromExtraction(subject, evidence, extraction, "extracted:rule")
	}

	evidence.Extraction = extraction
	return claimsFromExtraction(subject, evidence, extraction, "extracted:ai")
}

func (e *Extractor) extractViaLLM(ctx context.Context, subject string, evidence *models.Evidence) (*models.Extraction, bool) {
	if e.llm == nil {
		return nil, false
	}

	prompt := fmt.Sprintf("Subject: %s\nSource: %s\nEvidence (%s):\n%s", subject, evidence.Source, evidence.ContentKind, evidence.Content)
	raw, err := e.llm.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Temperature:  0.1,
		MaxTokens:    1000,
	})
	if err != nil {
		slog.Warn("extractor: llm call failed, yielding zero claims for this evidence", "source", evidence.Source, "error", err)
		return nil, false
	}

	var extraction models.Extraction
	if err := extractJSONObject(raw, &extraction); err != nil {
		slog.Warn("extractor: llm output not parseable, yielding zero claims for this evidence", "source", evidence.Source, "error", err)
		return nil, false
	}
	return &extraction, true
}

// extractJSONObject is duplicated in shape from llmclient.ExtractJSONObject
// to keep this package's only dependency on the LLM layer at the narrow
// Completer interface; callers that already have an *llmclient.Client pass
// it through an adapter that satisfies Completer.
func extractJSONObject(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start, end := -1, -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start = i
			break
		}
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '}' {
			end = i
			break
		}
	}
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object found in LLM response")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func claimsFromExtraction(subject string, evidence *models.Evidence, extraction *models.Extraction, tag string) []models.Claim {
	now := time.Now().UTC()
	claims := make([]models.Claim, 0, len(extraction.Claims))
	for _, c := range extraction.Claims {
		claims = append(claims, models.Claim{
			Subject:        subject,
			Predicate:      c.Predicate,
			Object:         c.Object,
			Confidence:     c.Confidence,
			FirstSeenAt:    now,
			LastVerifiedAt: now,
			Provenance: models.Provenance{
				Source:      evidence.Source,
				EvidenceID:  evidence.ID,
				ExtractedAt: now,
			},
			PolicyTags: []string{tag},
		})
	}
	return claims
}

// ruleBasedExtraction emits claims directly from a profile-shaped JSON
// evidence payload when no LLM is configured at all.
func ruleBasedExtraction(evidence *models.Evidence) *models.Extraction {
	extraction := &models.Extraction{}
	if evidence.ContentKind != models.ContentKindJSON {
		return extraction
	}

	var raw any
	if err := json.Unmarshal([]byte(evidence.Content), &raw); err != nil {
		return extraction
	}
	profile, err := scraper.DecodeProfile(raw)
	if err != nil {
		return extraction
	}

	add := func(predicate, object string) {
		if object == "" {
			return
		}
		extraction.Claims = append(extraction.Claims, models.ExtractionCandidate{
			Predicate: predicate, Object: object, Confidence: 0.99,
		})
	}

	if profile.Name != "" {
		extraction.Entities = append(extraction.Entities, profile.Name)
		add(models.PredicateHasName, profile.Name)
	}
	add(models.PredicateWorksAt, profile.CurrentCompanyName)
	if len(profile.Experience) > 0 {
		add(models.PredicateHasTitle, profile.Experience[0].Title)
	}
	add(models.PredicateLocatedIn, locationOf(profile))
	add(models.PredicateHasAbout, profile.About)
	if len(profile.Education) > 0 {
		add(models.PredicateGraduatedFrom, profile.Education[0].Title)
	}
	if profile.Followers > 0 {
		add(models.PredicateHasFollowers, fmt.Sprintf("%d", profile.Followers))
	}
	if profile.Connections > 0 {
		add(models.PredicateHasConnections, fmt.Sprintf("%d", profile.Connections))
	}

	return extraction
}

func locationOf(p *scraper.Profile) string {
	if p.City != "" && p.CountryCode != "" {
		return fmt.Sprintf("%s, %s", p.City, p.CountryCode)
	}
	if p.City != "" {
		return p.City
	}
	return p.CountryCode
}
