// Package harvester decides which scraper calls to make for a subject and
// turns their results into durable Evidence records (C4).
package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/scraper"
)

// maxEnrichmentCalls bounds the extra ScrapeProfile calls made for
// search-query subjects once the primary search result is in hand.
const maxEnrichmentCalls = 5

// ScraperClient is the subset of *scraper.Client the harvester depends on,
// narrowed to an interface so tests can substitute a fake.
type ScraperClient interface {
	ScrapeProfile(ctx context.Context, url string) (*scraper.Record, error)
	ScrapeCompany(ctx context.Context, url string) (*scraper.Record, error)
	SearchProfiles(ctx context.Context, firstName, lastName string) (*scraper.Record, error)
	WebSearch(ctx context.Context, query string) (*scraper.Record, error)
}

// Harvester implements C4's Harvest contract against a scraper client.
type Harvester struct {
	client ScraperClient
}

// New builds a Harvester.
func New(client ScraperClient) *Harvester {
	return &Harvester{client: client}
}

// Harvest decides which provider calls to make for subject given inputKind
// and a remaining-call budget, and returns the Evidence records produced.
// A failed individual provider call is logged and skipped; Harvest never
// returns an error for per-item failures. It does return an error when the
// policy itself cannot be satisfied (e.g. a search query with fewer than
// two tokens).
func (h *Harvester) Harvest(ctx context.Context, subject string, inputKind models.InputKind, budget int) ([]models.Evidence, error) {
	if budget < 1 {
		return nil, fmt.Errorf("harvest budget must be at least 1, got %d", budget)
	}

	var evidence []models.Evidence
	calls := 0

	record := func(source string, raw any) {
		ev, err := toEvidence(subject, source, raw)
		if err != nil {
			slog.Warn("harvester: failed to serialize provider record, skipping", "source", source, "error", err)
			return
		}
		evidence = append(evidence, *ev)
	}

	if IsDirectProfileURL(subject) {
		calls++
		rec, err := h.client.ScrapeProfile(ctx, subject)
		if err != nil {
			slog.Warn("harvester: scrape profile failed, skipping", "subject", subject, "error", err)
		} else {
			record(subject, rec.Raw)
			h.enrichCompany(ctx, subject, subject, rec.Raw, &calls, budget, &evidence)
		}
		return evidence, nil
	}

	firstName, lastName, ok := splitName(subject)
	if !ok {
		return nil, fmt.Errorf("search-query subject %q must contain at least first and last name", subject)
	}

	if calls < budget {
		calls++
		webRec, err := h.client.WebSearch(ctx, subject)
		if err != nil {
			slog.Warn("harvester: web search failed, skipping", "subject", subject, "error", err)
		} else {
			record("provider://web-search", webRec.Raw)
		}
	}

	if calls < budget {
		calls++
		searchRec, err := h.client.SearchProfiles(ctx, firstName, lastName)
		if err != nil {
			slog.Warn("harvester: search profiles failed, skipping", "subject", subject, "error", err)
		} else {
			record("provider://search", searchRec.Raw)

			profiles, err := scraper.DecodeProfileList(searchRec.Raw)
			if err != nil {
				slog.Warn("harvester: could not decode search results, skipping profile fan-out", "error", err)
			} else {
				for i := 0; i < len(profiles) && i < maxEnrichmentCalls && calls < budget; i++ {
					url := profiles[i].URL
					if url == "" {
						continue
					}
					calls++
					profRec, err := h.client.ScrapeProfile(ctx, url)
					if err != nil {
						slog.Warn("harvester: scrape profile failed during fan-out, skipping", "url", url, "error", err)
						continue
					}
					record(url, profRec.Raw)
				}
			}
		}
	}

	return evidence, nil
}

// enrichCompany optionally fetches a company page referenced by a freshly
// scraped profile, if budget remains. Never fails the harvest.
func (h *Harvester) enrichCompany(ctx context.Context, subject, subjectURL string, raw any, calls *int, budget int, evidence *[]models.Evidence) {
	if *calls >= budget {
		return
	}
	profile, err := scraper.DecodeProfile(raw)
	if err != nil || profile.CurrentCompanyName == "" {
		return
	}
	companyURL := companyURLFor(profile.CurrentCompanyName)
	if companyURL == "" || companyURL == subjectURL {
		return
	}

	*calls++
	rec, err := h.client.ScrapeCompany(ctx, companyURL)
	if err != nil {
		slog.Debug("harvester: company enrichment failed, skipping", "company", profile.CurrentCompanyName, "error", err)
		return
	}
	ev, err := toEvidence(subject, companyURL, rec.Raw)
	if err != nil {
		slog.Debug("harvester: failed to serialize company record, skipping", "error", err)
		return
	}
	*evidence = append(*evidence, *ev)
}

func toEvidence(subject, source string, raw any) (*models.Evidence, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal provider record: %w", err)
	}
	content := string(body)
	return &models.Evidence{
		ID:          "",
		Subject:     subject,
		Source:      source,
		CollectedAt: time.Now().UTC(),
		Content:     content,
		ContentKind: models.ContentKindJSON,
		Hash:        models.HashContent(content),
	}, nil
}

// IsDirectProfileURL recognizes a direct profile or company URL by the
// presence of the known path segments, per the §4.4 policy. Exported so
// callers deciding a run's InputKind (e.g. pkg/queue) apply the exact same
// URL-pattern test the harvester itself uses, rather than a second,
// possibly-drifting copy of the rule.
func IsDirectProfileURL(subject string) bool {
	return strings.Contains(subject, "/in/") || strings.Contains(subject, "/company/")
}

// splitName splits a free-text subject on whitespace into first/last name.
// Extra tokens beyond the second are folded into the last name.
func splitName(subject string) (first, last string, ok bool) {
	fields := strings.Fields(subject)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], strings.Join(fields[1:], " "), true
}

// companyURLFor derives a synthetic company URL from a company name. The
// scraper provider accepts company slugs under the same /company/ path
// convention as direct profile subjects.
func companyURLFor(name string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
	if slug == "" {
		return ""
	}
	return "https://www.linkedin.com/company/" + slug
}
