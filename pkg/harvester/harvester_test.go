package harvester_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborcode/profilescope/pkg/harvester"
	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/scraper"
)

type fakeScraper struct {
	profileByURL   map[string]*scraper.Record
	profileErr     map[string]error
	company        *scraper.Record
	companyErr     error
	search         *scraper.Record
	searchErr      error
	webSearch      *scraper.Record
	webSearchErr   error
	searchCalls    int
	profileCalls   int
	companyCalls   int
	webSearchCalls int
}

func (f *fakeScraper) ScrapeProfile(_ context.Context, url string) (*scraper.Record, error) {
	f.profileCalls++
	if err, ok := f.profileErr[url]; ok {
		return nil, err
	}
	return f.profileByURL[url], nil
}

func (f *fakeScraper) ScrapeCompany(_ context.Context, url string) (*scraper.Record, error) {
	f.companyCalls++
	if f.companyErr != nil {
		return nil, f.companyErr
	}
	return f.company, nil
}

func (f *fakeScraper) SearchProfiles(_ context.Context, firstName, lastName string) (*scraper.Record, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search, nil
}

func (f *fakeScraper) WebSearch(_ context.Context, query string) (*scraper.Record, error) {
	f.webSearchCalls++
	if f.webSearchErr != nil {
		return nil, f.webSearchErr
	}
	return f.webSearch, nil
}

func TestHarvest_DirectProfileURL(t *testing.T) {
	url := "https://www.linkedin.com/in/janedoe"
	fake := &fakeScraper{
		profileByURL: map[string]*scraper.Record{
			url: {Raw: map[string]any{"name": "Jane Doe", "linkedin_id": "janedoe"}},
		},
	}
	h := harvester.New(fake)

	evidence, err := h.Harvest(context.Background(), url, models.InputKindDirectURL, 5)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, url, evidence[0].Source)
	assert.Equal(t, models.ContentKindJSON, evidence[0].ContentKind)
	assert.Equal(t, 1, fake.profileCalls)
	assert.Equal(t, 0, fake.searchCalls)
}

func TestHarvest_SearchQuery_FansOutToProfiles(t *testing.T) {
	fake := &fakeScraper{
		webSearch: &scraper.Record{Raw: map[string]any{"snippets": []any{"Jane Doe is an engineer"}}},
		search: &scraper.Record{Raw: []any{
			map[string]any{"url": "https://www.linkedin.com/in/janedoe"},
			map[string]any{"url": "https://www.linkedin.com/in/janedoe2"},
		}},
		profileByURL: map[string]*scraper.Record{
			"https://www.linkedin.com/in/janedoe":  {Raw: map[string]any{"name": "Jane Doe"}},
			"https://www.linkedin.com/in/janedoe2": {Raw: map[string]any{"name": "Jane Doe Two"}},
		},
	}
	h := harvester.New(fake)

	evidence, err := h.Harvest(context.Background(), "Jane Doe", models.InputKindSearchQuery, 10)
	require.NoError(t, err)
	// one web-search, one search call, two fanned-out profiles
	assert.Len(t, evidence, 4)
	assert.Equal(t, 1, fake.webSearchCalls)
	assert.Equal(t, 1, fake.searchCalls)
	assert.Equal(t, 2, fake.profileCalls)
}

func TestHarvest_SearchQuery_RequiresTwoTokens(t *testing.T) {
	h := harvester.New(&fakeScraper{})
	_, err := h.Harvest(context.Background(), "Madonna", models.InputKindSearchQuery, 5)
	assert.Error(t, err)
}

func TestHarvest_BudgetBoundsFanOut(t *testing.T) {
	var results []any
	urls := []string{}
	for i := 0; i < 5; i++ {
		url := "https://www.linkedin.com/in/person" + string(rune('a'+i))
		urls = append(urls, url)
		results = append(results, map[string]any{"url": url})
	}
	profileByURL := map[string]*scraper.Record{}
	for _, u := range urls {
		profileByURL[u] = &scraper.Record{Raw: map[string]any{"name": u}}
	}

	fake := &fakeScraper{
		webSearch:    &scraper.Record{Raw: map[string]any{"snippets": []any{"some context"}}},
		search:       &scraper.Record{Raw: results},
		profileByURL: profileByURL,
	}
	h := harvester.New(fake)

	// budget 1 is consumed entirely by the web-search call, leaving no room
	// for SearchProfiles or any profile fan-out.
	evidence, err := h.Harvest(context.Background(), "Jane Doe", models.InputKindSearchQuery, 1)
	require.NoError(t, err)
	assert.Len(t, evidence, 1, "only the web-search evidence should be produced when budget is exhausted")
	assert.Equal(t, 1, fake.webSearchCalls)
	assert.Equal(t, 0, fake.searchCalls)
	assert.Equal(t, 0, fake.profileCalls)
}

func TestHarvest_PerItemFailureIsAbsorbed(t *testing.T) {
	url := "https://www.linkedin.com/in/janedoe"
	fake := &fakeScraper{
		profileErr: map[string]error{url: errors.New("provider unavailable")},
	}
	h := harvester.New(fake)

	evidence, err := h.Harvest(context.Background(), url, models.InputKindDirectURL, 5)
	require.NoError(t, err, "a failed provider call must not fail Harvest itself")
	assert.Empty(t, evidence)
}

func TestHarvest_CompanyEnrichment(t *testing.T) {
	url := "https://www.linkedin.com/in/janedoe"
	fake := &fakeScraper{
		profileByURL: map[string]*scraper.Record{
			url: {Raw: map[string]any{"name": "Jane Doe", "current_company_name": "Acme Corp"}},
		},
		company: &scraper.Record{Raw: map[string]any{"name": "Acme Corp"}},
	}
	h := harvester.New(fake)

	evidence, err := h.Harvest(context.Background(), url, models.InputKindDirectURL, 5)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	assert.Equal(t, 1, fake.companyCalls)
	assert.Contains(t, evidence[1].Source, "acme-corp")
}
