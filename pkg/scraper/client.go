// Package scraper implements the trigger/snapshot/wait protocol against the
// external scraping provider (§4.1, §6). It is a pure effect layer: it never
// calls back into the harvester or orchestrator.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Timing defaults derived from observed provider behavior (§9). Kept
// configurable; callers in tests shrink these.
const (
	DefaultInitialDelay  = 15 * time.Second
	DefaultPollInterval  = 30 * time.Second
	DefaultPollBudget    = 15 * time.Minute
)

// Config configures a Client.
type Config struct {
	BaseURL      string
	Token        string
	DatasetID    string
	InitialDelay time.Duration
	PollInterval time.Duration
	PollBudget   time.Duration
	HTTPClient   *http.Client
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = DefaultPollBudget
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return cfg
}

// Client talks to the external scraping provider. Operations are
// independent; the client holds no global mutex. Callers bound fan-out.
type Client struct {
	cfg Config
}

// NewClient builds a Client from Config, applying the §4.1/§9 timing
// defaults for any zero-valued duration field.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

// FailureKind classifies a scraper Failure per the §7 error taxonomy.
type FailureKind string

const (
	FailureUnavailable FailureKind = "scraper_unavailable"
	FailureTimeout     FailureKind = "scraper_timeout"
	FailureMalformed   FailureKind = "scraper_malformed"
)

// Failure is the typed failure returned by scraper operations.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Record is a decoded structured record returned by a successful scrape.
// Raw holds the full decoded JSON value (object or array) exactly as
// received, so the harvester can re-serialize it verbatim into Evidence.
type Record struct {
	Raw any
}

// triggerResponse is the minimal shape the trigger endpoint must return.
type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
	Error      string `json:"error"`
}

// pollEnvelope is the wrapped poll response shape. When the provider skips
// the envelope and returns the payload directly, json.Unmarshal into this
// struct fails or leaves Status empty; callers fall back to raw decoding.
type pollEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
	Error  string `json:"error"`
}

// ScrapeProfile triggers and waits for a single profile scrape job.
func (c *Client) ScrapeProfile(ctx context.Context, profileURL string) (*Record, error) {
	return c.run(ctx, []map[string]any{{"url": profileURL}})
}

// ScrapeCompany triggers and waits for a single company scrape job. Same
// protocol as ScrapeProfile; kept as a distinct method per the C1 contract
// so callers (and tests) can distinguish company enrichment calls from
// profile calls in logs and budget accounting.
func (c *Client) ScrapeCompany(ctx context.Context, companyURL string) (*Record, error) {
	return c.run(ctx, []map[string]any{{"url": companyURL}})
}

// SearchProfiles triggers and waits for a name search job.
func (c *Client) SearchProfiles(ctx context.Context, firstName, lastName string) (*Record, error) {
	return c.run(ctx, []map[string]any{{"first_name": firstName, "last_name": lastName}})
}

// WebSearch triggers and waits for a general web-search job against a free
// text query. Same trigger/snapshot/wait protocol as the other operations;
// distinct only in its input shape.
func (c *Client) WebSearch(ctx context.Context, query string) (*Record, error) {
	return c.run(ctx, []map[string]any{{"query": query}})
}

// run executes the full trigger/snapshot/wait protocol for one input.
func (c *Client) run(ctx context.Context, input []map[string]any) (*Record, error) {
	snapshotID, err := c.trigger(ctx, input)
	if err != nil {
		return nil, err
	}

	select {
	case <-time.After(c.cfg.InitialDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.pollUntilDone(ctx, snapshotID)
}

func (c *Client) trigger(ctx context.Context, input []map[string]any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", &Failure{Kind: FailureMalformed, Message: err.Error()}
	}

	u := fmt.Sprintf("%s/datasets/v3/trigger?dataset_id=%s&include_errors=true",
		c.cfg.BaseURL, url.QueryEscape(c.cfg.DatasetID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", &Failure{Kind: FailureUnavailable, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", &Failure{Kind: FailureUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Failure{
			Kind:    FailureUnavailable,
			Message: fmt.Sprintf("trigger returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var tr triggerResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", &Failure{Kind: FailureMalformed, Message: "trigger response was not valid JSON: " + err.Error()}
	}
	if tr.SnapshotID == "" {
		msg := tr.Error
		if msg == "" {
			msg = "trigger response missing snapshot_id"
		}
		return "", &Failure{Kind: FailureUnavailable, Message: msg}
	}

	slog.Debug("scraper trigger succeeded", "snapshot_id", tr.SnapshotID)
	return tr.SnapshotID, nil
}

func (c *Client) pollUntilDone(ctx context.Context, snapshotID string) (*Record, error) {
	deadline := time.Now().Add(c.cfg.PollBudget)

	for {
		if time.Now().After(deadline) {
			return nil, &Failure{Kind: FailureTimeout, Message: "polling budget exceeded"}
		}

		record, done, retryable, err := c.pollOnce(ctx, snapshotID)
		if err != nil && !retryable {
			return nil, err
		}
		if done {
			return record, nil
		}

		select {
		case <-time.After(c.cfg.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// pollOnce issues one GET /snapshot/{id} and interprets the result per the
// §4.1 state table. retryable distinguishes "keep polling" from a fatal
// error on non-retryable HTTP failures (there are none on poll per spec —
// non-2xx is retried — but the signature keeps room for future distinction).
func (c *Client) pollOnce(ctx context.Context, snapshotID string) (record *Record, done bool, retryable bool, err error) {
	u := fmt.Sprintf("%s/datasets/v3/snapshot/%s", c.cfg.BaseURL, url.PathEscape(snapshotID))

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if reqErr != nil {
		return nil, false, false, &Failure{Kind: FailureUnavailable, Message: reqErr.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, doErr := c.cfg.HTTPClient.Do(req)
	if doErr != nil {
		slog.Debug("scraper poll transport error, retrying", "snapshot_id", snapshotID, "error", doErr)
		return nil, false, true, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("scraper poll non-2xx, retrying", "snapshot_id", snapshotID, "status", resp.StatusCode)
		return nil, false, true, nil
	}

	if len(bytesTrim(body)) == 0 {
		// Empty body: still pending, re-poll.
		return nil, false, true, nil
	}

	var env pollEnvelope
	envErr := json.Unmarshal(body, &env)
	if envErr == nil && env.Status != "" {
		switch env.Status {
		case "completed":
			return &Record{Raw: env.Data}, true, false, nil
		case "failed":
			msg := env.Error
			if msg == "" {
				msg = "provider reported failed status"
			}
			return nil, false, false, &Failure{Kind: FailureUnavailable, Message: msg}
		case "running", "pending":
			return nil, false, true, nil
		default:
			// Unrecognized status string: treat like "running", keep polling.
			return nil, false, true, nil
		}
	}

	// No recognizable "status" field. Per §4.1(d): if the body decodes to an
	// object or array at all (including an empty one — §8 boundary case of a
	// bare `[]`), treat it as completed; the body *is* the data.
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		// Malformed JSON on poll is retried, not fatal.
		slog.Debug("scraper poll malformed JSON, retrying", "snapshot_id", snapshotID, "error", err)
		return nil, false, true, nil
	}

	switch raw.(type) {
	case []any, map[string]any:
		return &Record{Raw: raw}, true, false, nil
	default:
		// Bare scalar/null bodies don't match "object or array"; keep polling.
		return nil, false, true, nil
	}
}

func bytesTrim(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
