// Package llmclient is the HTTP client for the extraction/synthesis LLM
// provider (§6). It is a thin, replaceable dependency: both callers
// (extractor, synthesizer) have deterministic fallbacks for when this
// client is nil or returns an error.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config configures a Client against an OpenAI-compatible Chat Completions
// endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Client calls a single chat-completions-shaped LLM endpoint and returns the
// raw text of the first choice. Callers are responsible for parsing that
// text as JSON per their own expected schema.
type Client struct {
	cfg Config
}

// NewClient builds a Client. Returns nil if baseURL or apiKey is empty,
// since an unconfigured LLM is a valid deployment (deterministic fallbacks
// take over everywhere this client would have been used).
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

// CompletionRequest is one chat-completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one chat-completion call and returns the raw assistant
// text. It does not interpret the text as JSON — callers own that.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("llm provider error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("llm provider returned no choices")
	}

	slog.Debug("llm completion succeeded", "model", c.cfg.Model, "response_chars", len(cr.Choices[0].Message.Content))
	return cr.Choices[0].Message.Content, nil
}

// ExtractJSONObject unmarshals s into v, or, if s is not valid JSON as a
// whole, the span from the first '{' to the last '}' in s. LLM responses are
// occasionally wrapped in prose or markdown code fences; this tolerates
// both. A response holding more than one separate object fails to parse.
func ExtractJSONObject(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := indexByte(s, '{')
	end := lastIndexByte(s, '}')
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object found in LLM response")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
