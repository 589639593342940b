// Package vectorstore is the best-effort embedding index (C3): nothing it
// does is authoritative, and every operation is non-fatal to the caller.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log/slog"
	"math"

	"google.golang.org/genai"
)

// Dimensions is the fixed embedding width used throughout the vector store.
const Dimensions = 768

// maxEmbedChars truncates text before embedding, matching the teacher
// corpus's own batching/size caps on embedding calls.
const maxEmbedChars = 5000

// Embedder produces a fixed-dimension vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenAIEmbedder embeds text via google.golang.org/genai's EmbedContent,
// grounded on the corpus's own GenAI embedding engine (same SDK and call
// shape, pinned to Dimensions instead of 3072).
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder builds a GenAIEmbedder. Returns (nil, nil) if apiKey is
// empty: an unconfigured embedder is not an error, and the caller decides
// what to do (cmd/profilescope then runs without a vector store).
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, nil
	}
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

func truncate(text string) string {
	if len(text) > maxEmbedChars {
		return text[:maxEmbedChars]
	}
	return text
}

// Embed calls the GenAI embedding endpoint for a single text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text)
	dim := int32(Dimensions)
	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, errNoEmbeddings
	}
	return result.Embeddings[0].Values, nil
}

var errNoEmbeddings = embedError("genai returned no embeddings")

type embedError string

func (e embedError) Error() string { return string(e) }

// DeterministicEmbedder hashes text into a stable, dimensionally-valid
// vector with no semantic meaning. It keeps the pipeline fully functional
// offline, the same replaceable-dependency posture as llmclient's fallback
// paths for extraction and synthesis.
type DeterministicEmbedder struct{}

// Embed derives Dimensions float32 values from repeated SHA-256 hashing of
// text, normalized to unit length so cosine comparisons stay well-defined.
func (DeterministicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	text = truncate(text)
	vec := make([]float32, Dimensions)
	seed := []byte(text)
	block := sha256.Sum256(seed)
	for i := 0; i < Dimensions; i++ {
		if i > 0 && i%32 == 0 {
			block = sha256.Sum256(block[:])
		}
		b := block[i%32]
		v := binary.BigEndian.Uint32([]byte{b, block[(i+1)%32], block[(i+2)%32], block[(i+3)%32]})
		vec[i] = float32(v%2000)/1000.0 - 1.0
	}
	normalize(vec)
	return vec, nil
}

func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// Embed chooses the configured embedder, logging and falling back to the
// deterministic embedder on any failure — embedding is never fatal.
func (s *Store) Embed(ctx context.Context, text string) []float32 {
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err == nil {
			return vec
		}
		slog.Warn("vector store embedding failed, falling back to deterministic embedder", "error", err)
	}
	vec, _ := DeterministicEmbedder{}.Embed(ctx, text)
	return vec
}
