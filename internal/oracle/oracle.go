// Package oracle provides similarity-oracle implementations: a Gemini
// embedding client for production and a deterministic hash-based oracle for
// tests and offline runs. Both satisfy pattern.Oracle.
package oracle

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiOracle embeds text through the Gemini embedding model.
type GeminiOracle struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

// NewGemini initializes the Gemini embedding client. If the API key is
// empty, the caller receives a nil oracle and no error so that commands can
// decide how to handle missing configuration.
func NewGemini(ctx context.Context, apiKey string) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiOracle{
		client: client,
		model:  client.EmbeddingModel("text-embedding-004"),
	}, nil
}

// Embed returns the embedding vector for text.
func (o *GeminiOracle) Embed(ctx context.Context, text string) ([]float32, error) {
	if o == nil || o.model == nil {
		return nil, fmt.Errorf("embedding oracle is not initialized")
	}
	res, err := o.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return res.Embedding.Values, nil
}

// Close releases underlying resources.
func (o *GeminiOracle) Close() {
	if o == nil || o.client == nil {
		return
	}
	if err := o.client.Close(); err != nil {
		log.Printf("warning: failed to close genai client: %v", err)
	}
}

// HashOracle derives a fixed-dimension vector from a sha256 digest of the
// normalized text. Identical texts map to identical vectors and unrelated
// texts scatter, which is enough for deterministic tests and for running
// the pipeline without network access. It is not a semantic model.
type HashOracle struct{}

// Embed returns a 32-dimension vector derived from the digest bytes.
func (HashOracle) Embed(_ context.Context, text string) ([]float32, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	vec := make([]float32, len(sum))
	for i, b := range sum {
		vec[i] = float32(b)/255.0 - 0.5
	}
	return vec, nil
}
