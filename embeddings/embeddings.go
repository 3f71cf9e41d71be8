// Package embeddings turns course text into fixed-dimension vectors for the
// catalog and content collections.
package embeddings

import (
	"context"
	"fmt"

	"github.com/coursemat/course-agent/config"
)

// Embedder produces one vector per input text, in input order. Course titles
// and content chunks go through the same embedder so catalog resolution and
// content search share a vector space.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options carries the provider settings an embedder needs. Dimension, when
// positive, is enforced against every returned vector so a misconfigured
// model is caught before vectors reach the store.
type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewEmbedder selects the embedding backend from configuration.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("embeddings provider %q requires OPENAI_API_KEY", opts.Provider)
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("embeddings provider %q is not supported, want %q or %q",
			opts.Provider, config.ProviderOllama, config.ProviderOpenAI)
	}
}
