// Package openai embeds text through any OpenAI-compatible embeddings API
// using langchaingo.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyEmbedding is returned when the API answers with no vector.
var ErrEmptyEmbedding = errors.New("openai embed: empty embedding")

// Config selects the endpoint and model.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Embedder wraps a langchaingo embedder.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// NewEmbedder creates an embedder for cfg. An empty APIKey is sent as
// "none" so local OpenAI-compatible servers accept the request.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai embed: model is required")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai embed: client: %w", err)
	}

	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("openai embed: embedder: %w", err)
	}
	return &Embedder{
		embedder: e,
		model:    cfg.Model,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// Model returns the configured model name.
func (e *Embedder) Model() string { return e.model }

// Embed generates the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding", "length", len(text))

	vecs, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vecs[0], nil
}
