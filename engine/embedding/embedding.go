// Package embedding owns the process-wide embedding model handle. A Provider
// is built once at startup and passed to the ingest and rag orchestrators.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/WessleyAI/patent-search/pkg/fn"
	"github.com/WessleyAI/patent-search/pkg/ollama"
	"github.com/WessleyAI/patent-search/pkg/openai"
)

// Backend names accepted by Config.Backend.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// ErrDimensions is returned when a vector's length differs from Config.Dims.
var ErrDimensions = errors.New("embedding: dimension mismatch")

// Client is the single-text embedding call both backends implement.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures the backend.
type Config struct {
	Backend   string // ollama | openai
	OllamaURL string
	BaseURL   string // OpenAI-compatible endpoint
	APIKey    string
	Model     string
	Dims      int // 0 disables the length check
	Retry     fn.RetryOpts
}

// Provider embeds text with bounded retry and a dimension check.
type Provider struct {
	client Client
	dims   int
	retry  fn.RetryOpts
}

// New builds the Provider for cfg.
func New(cfg Config) (*Provider, error) {
	var client Client
	switch strings.ToLower(cfg.Backend) {
	case "", BackendOllama:
		if cfg.OllamaURL == "" {
			return nil, errors.New("embedding: ollama url is required")
		}
		client = ollama.NewEmbedClient(cfg.OllamaURL, cfg.Model)
	case BackendOpenAI:
		e, err := openai.NewEmbedder(openai.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		client = e
	default:
		return nil, fmt.Errorf("embedding: unknown backend %q", cfg.Backend)
	}
	return NewWithClient(client, cfg.Dims, cfg.Retry), nil
}

// NewWithClient wraps an existing client. A zero retry means a single attempt.
func NewWithClient(client Client, dims int, retry fn.RetryOpts) *Provider {
	if retry.MaxAttempts < 1 {
		retry = fn.NoRetry
	}
	if retry.Retryable == nil {
		retry.Retryable = retryable
	}
	return &Provider{client: client, dims: dims, retry: retry}
}

// Dims returns the expected vector length, 0 when unchecked.
func (p *Provider) Dims() int { return p.dims }

// Embed returns the vector for text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := fn.RetryCall(ctx, p.retry, func(ctx context.Context) ([]float32, error) {
		return p.client.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	if p.dims > 0 && len(vec) != p.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensions, len(vec), p.dims)
	}
	return vec, nil
}

// retryable skips retries for answers that will not change on a second try.
func retryable(err error) bool {
	var se *ollama.StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	return true
}
