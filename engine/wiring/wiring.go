// Package wiring builds the engine services from a config.Config so every
// binary connects to the stores the same way.
package wiring

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/patent-search/engine/embedding"
	"github.com/WessleyAI/patent-search/engine/graph"
	"github.com/WessleyAI/patent-search/engine/ingest"
	"github.com/WessleyAI/patent-search/engine/semantic"
	"github.com/WessleyAI/patent-search/engine/summarize"
	"github.com/WessleyAI/patent-search/pkg/config"
	"github.com/WessleyAI/patent-search/pkg/fn"
	"github.com/WessleyAI/patent-search/pkg/metrics"
	"github.com/WessleyAI/patent-search/pkg/natsutil"
	"github.com/WessleyAI/patent-search/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Embedder builds the process-wide embedding provider.
func Embedder(cfg config.Config) (*embedding.Provider, error) {
	return embedding.New(embedding.Config{
		Backend:   cfg.EmbedBackend,
		OllamaURL: cfg.OllamaURL,
		BaseURL:   cfg.OpenAIBaseURL,
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.EmbedModel,
		Dims:      cfg.EmbedDims,
		Retry:     fn.DefaultRetry,
	})
}

// VectorStore connects to the Qdrant collection.
func VectorStore(cfg config.Config, logger *slog.Logger) (*semantic.VectorStore, error) {
	return semantic.New(cfg.QdrantURL, cfg.Collection,
		semantic.WithAPIKey(cfg.QdrantAPIKey),
		semantic.WithTLS(cfg.QdrantTLS),
		semantic.WithLogger(logger),
	)
}

// SummarizerOptions returns the summarization defaults with the Groq
// endpoint settings of cfg applied.
func SummarizerOptions(cfg config.Config) summarize.Options {
	opts := summarize.DefaultOptions()
	opts.BaseURL = cfg.GroqBaseURL
	opts.APIKey = cfg.GroqAPIKey
	opts.Model = cfg.GroqModel
	opts.RPM = cfg.LLMRPM
	return opts
}

// Summarizer builds the LLM summarization client.
func Summarizer(cfg config.Config, m *metrics.Pipeline, logger *slog.Logger) *summarize.Client {
	return summarize.New(SummarizerOptions(cfg), m, logger)
}

// FamilyGraph connects to Neo4j when NEO4J_URL is set. It returns nil, with
// a logged warning, when unset or unreachable.
func FamilyGraph(ctx context.Context, cfg config.Config, logger *slog.Logger) (*graph.FamilyGraph, func()) {
	if cfg.Neo4jURL == "" {
		return nil, func() {}
	}
	driver, err := graph.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Warn("wiring: family graph disabled", "error", err)
		return nil, func() {}
	}
	g := graph.New(driver)
	if err := g.EnsureConstraints(ctx); err != nil {
		logger.Warn("wiring: graph constraints", "error", err)
	}
	return g, closeDriver(driver)
}

func closeDriver(d neo4j.DriverWithContext) func() {
	return func() { d.Close(context.Background()) }
}

// Events connects the ingestion event publisher when NATS_URL is set. It
// returns nil, with a logged warning, when unset or unreachable.
func Events(cfg config.Config, logger *slog.Logger) *natsutil.Publisher[ingest.FileEvent] {
	if cfg.NATSURL == "" {
		return nil
	}
	nc, err := natsutil.Connect(cfg.NATSURL, "patent-ingest", logger)
	if err != nil {
		logger.Warn("wiring: ingestion events disabled", "error", err)
		return nil
	}
	return natsutil.NewPublisher[ingest.FileEvent](nc, cfg.NATSSubject)
}

// Tracing installs the tracer provider for service. Export is enabled by
// OTEL_EXPORTER_OTLP_ENDPOINT; a setup failure is logged and leaves spans as
// no-ops. The returned func flushes pending spans.
func Tracing(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) func() {
	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: service,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRate:  cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Warn("wiring: tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("wiring: tracer shutdown", "error", err)
		}
	}
}
