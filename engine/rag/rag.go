// Package rag answers a patent query: it embeds the query, finds the nearest
// chunks, hydrates their rows from the relational store and summarizes each
// row's description.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/WessleyAI/patent-search/engine/semantic"
	"github.com/WessleyAI/patent-search/engine/store"
	"github.com/WessleyAI/patent-search/pkg/fn"
	"github.com/WessleyAI/patent-search/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrEmbedQuery wraps a failure to embed the query text.
var ErrEmbedQuery = errors.New("rag: embed query")

// DefaultTopK is the number of nearest chunks retrieved per query.
const DefaultTopK = 3

// Embedder converts the query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts the vector index query.
type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]semantic.Match, error)
}

// RowFetcher hydrates chunk rows by vector id, in any order.
type RowFetcher interface {
	FetchByIDs(ctx context.Context, ids []string) ([]store.ChunkRow, error)
}

// Summarizer produces a summary and never fails.
type Summarizer interface {
	Summarize(ctx context.Context, description string) string
}

// Options configures the query path.
type Options struct {
	TopK  int
	Retry fn.RetryOpts // around the vector index query
}

// DefaultOptions returns top-k 3 with the default bounded retry.
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, Retry: fn.DefaultRetry}
}

// Result is one ranked answer.
type Result struct {
	PatentNumber string `json:"patent_number"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
}

// Service is the query orchestration service.
type Service struct {
	embed     Embedder
	search    Searcher
	rows      RowFetcher
	summarize Summarizer
	opts      Options
	metrics   *metrics.Pipeline
	logger    *slog.Logger
}

// New creates a Service.
func New(embed Embedder, search Searcher, rows RowFetcher, summarize Summarizer, opts Options, m *metrics.Pipeline, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewPipeline(metrics.New())
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Service{
		embed:     embed,
		search:    search,
		rows:      rows,
		summarize: summarize,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// Search returns one result per hydrated row in vector-search rank order.
// An empty slice with a nil error means nothing matched; this includes a
// failing vector index, which is logged rather than returned.
func (s *Service) Search(ctx context.Context, query string) ([]Result, error) {
	ctx, span := otel.Tracer("rag").Start(ctx, "rag.search")
	defer span.End()
	start := time.Now()
	defer s.metrics.SearchSeconds.Since(start)

	results, err := s.run(ctx, query)
	switch {
	case err != nil:
		s.metrics.SearchErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(results) == 0:
		s.metrics.SearchNotFound.Inc()
	default:
		s.metrics.Searches.Inc()
	}
	span.SetAttributes(attribute.Int("rag.results", len(results)))
	return results, err
}

func (s *Service) run(ctx context.Context, query string) ([]Result, error) {
	query, err := domain.ValidateQuery(query)
	if err != nil {
		return nil, err
	}

	s.logger.Info("rag: embedding query", "query_len", len(query))
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedQuery, err)
	}

	matches, err := fn.RetryCall(ctx, s.opts.Retry, func(ctx context.Context) ([]semantic.Match, error) {
		return s.search.Query(ctx, vec, s.opts.TopK)
	})
	if err != nil {
		s.logger.Error("rag: vector search failed, returning no results", "error", err)
		return nil, nil
	}
	ids := fn.Map(matches, func(m semantic.Match) string { return m.ID })
	s.logger.Info("rag: search done", "matches", len(matches), "ids", ids)
	if len(matches) == 0 {
		return nil, nil
	}

	rows, err := s.rows.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("rag: hydrate %d ids: %w", len(ids), err)
	}
	byID := fn.IndexBy(rows, func(r store.ChunkRow) string { return r.VectorID })

	results := make([]Result, 0, len(rows))
	for _, m := range matches {
		row, ok := byID[m.ID]
		if !ok {
			s.metrics.OrphanVectors.Inc()
			s.logger.Warn("rag: match has no stored row", "vector_id", m.ID, "patent_number", m.PatentNumber)
			continue
		}
		results = append(results, Result{
			PatentNumber: row.PatentNumber,
			Title:        row.Title,
			Summary:      s.summarize.Summarize(ctx, row.Description),
		})
	}
	return results, nil
}
