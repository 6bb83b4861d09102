// Package main implements the patent search API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/WessleyAI/patent-search/engine/rag"
	"github.com/WessleyAI/patent-search/engine/store"
	"github.com/WessleyAI/patent-search/engine/wiring"
	"github.com/WessleyAI/patent-search/pkg/config"
	"github.com/WessleyAI/patent-search/pkg/metrics"
	"github.com/WessleyAI/patent-search/pkg/mid"
)

const notFoundDetail = "No relevant patents found."

// maxBody bounds POST /search bodies.
const maxBody = 64 << 10

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer wiring.Tracing(ctx, cfg, "patent-api", logger)()

	reg := metrics.New()
	m := metrics.NewPipeline(reg)

	embedder, err := wiring.Embedder(cfg)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	vectorStore, err := wiring.VectorStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	svc := rag.New(
		embedder,
		vectorStore,
		store.OnDemand{Path: cfg.SQLitePath},
		wiring.Summarizer(cfg, m, logger),
		rag.DefaultOptions(),
		m,
		logger,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(svc, reg, cfg.CORSOrigin, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Each result is summarized by a separate LLM call.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "collection", cfg.Collection, "sqlite", cfg.SQLitePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// searcher is the query orchestrator as seen by the handlers.
type searcher interface {
	Search(ctx context.Context, query string) ([]rag.Result, error)
}

func newHandler(svc searcher, reg *metrics.Registry, corsOrigin string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /search", handleSearch(svc, logger))
	mux.Handle("GET /metrics", reg.Handler())

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(corsOrigin),
		mid.MaxBody(maxBody),
		mid.OTel("patent-api"),
	)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the JSON response for POST /search.
type SearchResponse struct {
	Query   string       `json:"query"`
	Results []rag.Result `json:"results"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func handleSearch(svc searcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
			return
		}

		results, err := svc.Search(r.Context(), req.Query)
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: verr.Error()})
		case err != nil:
			logger.Error("search failed", "err", err, "request_id", mid.GetRequestID(r.Context()))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		case len(results) == 0:
			writeJSON(w, http.StatusNotFound, errorResponse{Detail: notFoundDetail})
		default:
			writeJSON(w, http.StatusOK, SearchResponse{Query: req.Query, Results: results})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
