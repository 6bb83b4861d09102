// Command ingest loads a directory of patent JSON files into the vector index
// and the SQLite chunk table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WessleyAI/patent-search/engine/graph"
	"github.com/WessleyAI/patent-search/engine/ingest"
	"github.com/WessleyAI/patent-search/engine/semantic"
	"github.com/WessleyAI/patent-search/engine/store"
	"github.com/WessleyAI/patent-search/engine/wiring"
	"github.com/WessleyAI/patent-search/pkg/config"
	"github.com/WessleyAI/patent-search/pkg/metrics"
	"github.com/WessleyAI/patent-search/pkg/natsutil"
)

type flags struct {
	dir     string
	size    int
	overlap int
	batch   int
	dims    int
}

func parseFlags(args []string, defaultDims int) (flags, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	var f flags
	fs.StringVar(&f.dir, "dir", "patent_jsons", "directory of patent JSON files")
	fs.IntVar(&f.size, "chunk-size", ingest.DefaultChunkSize, "chunk size in characters")
	fs.IntVar(&f.overlap, "overlap", ingest.DefaultChunkOverlap, "chunk overlap in characters")
	fs.IntVar(&f.batch, "batch", semantic.DefaultBatchSize, "vector upsert batch size")
	fs.IntVar(&f.dims, "dims", defaultDims, "embedding dimensionality of the collection")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.size <= 0 {
		return f, fmt.Errorf("chunk-size must be positive")
	}
	if f.overlap < 0 || f.overlap >= f.size {
		return f, fmt.Errorf("overlap must be in [0, chunk-size)")
	}
	if f.dims <= 0 {
		return f, fmt.Errorf("dims must be positive")
	}
	return f, nil
}

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	f, err := parseFlags(os.Args[1:], cfg.EmbedDims)
	if err != nil {
		logger.Error("invalid flags", "err", err)
		os.Exit(2)
	}

	if err := run(cfg, f, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, f flags, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer wiring.Tracing(ctx, cfg, "patent-ingest", logger)()

	reg := metrics.New()
	m := metrics.NewPipeline(reg)
	if cfg.MetricsPort > 0 {
		srv := reg.ServeAsync(cfg.MetricsPort, logger)
		defer srv.Close()
	}

	cfg.EmbedDims = f.dims
	embedder, err := wiring.Embedder(cfg)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	vs, err := wiring.VectorStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, f.dims); err != nil {
		return err
	}
	logger.Info("connected to Qdrant", "collection", vs.Collection(), "dims", f.dims)

	rows, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer rows.Close()

	families, closeGraph := wiring.FamilyGraph(ctx, cfg, logger)
	defer closeGraph()
	events := wiring.Events(cfg, logger)
	if events != nil {
		defer events.Close()
	}

	deps := ingest.Deps{
		Embedder: embedder,
		Vectors:  vs,
		Rows:     rows,
		Metrics:  m,
		Logger:   logger,
	}
	withOptional(&deps, families, events)

	p := ingest.New(deps, ingest.Options{
		ChunkSize:    f.size,
		ChunkOverlap: f.overlap,
		BatchSize:    f.batch,
	})
	report, err := p.Run(ctx, f.dir)
	if err != nil {
		return fmt.Errorf("after %d processed files: %w", report.Processed, err)
	}
	if report.Unindexed > 0 {
		logger.Warn("rows stored without vectors", "rows", report.Unindexed)
	}
	return nil
}

// withOptional sets the optional sinks only when they are connected, so a
// nil pointer never becomes a non-nil interface.
func withOptional(deps *ingest.Deps, families *graph.FamilyGraph, events *natsutil.Publisher[ingest.FileEvent]) {
	if families != nil {
		deps.Families = families
	}
	if events != nil {
		deps.Events = events
	}
}
