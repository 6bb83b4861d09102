// Command checkdb reports the state of the SQLite chunk table and the vector
// index so drift between the two stores is visible.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/patent-search/engine/store"
	"github.com/WessleyAI/patent-search/engine/wiring"
	"github.com/WessleyAI/patent-search/pkg/config"
)

// sampleRows is the number of rows printed as a sample.
const sampleRows = 2

type rowStats interface {
	HasTable() bool
	Count(ctx context.Context) (int64, error)
	Sample(ctx context.Context, limit int) ([]store.ChunkRow, error)
}

type pointCounter interface {
	Count(ctx context.Context) (uint64, error)
}

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := store.OpenExisting(cfg.SQLitePath)
	if err != nil {
		logger.Error("open sqlite", "path", cfg.SQLitePath, "err", err)
		os.Exit(1)
	}
	defer rows.Close()

	var points pointCounter
	vs, err := wiring.VectorStore(cfg, logger)
	if err != nil {
		logger.Warn("vector index unavailable", "err", err)
	} else {
		defer vs.Close()
		points = vs
	}

	if err := report(ctx, os.Stdout, cfg.SQLitePath, rows, points); err != nil {
		logger.Error("checkdb failed", "err", err)
		os.Exit(1)
	}
}

// report prints the table check, row count, sample rows and, when points is
// set, the vector count and the row/point difference.
func report(ctx context.Context, out io.Writer, path string, rows rowStats, points pointCounter) error {
	fmt.Fprintf(out, "Database: %s\n", path)
	if !rows.HasTable() {
		fmt.Fprintf(out, "Table %q does not exist.\n", store.TableName)
		return nil
	}
	fmt.Fprintf(out, "Table %q exists.\n", store.TableName)

	n, err := rows.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Total rows: %d\n", n)

	sample, err := rows.Sample(ctx, sampleRows)
	if err != nil {
		return err
	}
	if len(sample) > 0 {
		fmt.Fprintln(out, "Sample rows:")
		for _, r := range sample {
			fmt.Fprintf(out, "  vector_id=%s patent_number=%s title=%q\n", r.VectorID, r.PatentNumber, r.Title)
		}
	}

	if points == nil {
		fmt.Fprintln(out, "Vector points: unavailable")
		return nil
	}
	p, err := points.Count(ctx)
	if err != nil {
		fmt.Fprintf(out, "Vector points: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Vector points: %d\n", p)
	if drift := n - int64(p); drift != 0 {
		fmt.Fprintf(out, "Drift: %+d (rows minus points)\n", drift)
	} else {
		fmt.Fprintln(out, "Stores are in sync.")
	}
	return nil
}
