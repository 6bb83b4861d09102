// Command search is a terminal front end for patent search. It reads one
// query per line and prints the summarized matches.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/WessleyAI/patent-search/engine/rag"
	"github.com/WessleyAI/patent-search/engine/store"
	"github.com/WessleyAI/patent-search/engine/summarize"
	"github.com/WessleyAI/patent-search/engine/wiring"
	"github.com/WessleyAI/patent-search/pkg/config"
	"github.com/WessleyAI/patent-search/pkg/metrics"
)

const prompt = "Enter your patent search query (or 'exit' to quit): "

type searcher interface {
	Search(ctx context.Context, query string) ([]rag.Result, error)
}

// familyLookup lists other publications of a patent's family.
type familyLookup interface {
	FamilyMembers(ctx context.Context, patentNumber string) ([]string, error)
}

func main() {
	topK := flag.Int("top-k", rag.DefaultTopK, "number of nearest chunks to retrieve")
	maxChars := flag.Int("max-chars", summarize.DefaultOptions().MaxChars, "description characters sent to the LLM")
	flag.Parse()

	cfg, err := config.Load()
	// Logs go to stderr so they do not interleave with results.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := wiring.Embedder(cfg)
	if err != nil {
		logger.Error("embedding provider", "err", err)
		os.Exit(1)
	}
	vs, err := wiring.VectorStore(cfg, logger)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer vs.Close()

	m := metrics.NewPipeline(metrics.New())
	sumOpts := wiring.SummarizerOptions(cfg)
	sumOpts.MaxChars = *maxChars
	opts := rag.DefaultOptions()
	opts.TopK = *topK
	svc := rag.New(embedder, vs, store.OnDemand{Path: cfg.SQLitePath}, summarize.New(sumOpts, m, logger), opts, m, logger)

	var families familyLookup
	if g, closeGraph := wiring.FamilyGraph(ctx, cfg, logger); g != nil {
		defer closeGraph()
		families = g
	}

	if err := repl(ctx, os.Stdin, os.Stdout, svc, families); err != nil {
		logger.Error("search loop", "err", err)
		os.Exit(1)
	}
}

// repl runs the prompt loop until exit, EOF or ctx is done.
func repl(ctx context.Context, in io.Reader, out io.Writer, svc searcher, families familyLookup) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for {
		fmt.Fprint(out, "\n"+prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		query := strings.TrimSpace(sc.Text())
		if strings.EqualFold(query, "exit") || strings.EqualFold(query, "quit") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		results, err := svc.Search(ctx, query)
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			fmt.Fprintf(out, "Invalid query: %v\n", verr.Wrapped)
		case err != nil:
			fmt.Fprintf(out, "Search failed: %v\n", err)
		case len(results) == 0:
			fmt.Fprintln(out, "No relevant patents found.")
		default:
			printResults(ctx, out, results, families)
		}
	}
}

func printResults(ctx context.Context, out io.Writer, results []rag.Result, families familyLookup) {
	fmt.Fprintln(out, "\nSearch Results:")
	for i, r := range results {
		fmt.Fprintf(out, "\n%d. Patent Number: %s\n", i+1, r.PatentNumber)
		fmt.Fprintf(out, "   Title: %s\n", r.Title)
		fmt.Fprintf(out, "   Summary: %s\n", r.Summary)
		if families == nil {
			continue
		}
		members, err := families.FamilyMembers(ctx, r.PatentNumber)
		if err != nil {
			slog.Warn("search: family lookup", "patent_number", r.PatentNumber, "error", err)
			continue
		}
		if len(members) > 0 {
			fmt.Fprintf(out, "   Family: %s\n", strings.Join(members, ", "))
		}
	}
}
