package wiring

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/WessleyAI/patent-search/engine/ingest"
	"github.com/WessleyAI/patent-search/pkg/config"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func baseConfig() config.Config {
	return config.Config{
		QdrantURL:   "localhost:6334",
		Collection:  "patent-data",
		EmbedModel:  "bge-large",
		OllamaURL:   "http://localhost:11434",
		EmbedDims:   1024,
		GroqBaseURL: "https://api.groq.com/openai/v1",
		GroqModel:   "llama-3.3-70b-versatile",
		NATSSubject: "patents.ingested",
	}
}

func TestEmbedderAndVectorStore(t *testing.T) {
	cfg := baseConfig()
	p, err := Embedder(cfg)
	if err != nil {
		t.Fatalf("Embedder: %v", err)
	}
	if p.Dims() != 1024 {
		t.Fatalf("dims = %d", p.Dims())
	}

	vs, err := VectorStore(cfg, discard)
	if err != nil {
		t.Fatalf("VectorStore: %v", err)
	}
	defer vs.Close()
	if vs.Collection() != "patent-data" {
		t.Fatalf("collection = %s", vs.Collection())
	}

	if Summarizer(cfg, nil, discard) == nil {
		t.Fatal("nil summarizer")
	}
}

func TestSummarizerOptions(t *testing.T) {
	cfg := baseConfig()
	cfg.GroqAPIKey = "gsk-test"
	cfg.LLMRPM = 12
	opts := SummarizerOptions(cfg)
	if opts.APIKey != "gsk-test" || opts.RPM != 12 || opts.Model != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.MaxChars != 4000 || opts.Temperature != 0.4 || opts.MaxTokens != 2000 {
		t.Fatalf("defaults not kept: %+v", opts)
	}
}

func TestOptionalServicesDisabled(t *testing.T) {
	cfg := baseConfig()
	g, closeFn := FamilyGraph(context.Background(), cfg, discard)
	closeFn()
	if g != nil {
		t.Fatal("graph must be nil without NEO4J_URL")
	}
	if Events(cfg, discard) != nil {
		t.Fatal("events must be nil without NATS_URL")
	}

	cfg.NATSURL = "nats://127.0.0.1:1"
	if Events(cfg, discard) != nil {
		t.Fatal("unreachable NATS must disable events")
	}
}

func TestEvents_Publishes(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	defer srv.Shutdown()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}

	cfg := baseConfig()
	cfg.NATSURL = srv.ClientURL()
	pub := Events(cfg, discard)
	if pub == nil {
		t.Fatal("expected publisher")
	}
	defer pub.Close()

	sub, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	ch := make(chan *nats.Msg, 1)
	s, _ := sub.ChanSubscribe(cfg.NATSSubject, ch)
	defer s.Unsubscribe()
	sub.Flush()

	if err := pub.Publish(context.Background(), ingest.FileEvent{File: "a.json", Chunks: 2, Indexed: true}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestTracingWithoutEndpoint(t *testing.T) {
	stop := Tracing(context.Background(), baseConfig(), "patent-test", discard)
	stop()
}
