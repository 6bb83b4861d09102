package rag

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/WessleyAI/patent-search/engine/semantic"
	"github.com/WessleyAI/patent-search/engine/store"
	"github.com/WessleyAI/patent-search/pkg/fn"
)

// --- Mocks ---

type mockEmbed struct {
	err   error
	calls int
}

func (m *mockEmbed) Embed(context.Context, string) ([]float32, error) {
	m.calls++
	return []float32{1, 0}, m.err
}

type mockSearch struct {
	matches []semantic.Match
	errs    []error
	calls   int
	topK    int
}

func (m *mockSearch) Query(_ context.Context, _ []float32, topK int) ([]semantic.Match, error) {
	m.calls++
	m.topK = topK
	if m.calls <= len(m.errs) {
		return nil, m.errs[m.calls-1]
	}
	return m.matches, nil
}

type mockRows struct {
	rows []store.ChunkRow
	err  error
	ids  []string
}

func (m *mockRows) FetchByIDs(_ context.Context, ids []string) ([]store.ChunkRow, error) {
	m.ids = ids
	return m.rows, m.err
}

type mockSummarizer struct{ inputs []string }

func (m *mockSummarizer) Summarize(_ context.Context, d string) string {
	m.inputs = append(m.inputs, d)
	return "summary of " + d
}

func testOpts() Options {
	return Options{TopK: 3, Retry: fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}}
}

func matches(ids ...string) []semantic.Match {
	out := make([]semantic.Match, len(ids))
	for i, id := range ids {
		out[i] = semantic.Match{ID: id, Score: 1 - float32(i)/10}
	}
	return out
}

// --- Tests ---

func TestSearch_PreservesRank(t *testing.T) {
	search := &mockSearch{matches: matches("v2", "v1", "v3")}
	// Rows come back in a different order than the ranking.
	rows := &mockRows{rows: []store.ChunkRow{
		{VectorID: "v1", PatentNumber: "US1", Title: "One", Description: "d1"},
		{VectorID: "v3", PatentNumber: "US3", Title: "Three", Description: "d3"},
		{VectorID: "v2", PatentNumber: "US2", Title: "Two", Description: "d2"},
	}}
	sum := &mockSummarizer{}
	svc := New(&mockEmbed{}, search, rows, sum, testOpts(), nil, nil)

	got, err := svc.Search(context.Background(), "  solid state battery  ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, want := range []string{"US2", "US1", "US3"} {
		if got[i].PatentNumber != want {
			t.Fatalf("result %d = %s, want %s", i, got[i].PatentNumber, want)
		}
	}
	if got[0].Summary != "summary of d2" || got[0].Title != "Two" {
		t.Errorf("unexpected first result %+v", got[0])
	}
	if search.topK != 3 {
		t.Errorf("topK = %d", search.topK)
	}
	if len(rows.ids) != 3 || rows.ids[0] != "v2" {
		t.Errorf("hydration ids = %v", rows.ids)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	sum := &mockSummarizer{}
	rows := &mockRows{}
	svc := New(&mockEmbed{}, &mockSearch{}, rows, sum, testOpts(), nil, nil)

	got, err := svc.Search(context.Background(), "nothing")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
	if len(sum.inputs) != 0 || rows.ids != nil {
		t.Fatal("no matches must not hydrate or summarize")
	}
}

func TestSearch_VectorErrorDegradesToEmpty(t *testing.T) {
	search := &mockSearch{errs: []error{errors.New("unavailable"), errors.New("unavailable")}}
	svc := New(&mockEmbed{}, search, &mockRows{}, &mockSummarizer{}, testOpts(), nil, nil)

	got, err := svc.Search(context.Background(), "q")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
	if search.calls != 2 {
		t.Fatalf("expected bounded retry of 2 attempts, got %d", search.calls)
	}
}

func TestSearch_VectorRetryRecovers(t *testing.T) {
	search := &mockSearch{errs: []error{errors.New("blip")}, matches: matches("v1")}
	rows := &mockRows{rows: []store.ChunkRow{{VectorID: "v1", PatentNumber: "US1"}}}
	svc := New(&mockEmbed{}, search, rows, &mockSummarizer{}, testOpts(), nil, nil)

	got, err := svc.Search(context.Background(), "q")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 result after retry, got %v, %v", got, err)
	}
}

func TestSearch_EmbedError(t *testing.T) {
	svc := New(&mockEmbed{err: errors.New("model down")}, &mockSearch{}, &mockRows{}, &mockSummarizer{}, testOpts(), nil, nil)
	if _, err := svc.Search(context.Background(), "q"); !errors.Is(err, ErrEmbedQuery) {
		t.Fatalf("expected ErrEmbedQuery, got %v", err)
	}
}

func TestSearch_HydrationError(t *testing.T) {
	rows := &mockRows{err: errors.New("database is locked")}
	svc := New(&mockEmbed{}, &mockSearch{matches: matches("v1")}, rows, &mockSummarizer{}, testOpts(), nil, nil)
	if _, err := svc.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected hydration error")
	}
}

func TestSearch_OrphanSkipped(t *testing.T) {
	rows := &mockRows{rows: []store.ChunkRow{{VectorID: "v2", PatentNumber: "US2"}}}
	svc := New(&mockEmbed{}, &mockSearch{matches: matches("v1", "v2")}, rows, &mockSummarizer{}, testOpts(), nil, nil)

	got, err := svc.Search(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PatentNumber != "US2" {
		t.Fatalf("expected only the hydrated match, got %+v", got)
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	emb := &mockEmbed{}
	svc := New(emb, &mockSearch{}, &mockRows{}, &mockSummarizer{}, testOpts(), nil, nil)
	if _, err := svc.Search(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if emb.calls != 0 {
		t.Fatal("invalid query must not be embedded")
	}
}

func TestSearch_OnDemandStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patent_data.db")
	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []store.ChunkRow{
		{VectorID: "US1_chunk_0_a", PatentNumber: "US1", Title: "Cell", Description: "cell desc"},
		{VectorID: "US2_chunk_0_b", PatentNumber: "US2", Title: "Brake", Description: "brake desc"},
	} {
		if err := st.Insert(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	sum := &mockSummarizer{}
	svc := New(&mockEmbed{}, &mockSearch{matches: matches("US2_chunk_0_b", "US1_chunk_0_a")}, store.OnDemand{Path: path}, sum, testOpts(), nil, nil)
	got, err := svc.Search(context.Background(), "brakes")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].PatentNumber != "US2" || got[1].Summary != "summary of cell desc" {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestNew_DefaultTopK(t *testing.T) {
	search := &mockSearch{}
	svc := New(&mockEmbed{}, search, &mockRows{}, &mockSummarizer{}, Options{}, nil, nil)
	svc.Search(context.Background(), "q")
	if search.topK != DefaultTopK {
		t.Fatalf("topK = %d", search.topK)
	}
}
