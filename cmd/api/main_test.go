package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/WessleyAI/patent-search/engine/rag"
	"github.com/WessleyAI/patent-search/pkg/metrics"
)

type mockSearcher struct {
	results []rag.Result
	err     error
	query   string
	calls   int
}

func (m *mockSearcher) Search(_ context.Context, query string) ([]rag.Result, error) {
	m.calls++
	m.query = query
	if m.err != nil {
		return nil, m.err
	}
	if _, err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	return m.results, nil
}

func testHandler(s searcher) http.Handler {
	return newHandler(s, metrics.New(), "*", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doSearch(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return w, out
}

func TestHandleHealth(t *testing.T) {
	w := httptest.NewRecorder()
	testHandler(&mockSearcher{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
}

func TestSearchOK(t *testing.T) {
	s := &mockSearcher{results: []rag.Result{
		{PatentNumber: "US1", Title: "Hinge", Summary: "A hinge."},
		{PatentNumber: "US2", Title: "Latch", Summary: "A latch."},
	}}
	w, out := doSearch(t, testHandler(s), `{"query":"  door hinge  "}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out["query"] != "  door hinge  " {
		t.Fatalf("query should be echoed as received, got %q", out["query"])
	}
	results, _ := out["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0].(map[string]any)
	if first["patent_number"] != "US1" || first["title"] != "Hinge" || first["summary"] != "A hinge." {
		t.Fatalf("unexpected first result: %v", first)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestSearchNoResults(t *testing.T) {
	w, out := doSearch(t, testHandler(&mockSearcher{}), `{"query":"nothing"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if out["detail"] != notFoundDetail {
		t.Fatalf("unexpected detail: %v", out["detail"])
	}
}

func TestSearchInternalError(t *testing.T) {
	s := &mockSearcher{err: errors.New("store: fetch rows: disk I/O error")}
	w, out := doSearch(t, testHandler(s), `{"query":"hinge"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(out["detail"].(string), "disk I/O error") {
		t.Fatalf("detail should carry the error, got %v", out["detail"])
	}
}

func TestSearchBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"malformed json", `{"query":`, "invalid request body"},
		{"empty query", `{"query":"   "}`, "query is empty"},
		{"missing query", `{}`, "query is empty"},
		{"too long", `{"query":"` + strings.Repeat("a", domain.MaxQueryLength+1) + `"}`, "query longer than 2000 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := doSearch(t, testHandler(&mockSearcher{}), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if !strings.Contains(out["detail"].(string), tt.detail) {
				t.Fatalf("expected detail containing %q, got %v", tt.detail, out["detail"])
			}
		})
	}
}

func TestSearchMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	testHandler(&mockSearcher{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestPreflight(t *testing.T) {
	s := &mockSearcher{}
	w := httptest.NewRecorder()
	testHandler(s).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/search", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS origin header")
	}
	if s.calls != 0 {
		t.Fatal("preflight must not reach the searcher")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.New()
	metrics.NewPipeline(reg).Searches.Inc()
	h := newHandler(&mockSearcher{}, reg, "*", slog.New(slog.NewTextHandler(io.Discard, nil)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `patent_search_total{outcome="ok"} 1`) {
		t.Fatalf("metrics output missing search counter:\n%s", w.Body.String())
	}
}
