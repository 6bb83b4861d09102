// Package summarize turns a patent description into a short summary with an
// OpenAI-compatible chat completion call (Groq by default). Summarize never
// fails: any unsuccessful call yields FailureSummary.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/WessleyAI/patent-search/pkg/fn"
	"github.com/WessleyAI/patent-search/pkg/metrics"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// FailureSummary replaces the summary of any description the LLM could not
// summarize.
const FailureSummary = "Summary generation failed."

const (
	systemPrompt = "You are a helpful assistant that summarizes patent descriptions."
	userPrefix   = "Summarize this patent description:\n\n"
)

// Options configures the LLM call.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxChars    int // description budget before truncation
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RPM         int // requests per minute, 0 disables the limiter
	Retry       fn.RetryOpts
}

// DefaultOptions returns the Groq defaults.
func DefaultOptions() Options {
	return Options{
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		MaxChars:    4000,
		Temperature: 0.4,
		MaxTokens:   2000,
		Timeout:     60 * time.Second,
		RPM:         30,
		Retry:       fn.DefaultRetry,
	}
}

// Client summarizes descriptions.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Pipeline
	logger  *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default and nil
// metrics to a private registry.
func New(opts Options, m *metrics.Pipeline, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewPipeline(metrics.New())
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultOptions().MaxChars
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = retryable
	}

	c := &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		metrics: m,
		logger:  logger,
	}
	if opts.RPM > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(opts.RPM)/60.0), max(1, opts.RPM/10))
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "summarize",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < 500 && se.Code != http.StatusTooManyRequests)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("summarize: breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Truncate cuts s to at most limit runes. The bool reports whether it cut.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// Summarize returns the LLM summary of description, or FailureSummary.
func (c *Client) Summarize(ctx context.Context, description string) string {
	ctx, span := otel.Tracer("summarize").Start(ctx, "summarize.call")
	defer span.End()
	start := time.Now()
	defer c.metrics.LLMSeconds.Since(start)

	text, cut := Truncate(description, c.opts.MaxChars)
	if cut {
		c.logger.Warn("summarize: truncating description",
			"chars", len([]rune(description)),
			"limit", c.opts.MaxChars,
		)
	}
	span.SetAttributes(
		attribute.Int("summarize.chars", len(text)),
		attribute.Bool("summarize.truncated", cut),
	)

	summary, err := fn.RetryCall(ctx, c.opts.Retry, func(ctx context.Context) (string, error) {
		return c.call(ctx, text)
	})
	if err != nil {
		c.metrics.SummaryFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		attrs := []any{"error", err}
		var se *StatusError
		if errors.As(err, &se) {
			attrs = append(attrs, "status", se.Code)
		}
		c.logger.Error("summarize: llm error", attrs...)
		return FailureSummary
	}
	c.metrics.Summaries.Inc()
	return summary
}

func (c *Client) call(ctx context.Context, text string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("summarize: rate limit: %w", err)
		}
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, text)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// buildRequest is split out so the outbound payload can be inspected.
func (c *Client) buildRequest(text string) chatRequest {
	return chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrefix + text},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
}

func (c *Client) complete(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(c.buildRequest(text))
	if err != nil {
		return "", fmt.Errorf("summarize: encode: %w", err)
	}
	url := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("summarize: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("summarize: no choices in response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// StatusError is a non-200 answer from the LLM endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("summarize: status %d: %s", e.Code, e.Body)
}

// retryable allows retries on transport errors, 429 and 5xx only.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}
