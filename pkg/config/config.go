// Package config loads process configuration from the environment, after
// merging an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration.
type Config struct {
	QdrantURL    string
	QdrantAPIKey string
	Collection   string
	QdrantTLS    bool

	SQLitePath string

	EmbedBackend  string
	OllamaURL     string
	EmbedModel    string
	EmbedDims     int
	OpenAIBaseURL string
	OpenAIAPIKey  string

	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string
	LLMRPM      int

	Port       string
	CORSOrigin string

	NATSURL     string
	NATSSubject string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	MetricsPort     int
	OTLPEndpoint    string
	TraceSampleRate float64
	LogLevel        string
}

// Load reads .env (if present) and then the environment. Variables already
// set in the environment win over .env.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		n, err := EnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	floatVar := func(key string, fallback float64) float64 {
		f, err := EnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return f
	}
	boolVar := func(key string, fallback bool) bool {
		b, err := EnvBool(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return b
	}

	cfg := Config{
		QdrantURL:     EnvOr("QDRANT_URL", "localhost:6334"),
		QdrantAPIKey:  os.Getenv("QDRANT_API_KEY"),
		Collection:    EnvOr("QDRANT_COLLECTION", "patent-data"),
		QdrantTLS:     boolVar("QDRANT_TLS", false),
		SQLitePath:    EnvOr("SQLITE_PATH", "patent_data.db"),
		EmbedBackend:  EnvOr("EMBED_PROVIDER", "ollama"),
		OllamaURL:     EnvOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:    EnvOr("EMBED_MODEL", "bge-large"),
		EmbedDims:     intVar("EMBED_DIMS", 1024),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		GroqAPIKey:    os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:   EnvOr("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:     EnvOr("GROQ_MODEL", "llama-3.3-70b-versatile"),
		LLMRPM:        intVar("LLM_RPM", 30),
		Port:          EnvOr("PORT", "8000"),
		CORSOrigin:    EnvOr("CORS_ORIGIN", "*"),
		NATSURL:       os.Getenv("NATS_URL"),
		NATSSubject:   EnvOr("NATS_SUBJECT", "patents.ingested"),
		Neo4jURL:      os.Getenv("NEO4J_URL"),
		Neo4jUser:     EnvOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     os.Getenv("NEO4J_PASS"),
		MetricsPort:   intVar("METRICS_PORT", 0),
		LogLevel:      EnvOr("LOG_LEVEL", "info"),

		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSampleRate: floatVar("OTEL_TRACE_SAMPLE_RATE", 1),
	}
	if cfg.EmbedDims < 0 {
		errs = append(errs, fmt.Errorf("config: EMBED_DIMS must not be negative"))
	}
	return cfg, errors.Join(errs...)
}

// EnvOr returns the value of key, or fallback when unset or empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt parses key as an int, returning fallback when unset.
func EnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("config: %s=%q is not an integer", key, v)
	}
	return n, nil
}

// EnvFloat parses key as a float64, returning fallback when unset.
func EnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback, fmt.Errorf("config: %s=%q is not a number", key, v)
	}
	return f, nil
}

// EnvBool parses key as a bool, returning fallback when unset.
func EnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("config: %s=%q is not a boolean", key, v)
	}
	return b, nil
}

// ParseLevel maps debug|info|warn|error onto a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger the binaries install as default.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
