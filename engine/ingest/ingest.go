// Package ingest runs patent JSON files through extraction, chunking,
// embedding and the two stores. Files are processed one at a time; within a
// file each chunk's relational row is written as soon as it is embedded and
// the file's vectors are upserted together afterwards.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/WessleyAI/patent-search/engine/semantic"
	"github.com/WessleyAI/patent-search/engine/store"
	"github.com/WessleyAI/patent-search/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Deps holds the external dependencies for the ingestion pipeline.
// Families and Events are optional.
type Deps struct {
	Embedder Embedder
	Vectors  VectorWriter
	Rows     RowWriter
	Families FamilyRecorder
	Events   EventPublisher
	Metrics  *metrics.Pipeline
	Logger   *slog.Logger
}

// Options are the call-time defaults of a run.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	// NewSuffix returns the random part of a vector id.
	NewSuffix func() string
}

// DefaultOptions returns chunk size 2500, overlap 150 and batch size 100.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		BatchSize:    semantic.DefaultBatchSize,
		NewSuffix:    randomSuffix,
	}
}

func randomSuffix() string { return uuid.NewString()[:8] }

// VectorID builds the id shared by a chunk's vector and its row.
func VectorID(patentNumber string, chunkIndex int, suffix string) string {
	return fmt.Sprintf("%s_chunk_%d_%s", patentNumber, chunkIndex, suffix)
}

// Pipeline is one configured ingestion run.
type Pipeline struct {
	deps    Deps
	opts    Options
	metrics *metrics.Pipeline
	logger  *slog.Logger
}

// New creates a Pipeline. Zero options fall back to DefaultOptions.
func New(deps Deps, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.NewSuffix == nil {
		opts.NewSuffix = def.NewSuffix
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewPipeline(metrics.New())
	}
	return &Pipeline{deps: deps, opts: opts, metrics: m, logger: logger}
}

// ListFiles returns the .json files of dir in directory order.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Run ingests every .json file in dir. Per-file read, parse and embedding
// failures are logged and skipped. A relational write error stops the run
// and is returned with the partial report.
func (p *Pipeline) Run(ctx context.Context, dir string) (Report, error) {
	var report Report
	files, err := ListFiles(dir)
	if err != nil {
		return report, err
	}
	report.Files = len(files)
	p.logger.Info("ingest: files found", "dir", dir, "count", len(files))

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.logger.Info("ingest: processing file", "file", filepath.Base(path), "ordinal", i+1)

		res, err := p.ProcessFile(ctx, path, i)
		var le *LoadError
		switch {
		case errors.As(err, &le):
			report.Failed++
			p.metrics.FilesFailed.Inc()
			p.logger.Error("ingest: failed to load file", "file", le.File, "error", le.Err)
			continue
		case err != nil:
			report.add(res)
			return report, err
		}
		report.add(res)
	}

	p.logger.Info("ingest: run complete",
		"files", report.Files,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"total_chunks", report.Chunks,
		"embed_failures", report.EmbedFailures,
		"unindexed", report.Unindexed,
	)
	return report, nil
}

// LoadError is a file that could not be read or parsed. Run skips it.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("ingest: load %s: %v", e.File, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// ProcessFile reads, parses and ingests one file. index is the file's
// position in the run and names records with no patent number.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, index int) (FileResult, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{File: name}, &LoadError{File: name, Err: err}
	}
	rec, err := domain.ParsePatent(data)
	if err != nil {
		return FileResult{File: name}, &LoadError{File: name, Err: err}
	}
	return p.ProcessRecord(ctx, name, rec, index)
}

// ProcessRecord ingests one parsed patent. The only error it returns is a
// relational write failure.
func (p *Pipeline) ProcessRecord(ctx context.Context, file string, rec domain.PatentRecord, index int) (FileResult, error) {
	ctx, span := otel.Tracer("ingest").Start(ctx, "ingest.file")
	defer span.End()
	start := time.Now()
	defer p.metrics.IngestSeconds.Since(start)

	fields := rec.English(domain.FallbackPatentNumber(index))
	res := FileResult{File: file, PatentNumber: fields.PatentNumber}
	span.SetAttributes(
		attribute.String("ingest.file", file),
		attribute.String("patent.number", fields.PatentNumber),
	)

	text := fields.CombinedText()
	if text == "" {
		res.Skipped, res.Reason = true, domain.ErrEmptyText.Error()
		p.metrics.FilesSkipped.Inc()
		p.logger.Warn("ingest: skipping record", "patent_number", fields.PatentNumber, "file", file, "reason", res.Reason)
		return res, nil
	}
	p.metrics.FilesProcessed.Inc()
	p.recordFamily(ctx, fields)

	chunks := SplitText(text, p.opts.ChunkSize, p.opts.ChunkOverlap)
	p.logger.Info("ingest: chunks created", "patent_number", fields.PatentNumber, "chunks", len(chunks))

	vectors := make([]semantic.VectorRecord, 0, len(chunks))
	for i, chunk := range chunks {
		id := VectorID(fields.PatentNumber, i, p.opts.NewSuffix())
		vec, err := p.deps.Embedder.Embed(ctx, chunk)
		if err != nil {
			res.EmbedFailures++
			p.metrics.EmbedFailures.Inc()
			p.logger.Error("ingest: embedding failed", "vector_id", id, "error", err)
			continue
		}

		if err := p.deps.Rows.Insert(ctx, chunkRow(id, fields, chunk)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "row insert failed")
			return res, fmt.Errorf("ingest: %s: %w", fields.PatentNumber, err)
		}
		vectors = append(vectors, semantic.VectorRecord{
			ID:           id,
			Values:       vec,
			PatentNumber: fields.PatentNumber,
			Title:        fields.Title,
		})
		res.Chunks++
		p.metrics.Chunks.Inc()
		p.logger.Debug("ingest: chunk ready", "vector_id", id)
	}

	if len(vectors) == 0 {
		p.logger.Warn("ingest: no vectors to upsert", "file", file, "patent_number", fields.PatentNumber)
	} else if err := p.deps.Vectors.Upsert(ctx, vectors, p.opts.BatchSize); err != nil {
		p.metrics.UpsertFailures.Inc()
		span.RecordError(err)
		p.logger.Error("ingest: vector upsert failed, rows left unindexed",
			"patent_number", fields.PatentNumber,
			"rows", len(vectors),
			"error", err,
		)
	} else {
		res.Indexed = true
	}
	span.SetAttributes(attribute.Int("ingest.chunks", res.Chunks), attribute.Bool("ingest.indexed", res.Indexed))

	p.publish(ctx, res)
	return res, nil
}

func chunkRow(id string, f domain.Fields, chunk string) store.ChunkRow {
	return store.ChunkRow{
		VectorID:        id,
		PatentNumber:    f.PatentNumber,
		PublicationID:   f.PublicationID,
		FamilyID:        f.FamilyID,
		PublicationDate: f.PublicationDate,
		Title:           f.Title,
		Description:     f.Description,
		Abstract:        f.Abstract,
		ClaimsText:      f.ClaimsText,
		ChunkText:       chunk,
	}
}

func (p *Pipeline) recordFamily(ctx context.Context, f domain.Fields) {
	if p.deps.Families == nil {
		return
	}
	if err := p.deps.Families.RecordPatent(ctx, f); err != nil {
		p.logger.Warn("ingest: family graph", "patent_number", f.PatentNumber, "error", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, res FileResult) {
	if p.deps.Events == nil || res.Chunks == 0 {
		return
	}
	ev := FileEvent{File: res.File, PatentNumber: res.PatentNumber, Chunks: res.Chunks, Indexed: res.Indexed}
	if err := p.deps.Events.Publish(ctx, ev); err != nil {
		p.logger.Warn("ingest: publish event", "file", res.File, "error", err)
	}
}
