package ingest

import (
	"context"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/WessleyAI/patent-search/engine/semantic"
	"github.com/WessleyAI/patent-search/engine/store"
)

// Embedder converts one chunk into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorWriter upserts a file's vectors in batches.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord, batchSize int) error
}

// RowWriter persists one chunk row.
type RowWriter interface {
	Insert(ctx context.Context, row store.ChunkRow) error
}

// FamilyRecorder optionally records family membership of each patent.
type FamilyRecorder interface {
	RecordPatent(ctx context.Context, f domain.Fields) error
}

// EventPublisher optionally announces each processed file.
type EventPublisher interface {
	Publish(ctx context.Context, ev FileEvent) error
}

// FileEvent is published after every file that produced chunks.
type FileEvent struct {
	File         string `json:"file"`
	PatentNumber string `json:"patent_number"`
	Chunks       int    `json:"chunks"`
	Indexed      bool   `json:"indexed"`
}

// FileResult describes the outcome for one patent record.
type FileResult struct {
	File          string
	PatentNumber  string
	Chunks        int // chunks embedded and stored
	EmbedFailures int
	Indexed       bool // vectors upserted
	Skipped       bool
	Reason        string
}

// Report summarizes a whole run.
type Report struct {
	Files         int // .json files found
	Processed     int
	Skipped       int // empty text
	Failed        int // unreadable or unparsable
	Chunks        int // total chunks successfully processed
	EmbedFailures int
	Unindexed     int // chunks whose rows exist but whose vectors were not upserted
}

func (r *Report) add(res FileResult) {
	switch {
	case res.Skipped:
		r.Skipped++
	default:
		r.Processed++
	}
	r.Chunks += res.Chunks
	r.EmbedFailures += res.EmbedFailures
	if !res.Indexed {
		r.Unindexed += res.Chunks
	}
}
