package metrics

// Pipeline groups the counters the ingest and query paths update.
type Pipeline struct {
	FilesProcessed  *Counter
	FilesSkipped    *Counter
	FilesFailed     *Counter
	Chunks          *Counter
	EmbedFailures   *Counter
	UpsertFailures  *Counter
	Searches        *Counter
	SearchNotFound  *Counter
	SearchErrors    *Counter
	OrphanVectors   *Counter
	Summaries       *Counter
	SummaryFailures *Counter
	IngestSeconds   *Histogram
	SearchSeconds   *Histogram
	LLMSeconds      *Histogram
}

// NewPipeline registers the pipeline metrics on r.
func NewPipeline(r *Registry) *Pipeline {
	return &Pipeline{
		FilesProcessed:  r.Counter(WithLabels("patent_ingest_files_total", "outcome", "processed"), "Patent files read by ingestion"),
		FilesSkipped:    r.Counter(WithLabels("patent_ingest_files_total", "outcome", "skipped"), ""),
		FilesFailed:     r.Counter(WithLabels("patent_ingest_files_total", "outcome", "failed"), ""),
		Chunks:          r.Counter("patent_ingest_chunks_total", "Chunks embedded and stored"),
		EmbedFailures:   r.Counter("patent_ingest_embed_failures_total", "Chunks skipped after an embedding failure"),
		UpsertFailures:  r.Counter("patent_ingest_upsert_failures_total", "Files whose vectors could not be upserted"),
		Searches:        r.Counter(WithLabels("patent_search_total", "outcome", "ok"), "Search requests"),
		SearchNotFound:  r.Counter(WithLabels("patent_search_total", "outcome", "not_found"), ""),
		SearchErrors:    r.Counter(WithLabels("patent_search_total", "outcome", "error"), ""),
		OrphanVectors:   r.Counter("patent_search_orphan_vectors_total", "Matches with no relational row"),
		Summaries:       r.Counter(WithLabels("patent_summaries_total", "outcome", "ok"), "LLM summaries"),
		SummaryFailures: r.Counter(WithLabels("patent_summaries_total", "outcome", "failed"), ""),
		IngestSeconds:   r.Histogram("patent_ingest_file_seconds", "Time to ingest one file", nil),
		SearchSeconds:   r.Histogram("patent_search_seconds", "End-to-end search latency", nil),
		LLMSeconds:      r.Histogram("patent_llm_seconds", "Summarization call latency", nil),
	}
}
