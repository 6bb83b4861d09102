package semantic

// VectorRecord is one chunk embedding bound for the index. ID is the chunk's
// vector id, the same key used for its relational row.
type VectorRecord struct {
	ID           string
	Values       []float32
	PatentNumber string
	Title        string
}

// Match is a single similarity hit, ordered by descending score.
type Match struct {
	ID           string  `json:"id"`
	Score        float32 `json:"score"`
	PatentNumber string  `json:"patent_number"`
	Title        string  `json:"title"`
}

// Payload keys stored with every point.
const (
	payloadVectorID     = "vector_id"
	payloadPatentNumber = "patent_number"
	payloadTitle        = "title"
)
