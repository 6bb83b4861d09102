package ingest

const (
	// DefaultChunkSize is the window length, in characters.
	DefaultChunkSize = 2500
	// DefaultChunkOverlap is the number of characters shared by consecutive windows.
	DefaultChunkOverlap = 150
)

// SplitText cuts text into windows of at most size characters (runes), each
// starting size-overlap characters after the previous one. The last window
// may be shorter. Text no longer than size is returned as a single chunk and
// empty text yields none. Overlap is clamped to [0, size-1].
func SplitText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
