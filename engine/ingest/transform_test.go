package ingest

import (
	"strings"
	"testing"
)

func TestSplitText_Scenario(t *testing.T) {
	got := SplitText("A B C D E", 3, 1)
	want := []string{"A B", "B C", "C D", "D E"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	for _, text := range []string{"a", "exactly10!", strings.Repeat("x", 2500)} {
		size := len(text)
		if size < 10 {
			size = 10
		}
		got := SplitText(text, size, 3)
		if len(got) != 1 || got[0] != text {
			t.Errorf("SplitText(%q) = %q, want the text itself", text, got)
		}
	}
}

func TestSplitText_Empty(t *testing.T) {
	if got := SplitText("", 10, 2); got != nil {
		t.Fatalf("expected no chunks, got %q", got)
	}
}

func TestSplitText_OverlapAndReconstruction(t *testing.T) {
	text := strings.Repeat("abcdefghij", 137) + "tail"
	size, overlap := 100, 15
	chunks := SplitText(text, size, overlap)

	var rebuilt strings.Builder
	for i, c := range chunks {
		if n := len([]rune(c)); n > size {
			t.Fatalf("chunk %d has %d chars", i, n)
		}
		if i == 0 {
			rebuilt.WriteString(c)
			continue
		}
		prev := chunks[i-1]
		if prev[len(prev)-overlap:] != c[:overlap] {
			t.Fatalf("chunks %d and %d do not overlap by %d", i-1, i, overlap)
		}
		rebuilt.WriteString(c[overlap:])
	}
	if rebuilt.String() != text {
		t.Fatal("non-overlapping portions do not reconstruct the input")
	}
}

func TestSplitText_Runes(t *testing.T) {
	got := SplitText("äöüßé", 2, 0)
	want := []string{"äö", "üß", "é"}
	if len(got) != 3 {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestSplitText_OverlapClamped(t *testing.T) {
	got := SplitText("abcdef", 3, 10)
	// overlap becomes 2, step 1
	if len(got) != 4 || got[0] != "abc" || got[3] != "def" {
		t.Fatalf("got %q", got)
	}
}
