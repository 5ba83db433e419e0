package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	t.Parallel()
	// 1200 chars, no sentence punctuation: one chunk, the full trimmed text.
	text := strings.Repeat("a", 1200)
	got := Split("  "+text+"  ", Options{})
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0] != text {
		t.Fatalf("chunk should be the trimmed input, got %d chars", len(got[0]))
	}
}

func TestSplitBelowFloorYieldsNothing(t *testing.T) {
	t.Parallel()
	if got := Split("too short to be substantive", Options{}); got != nil {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
}

func TestSplitEmptyText(t *testing.T) {
	t.Parallel()
	if got := Split("   \n\t ", Options{}); got != nil {
		t.Fatalf("expected no chunks for blank input, got %d", len(got))
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	t.Parallel()
	// One sentence ends inside the last 30% of the first window; the first
	// chunk must end exactly at that terminator.
	sentence := strings.Repeat("b", 1399) + "."
	text := sentence + " " + strings.Repeat("c", 800)
	got := Split(text, Options{})
	if len(got) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(got))
	}
	if got[0] != sentence {
		t.Fatalf("first chunk should end at the sentence terminator, got %d chars ending %q",
			len(got[0]), got[0][len(got[0])-5:])
	}
}

func TestSplitHardCutWithoutPunctuation(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("d", 4000)
	got := Split(text, Options{})
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if len(c) > DefaultMaxChars {
			t.Fatalf("chunk %d exceeds max: %d chars", i, len(c))
		}
	}
	if len(got[0]) != DefaultMaxChars {
		t.Fatalf("expected hard cut at %d, got %d", DefaultMaxChars, len(got[0]))
	}
}

func TestSplitHardCutKeepsRunesIntact(t *testing.T) {
	t.Parallel()
	// Three-byte runes with no punctuation: a hard byte cut at MaxChars=1000
	// lands mid-rune, and so does the overlap cursor. Every chunk must still
	// be valid UTF-8.
	text := strings.Repeat("新", 800)
	got := Split(text, Options{MaxChars: 1000, Overlap: 100})
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
		if len(c) > 1000 {
			t.Fatalf("chunk %d exceeds max: %d bytes", i, len(c))
		}
	}
}

func TestSplitOverlapSharedBetweenChunks(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("e", 4000)
	got := Split(text, Options{})
	// Hard cuts on a uniform string: second chunk starts at 1500-150.
	tail := got[0][len(got[0])-DefaultOverlap:]
	if !strings.HasPrefix(got[1], tail) {
		t.Fatalf("consecutive chunks should share %d overlap chars", DefaultOverlap)
	}
}

func TestSplitFloorHolds(t *testing.T) {
	t.Parallel()
	// Mixed sentence lengths; nothing produced may be under the floor.
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString(strings.Repeat("word ", 40))
		b.WriteString("End of paragraph.")
		b.WriteString(" ")
	}
	for i, c := range Split(b.String(), Options{}) {
		if len(c) < minChunkChars {
			t.Fatalf("chunk %d below floor: %d chars", i, len(c))
		}
	}
}

func TestSplitMaxChunksCap(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("f", 200_000)
	got := Split(text, Options{})
	if len(got) != DefaultMaxChunks {
		t.Fatalf("expected cap at %d chunks, got %d", DefaultMaxChunks, len(got))
	}
}

func TestSplitIdempotentBelowMax(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("g", 900) + "."
	first := Split(text, Options{})
	if len(first) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(first))
	}
	second := Split(first[0], Options{})
	if len(second) != 1 || second[0] != first[0] {
		t.Fatalf("re-chunking a sub-max chunk should return it unchanged")
	}
}
