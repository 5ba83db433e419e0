// Package chunker splits article text into overlapping, sentence-aligned
// segments sized for embedding.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChars  = 1500
	DefaultOverlap   = 150
	DefaultMaxChunks = 30

	// Slices shorter than this are boilerplate or navigation noise.
	minChunkChars = 100
	// A sentence boundary is only honoured in the last 30% of a window;
	// earlier cuts would produce degenerate short chunks.
	boundaryFraction = 0.7
)

// Options tunes Split. Zero values fall back to the defaults above.
type Options struct {
	MaxChars  int
	Overlap   int
	MaxChunks int
}

func (o Options) withDefaults() Options {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	} else if o.Overlap == 0 {
		o.Overlap = DefaultOverlap
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	return o
}

// Split scans text left to right producing chunks of at most MaxChars,
// preferring to cut at sentence terminators, with Overlap characters shared
// between consecutive chunks. Greedy single pass, capped at MaxChunks;
// very long documents are truncated rather than fully chunked.
func Split(text string, opts Options) []string {
	o := opts.withDefaults()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for i := 0; i < len(text) && len(chunks) < o.MaxChunks; {
		end := i + o.MaxChars
		if end >= len(text) {
			end = len(text)
		} else if cut := sentenceCut(text, i, end); cut > 0 {
			end = cut
		} else {
			for end > i && !utf8.RuneStart(text[end]) {
				end--
			}
		}

		if part := strings.TrimSpace(text[i:end]); len(part) >= minChunkChars {
			chunks = append(chunks, part)
		}
		if end == len(text) {
			break
		}
		next := end - o.Overlap
		for next > i && next < len(text) && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= i {
			// Overlap would stall the cursor; give up the shared
			// context for this step instead of looping.
			next = end
		}
		i = next
	}
	return chunks
}

// sentenceCut searches backward from end for the nearest sentence
// terminator, accepting it only past boundaryFraction of the window.
// Returns 0 when no acceptable boundary exists (caller hard-cuts).
func sentenceCut(text string, start, end int) int {
	floor := start + int(float64(end-start)*boundaryFraction)
	for j := end - 1; j >= floor; j-- {
		switch text[j] {
		case '.', '!', '?':
			return j + 1
		}
	}
	return 0
}
