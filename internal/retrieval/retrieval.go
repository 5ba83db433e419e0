// Package retrieval holds the policy layer between the vector store and the
// generative model: which candidates become context, and how retrieved
// chunks collapse into per-source citations.
package retrieval

const (
	DefaultMinScore      = 0.6
	DefaultFallbackCount = 3
)

// Candidate is one scored passage returned by similarity search.
type Candidate struct {
	Score float64 `json:"score"`
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Text  string  `json:"text"`
}

// ContextDoc is a Candidate stripped of its score, the unit handed to the
// generative model.
type ContextDoc struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// Citation is a deduplicated per-source reference shown to the end user.
type Citation struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Filter keeps every candidate scoring at least minScore. When none clear
// the threshold it returns the first fallbackCount candidates instead
// (input is pre-sorted by descending score upstream): weak context beats no
// context. minScore is applied as given, so a zero threshold keeps every
// candidate; defaulting an unset threshold is the config layer's job. A
// non-positive fallbackCount falls back to DefaultFallbackCount.
func Filter(candidates []Candidate, minScore float64, fallbackCount int) []Candidate {
	if fallbackCount <= 0 {
		fallbackCount = DefaultFallbackCount
	}

	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= minScore {
			kept = append(kept, c)
		}
	}
	if len(kept) > 0 {
		return kept
	}
	if len(candidates) > fallbackCount {
		candidates = candidates[:fallbackCount]
	}
	return candidates
}

// DedupeCitations collapses candidates into one citation per distinct URL,
// keeping the highest score seen for that URL. Output order is first
// occurrence order, not score order.
func DedupeCitations(candidates []Candidate) []Citation {
	byURL := make(map[string]int, len(candidates))
	citations := make([]Citation, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := byURL[c.URL]; ok {
			if c.Score > citations[i].Score {
				citations[i].Score = c.Score
			}
			continue
		}
		byURL[c.URL] = len(citations)
		citations = append(citations, Citation{Title: c.Title, URL: c.URL, Score: c.Score})
	}
	return citations
}

// ContextDocs strips scores from filtered candidates.
func ContextDocs(candidates []Candidate) []ContextDoc {
	docs := make([]ContextDoc, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, ContextDoc{Title: c.Title, URL: c.URL, Text: c.Text})
	}
	return docs
}
