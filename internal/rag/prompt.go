package rag

import (
	"fmt"
	"strings"

	"newsrag/internal/retrieval"
	"newsrag/internal/session"
)

const systemPrompt = `You are a news assistant. Answer the user's question using only the
provided article excerpts and the conversation so far. When the excerpts do
not contain the answer, say so plainly instead of guessing. Keep answers
concise and mention which articles support them.`

// buildPrompt renders the context documents and conversation history into
// the user message handed to the generative model.
func buildPrompt(history []session.Turn, docs []retrieval.ContextDoc, question string) (system, user string) {
	var b strings.Builder

	b.WriteString("Article excerpts:\n")
	if len(docs) == 0 {
		b.WriteString("(no relevant articles were found for this question)\n")
	}
	for i, d := range docs {
		title := d.Title
		if title == "" {
			title = d.URL
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, title, d.URL, d.Text)
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return systemPrompt, b.String()
}
