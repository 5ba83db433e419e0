// Package rag composes the chat pipeline: load history, embed the query,
// retrieve candidates, filter them into context, generate, dedupe
// citations, persist both turns. The pipeline is linear; a failure at any
// step aborts the request with the triggering error.
package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"newsrag/config"
	"newsrag/internal/apperr"
	"newsrag/internal/metrics"
	"newsrag/internal/resilience"
	"newsrag/internal/retrieval"
	"newsrag/internal/session"
	"newsrag/internal/vectorstore/qdrant"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion from a system and a user message.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Searcher returns the k best-scoring candidates for a vector, descending.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]retrieval.Candidate, error)
}

// Answer is one completed chat turn.
type Answer struct {
	Reply     string               `json:"reply"`
	Citations []retrieval.Citation `json:"citations"`
	SessionID string               `json:"session_id"`
}

type Orchestrator struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	sessions  session.Store
	cfg       config.RAGConfig
	logger    *log.Logger
}

func New(embedder Embedder, searcher Searcher, generator Generator, sessions session.Store, cfg config.RAGConfig, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	return &Orchestrator{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
	}
}

// Chat answers message within the given session. An empty sessionID starts
// a new session. The user and assistant turns are persisted only after
// generation succeeds, in that order.
func (o *Orchestrator) Chat(ctx context.Context, sessionID, message string) (Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Answer{}, apperr.Validationf("message is required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := o.sessions.History(ctx, sessionID)
	if err != nil {
		return Answer{}, fmt.Errorf("load history: %w", err)
	}

	retryOpts := []resilience.Option{
		resilience.WithMaxRetries(o.cfg.MaxRetries),
		resilience.WithBaseDelay(o.cfg.RetryBaseWait),
		resilience.WithRetryNotify(func(int, error) { metrics.UpstreamRetries.Inc() }),
	}

	vector, err := resilience.Do(ctx, o.logger, func(ctx context.Context) ([]float32, error) {
		return o.embedder.Embed(ctx, message)
	}, retryOpts...)
	if err != nil {
		return Answer{}, fmt.Errorf("embed query: %w", err)
	}

	topK := o.cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	candidates, err := o.searcher.Search(ctx, vector, topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	kept := retrieval.Filter(candidates, o.cfg.MinScore, o.cfg.FallbackCount)
	docs := retrieval.ContextDocs(kept)
	if len(docs) == 0 {
		// Zero usable context is not an error: generation proceeds and
		// the prompt tells the model to state uncertainty.
		o.logger.Printf("session %s: no retrieval context for query", sessionID)
	}

	system, user := buildPrompt(history, docs, message)
	reply, err := resilience.Do(ctx, o.logger, func(ctx context.Context) (string, error) {
		return o.generator.Generate(ctx, system, user)
	}, retryOpts...)
	if err != nil {
		return Answer{}, fmt.Errorf("generate: %w", err)
	}

	citations := retrieval.DedupeCitations(kept)

	if err := o.sessions.Append(ctx, sessionID, session.Turn{Message: message, Role: session.RoleUser}); err != nil {
		return Answer{}, fmt.Errorf("persist user turn: %w", err)
	}
	if err := o.sessions.Append(ctx, sessionID, session.Turn{Message: reply, Role: session.RoleAssistant}); err != nil {
		return Answer{}, fmt.Errorf("persist assistant turn: %w", err)
	}

	return Answer{Reply: reply, Citations: citations, SessionID: sessionID}, nil
}

// History exposes the session log for the inspection endpoint.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]session.Turn, error) {
	return o.sessions.History(ctx, sessionID)
}

// Reset deletes a session's log.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	return o.sessions.Reset(ctx, sessionID)
}

// NewQdrantSearcher adapts the vector store client to the Searcher port.
func NewQdrantSearcher(c *qdrant.Client) Searcher {
	return qdrantSearcher{c: c}
}

type qdrantSearcher struct {
	c *qdrant.Client
}

func (s qdrantSearcher) Search(ctx context.Context, vector []float32, k int) ([]retrieval.Candidate, error) {
	results, err := s.c.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	candidates := make([]retrieval.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, retrieval.Candidate{
			Score: r.Score,
			Title: r.Payload.Title,
			URL:   r.Payload.URL,
			Text:  r.Payload.Text,
		})
	}
	return candidates, nil
}
