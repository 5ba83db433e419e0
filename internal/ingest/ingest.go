// Package ingest is the batch pipeline that builds the corpus: fetch each
// URL, chunk the article, embed the chunks in paced batches, upsert them
// into the vector store, and append the raw chunks to a local backup log.
// One URL failing is logged and skipped; the batch carries on.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"newsrag/config"
	"newsrag/internal/chunker"
	"newsrag/internal/metrics"
	"newsrag/internal/resilience"
	"newsrag/internal/scraper"
	"newsrag/internal/vectorstore/qdrant"
)

// Fetcher retrieves and extracts one article.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (scraper.Document, error)
}

// Embedder embeds a batch of texts, output order matching input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the vector store surface the pipeline needs.
type Store interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, points []qdrant.Point) error
}

// Report summarises a batch run.
type Report struct {
	Processed int
	Total     int
}

type Pipeline struct {
	fetcher   Fetcher
	embedder  Embedder
	store     Store
	backup    *BackupLog
	cfg       config.IngestConfig
	dim       int
	logger    *log.Logger
	retryOpts []resilience.Option
}

// New assembles a pipeline. backup may be nil to skip the local log.
// retryOpts tune the embedding retry loop; retries are always counted in
// the upstream retry metric.
func New(fetcher Fetcher, embedder Embedder, store Store, backup *BackupLog, cfg config.IngestConfig, dim int, logger *log.Logger, retryOpts ...resilience.Option) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	retryOpts = append(retryOpts, resilience.WithRetryNotify(func(int, error) { metrics.UpstreamRetries.Inc() }))
	return &Pipeline{
		fetcher:   fetcher,
		embedder:  embedder,
		store:     store,
		backup:    backup,
		cfg:       cfg,
		dim:       dim,
		logger:    logger,
		retryOpts: retryOpts,
	}
}

// Run ingests urls sequentially. URLs are not parallelised: the upstream
// embedding service is rate limited and pacing is part of the contract.
func (p *Pipeline) Run(ctx context.Context, urls []string) (Report, error) {
	if err := p.store.EnsureCollection(ctx, p.dim); err != nil {
		return Report{Total: len(urls)}, fmt.Errorf("ensure collection: %w", err)
	}

	report := Report{Total: len(urls)}
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := p.ingestURL(ctx, url); err != nil {
			metrics.IngestDocs.WithLabelValues("error").Inc()
			p.logger.Printf("ingest %s failed: %v", url, err)
			continue
		}
		report.Processed++
	}
	p.logger.Printf("ingest complete: %d/%d", report.Processed, report.Total)
	return report, nil
}

func (p *Pipeline) ingestURL(ctx context.Context, url string) error {
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if len(doc.Text) < p.cfg.MinDocChars {
		metrics.IngestDocs.WithLabelValues("skipped").Inc()
		p.logger.Printf("skipping %s: extracted %d chars, floor is %d", url, len(doc.Text), p.cfg.MinDocChars)
		return nil
	}

	parts := chunker.Split(doc.Text, chunker.Options{
		MaxChars:  p.cfg.MaxChars,
		Overlap:   p.cfg.Overlap,
		MaxChunks: p.cfg.MaxChunks,
	})
	if len(parts) == 0 {
		metrics.IngestDocs.WithLabelValues("skipped").Inc()
		p.logger.Printf("skipping %s: no substantive chunks", url)
		return nil
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	points := make([]qdrant.Point, 0, len(parts))
	now := time.Now()
	for start := 0; start < len(parts); start += batchSize {
		end := start + batchSize
		if end > len(parts) {
			end = len(parts)
		}
		batch := parts[start:end]

		vecs, err := resilience.Do(ctx, p.logger, func(ctx context.Context) ([][]float32, error) {
			return p.embedder.EmbedBatch(ctx, batch)
		}, p.retryOpts...)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d want %d", len(vecs), len(batch))
		}

		for i, text := range batch {
			points = append(points, qdrant.Point{
				ID:     uuid.NewString(),
				Vector: vecs[i],
				Payload: qdrant.Payload{
					Title: doc.Title,
					URL:   doc.URL,
					Text:  text,
				},
			})
		}

		// Pace batches for rate-limit courtesy.
		if end < len(parts) && p.cfg.BatchDelay > 0 {
			select {
			case <-time.After(p.cfg.BatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := p.store.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	if p.backup != nil {
		for _, pt := range points {
			rec := ChunkRecord{
				ID:         pt.ID,
				URL:        pt.Payload.URL,
				Title:      pt.Payload.Title,
				Text:       pt.Payload.Text,
				IngestedAt: now,
			}
			if err := p.backup.Append(rec); err != nil {
				return fmt.Errorf("backup log: %w", err)
			}
		}
	}

	metrics.IngestDocs.WithLabelValues("ok").Inc()
	p.logger.Printf("ingested %s: %d chunks", url, len(points))
	return nil
}
