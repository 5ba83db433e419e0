package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsrag/config"
	"newsrag/internal/resilience"
	"newsrag/internal/scraper"
	"newsrag/internal/vectorstore/qdrant"
)

type fakeFetcher struct {
	docs map[string]scraper.Document
	errs map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (scraper.Document, error) {
	if err, ok := f.errs[url]; ok {
		return scraper.Document{}, err
	}
	return f.docs[url], nil
}

type fakeEmbedder struct {
	batches  [][]string
	failures int
	failWith error
	calls    int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	f.batches = append(f.batches, texts)
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(len(texts[i]))}
	}
	return vecs, nil
}

type fakeStore struct {
	ensured   int
	ensureDim int
	points    []qdrant.Point
}

func (f *fakeStore) EnsureCollection(_ context.Context, dim int) error {
	f.ensured++
	f.ensureDim = dim
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, points []qdrant.Point) error {
	f.points = append(f.points, points...)
	return nil
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		MinDocChars: 500,
		MaxChars:    1500,
		Overlap:     150,
		MaxChunks:   30,
		BatchSize:   2,
	}
}

func article(chars int) string {
	var b strings.Builder
	for b.Len() < chars {
		b.WriteString(strings.Repeat("word ", 30))
		b.WriteString("End of sentence. ")
	}
	return b.String()[:chars]
}

func TestRunIngestsAndUpserts(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{docs: map[string]scraper.Document{
		"https://a": {URL: "https://a", Title: "A", Text: article(4000)},
	}}
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	p := New(fetcher, embedder, store, nil, testIngestConfig(), 1536, nil)

	report, err := p.Run(context.Background(), []string{"https://a"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 || report.Total != 1 {
		t.Fatalf("report = %+v", report)
	}
	if store.ensured != 1 || store.ensureDim != 1536 {
		t.Fatalf("collection not ensured with dim: %+v", store)
	}
	if len(store.points) == 0 {
		t.Fatal("expected upserted points")
	}
	for i, pt := range store.points {
		if pt.ID == "" {
			t.Fatalf("point %d missing id", i)
		}
		if pt.Payload.URL != "https://a" || pt.Payload.Title != "A" {
			t.Fatalf("point %d payload = %+v", i, pt.Payload)
		}
		if len(pt.Vector) == 0 {
			t.Fatalf("point %d missing vector", i)
		}
	}
	for i, batch := range embedder.batches {
		if len(batch) > 2 {
			t.Fatalf("batch %d exceeds configured size: %d", i, len(batch))
		}
	}
}

func TestRunSkipsShortDocuments(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{docs: map[string]scraper.Document{
		"https://short": {URL: "https://short", Text: "barely anything here"},
	}}
	store := &fakeStore{}
	p := New(fetcher, &fakeEmbedder{}, store, nil, testIngestConfig(), 8, nil)

	report, err := p.Run(context.Background(), []string{"https://short"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("a skipped URL is still handled: %+v", report)
	}
	if len(store.points) != 0 {
		t.Fatalf("short doc must not be upserted, got %d points", len(store.points))
	}
}

func TestRunToleratesPerURLFailure(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{
		docs: map[string]scraper.Document{
			"https://good": {URL: "https://good", Title: "G", Text: article(2000)},
		},
		errs: map[string]error{
			"https://bad": errors.New("connection refused"),
		},
	}
	store := &fakeStore{}
	p := New(fetcher, &fakeEmbedder{}, store, nil, testIngestConfig(), 8, nil)

	report, err := p.Run(context.Background(), []string{"https://bad", "https://good"})
	if err != nil {
		t.Fatalf("Run should not abort on one failure: %v", err)
	}
	if report.Processed != 1 || report.Total != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(store.points) == 0 {
		t.Fatal("the good URL should still be ingested")
	}
}

func TestRunRetriesTransientEmbedFailures(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{docs: map[string]scraper.Document{
		"https://a": {URL: "https://a", Title: "A", Text: article(1000)},
	}}
	embedder := &fakeEmbedder{
		failures: 2,
		failWith: &resilience.UpstreamError{Status: 429, Msg: "rate limit"},
	}
	store := &fakeStore{}
	p := New(fetcher, embedder, store, nil, testIngestConfig(), 8, nil,
		resilience.WithMaxRetries(3),
		resilience.WithBaseDelay(time.Millisecond),
	)

	report, err := p.Run(context.Background(), []string{"https://a"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if embedder.calls != 3 {
		t.Fatalf("expected 3 embed attempts, got %d", embedder.calls)
	}
	if len(store.points) == 0 {
		t.Fatal("expected upserted points after retries")
	}
}

func TestRunEmbedRetryBudgetIsConfigured(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{docs: map[string]scraper.Document{
		"https://a": {URL: "https://a", Title: "A", Text: article(1000)},
	}}
	embedder := &fakeEmbedder{
		failures: 10,
		failWith: &resilience.UpstreamError{Status: 503, Msg: "overloaded"},
	}
	store := &fakeStore{}
	p := New(fetcher, embedder, store, nil, testIngestConfig(), 8, nil,
		resilience.WithMaxRetries(2),
		resilience.WithBaseDelay(time.Millisecond),
	)

	report, err := p.Run(context.Background(), []string{"https://a"})
	if err != nil {
		t.Fatalf("Run should not abort on one failure: %v", err)
	}
	if report.Processed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if embedder.calls != 2 {
		t.Fatalf("expected exactly 2 embed attempts, got %d", embedder.calls)
	}
	if len(store.points) != 0 {
		t.Fatalf("failed URL must not be upserted, got %d points", len(store.points))
	}
}

func TestRunWritesBackupLog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	backup, err := OpenBackupLog(dir)
	if err != nil {
		t.Fatalf("OpenBackupLog: %v", err)
	}
	defer backup.Close()

	fetcher := &fakeFetcher{docs: map[string]scraper.Document{
		"https://a": {URL: "https://a", Title: "A", Text: article(2000)},
	}}
	store := &fakeStore{}
	p := New(fetcher, &fakeEmbedder{}, store, backup, testIngestConfig(), 8, nil)

	if _, err := p.Run(context.Background(), []string{"https://a"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, backupFileName))
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		var rec ChunkRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid json: %v", lines, err)
		}
		if rec.ID == "" || rec.URL != "https://a" || rec.Text == "" {
			t.Fatalf("incomplete record: %+v", rec)
		}
		lines++
	}
	if lines != len(store.points) {
		t.Fatalf("backup lines %d != upserted points %d", lines, len(store.points))
	}
}

func TestRunEmptyURLList(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	p := New(&fakeFetcher{}, &fakeEmbedder{}, store, nil, testIngestConfig(), 8, nil)
	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 0 || report.Total != 0 {
		t.Fatalf("report = %+v", report)
	}
}
