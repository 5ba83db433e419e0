package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const backupFileName = "ingest-backup.jsonl"

// ChunkRecord is one line of the append-only backup log: enough to rebuild
// the vector store without re-scraping.
type ChunkRecord struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	IngestedAt time.Time `json:"ingested_at"`
}

// BackupLog appends chunk records as JSON lines to a local file.
type BackupLog struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// OpenBackupLog creates dir if needed and opens the log for appending.
func OpenBackupLog(dir string) (*BackupLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, backupFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open backup log: %w", err)
	}
	return &BackupLog{f: f, enc: json.NewEncoder(f)}, nil
}

func (b *BackupLog) Append(rec ChunkRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enc.Encode(rec)
}

func (b *BackupLog) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Close()
}
