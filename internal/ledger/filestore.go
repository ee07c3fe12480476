package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const dayFormat = "2006-01-02"

// FileStore keeps one JSON ledger blob per day in a directory:
// signatures_YYYY-MM-DD.json and, when duplicates occurred,
// duplicates_YYYY-MM-DD.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) ledgerPath(day time.Time) string {
	return filepath.Join(f.dir, "signatures_"+day.Format(dayFormat)+".json")
}

func (f *FileStore) duplicatesPath(day time.Time) string {
	return filepath.Join(f.dir, "duplicates_"+day.Format(dayFormat)+".json")
}

func (f *FileStore) Load(ctx context.Context, day time.Time) (Set, error) {
	raw, err := os.ReadFile(f.ledgerPath(day))
	if errors.Is(err, os.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", day.Format(dayFormat), err)
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", day.Format(dayFormat), err)
	}
	return NewSet(report.Signatures...), nil
}

func (f *FileStore) Save(ctx context.Context, day time.Time, report Report) error {
	return writeJSON(f.ledgerPath(day), report)
}

type duplicateReport struct {
	Signatures []string  `json:"signatures"`
	Count      int       `json:"count"`
	Timestamp  time.Time `json:"timestamp"`
}

func (f *FileStore) SaveDuplicates(ctx context.Context, day time.Time, sigs []string) error {
	return writeJSON(f.duplicatesPath(day), duplicateReport{
		Signatures: sigs,
		Count:      len(sigs),
		Timestamp:  day,
	})
}

// writeJSON writes via a temp file and rename so a crash never leaves a
// truncated ledger behind.
func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
