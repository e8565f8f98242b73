// Package replay round-trips retrieval results through JSON files so
// saved runs can be inspected and re-scored without touching the judge.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

// Record is the on-disk envelope: the query that produced the result plus
// the full engine output. Judge calls are never re-run on replay.
type Record struct {
	Query      string                  `json:"query"`
	ContextKey string                  `json:"context_key,omitempty"`
	Result     *domain.RetrievalResult `json:"result"`
}

func Write(w io.Writer, record Record) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("encode replay record: %w", err)
	}
	return nil
}

func Read(r io.Reader) (Record, error) {
	var record Record
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return Record{}, fmt.Errorf("decode replay record: %w", err)
	}
	if record.Result == nil {
		return Record{}, fmt.Errorf("decode replay record: missing result")
	}
	return record, nil
}

// Save writes a record atomically: temp file in the target directory,
// then rename.
func Save(path string, record Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create replay directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".replay-*")
	if err != nil {
		return fmt.Errorf("create replay temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, record); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close replay temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename replay file: %w", err)
	}
	return nil
}

func Load(path string) (Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("open replay file: %w", err)
	}
	defer file.Close()
	return Read(file)
}
