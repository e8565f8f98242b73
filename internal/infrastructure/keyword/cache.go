package keyword

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	vocabularyFile = "keywords.json"
	headerMapFile  = "keyword_headers.json"
)

// SaveCache writes the vocabulary and the keyword-to-headers map as two
// JSON files, atomically (write temp, rename), so readers never observe a
// half-written cache.
func SaveCache(dir string, ix *Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create keyword cache dir: %w", err)
	}

	if err := writeJSONAtomic(filepath.Join(dir, vocabularyFile), ix.Keywords()); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, headerMapFile), ix.headers)
}

// LoadCache rebuilds an Index from the JSON cache written by SaveCache.
func LoadCache(dir string, minLen, maxMatch int) (*Index, error) {
	var keywords []string
	if err := readJSON(filepath.Join(dir, vocabularyFile), &keywords); err != nil {
		return nil, err
	}
	headers := make(map[string][]string)
	if err := readJSON(filepath.Join(dir, headerMapFile), &headers); err != nil {
		return nil, err
	}

	ix := &Index{
		canonical: make(map[string]string, len(keywords)),
		headers:   headers,
		minLen:    minLen,
		maxMatch:  maxMatch,
	}
	for _, kw := range keywords {
		ix.canonical[strings.ToLower(kw)] = kw
	}
	return ix, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
