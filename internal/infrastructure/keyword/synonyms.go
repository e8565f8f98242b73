package keyword

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Synonyms is a static, directed expansion dictionary. Expansions are for
// BM25 matching only; the embedder never sees them.
type Synonyms struct {
	entries map[string][]string
}

func NewSynonyms(entries map[string][]string) *Synonyms {
	lowered := make(map[string][]string, len(entries))
	for k, v := range entries {
		lowered[strings.ToLower(k)] = v
	}
	return &Synonyms{entries: lowered}
}

// LoadSynonyms reads a YAML mapping term -> [expansions]. A missing file
// yields an empty dictionary: expansion is optional.
func LoadSynonyms(path string) (*Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSynonyms(nil), nil
		}
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}

	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse synonyms file: %w", err)
	}
	return NewSynonyms(entries), nil
}

// Expand appends the expansions of every query token that matches a
// dictionary entry. The original query text is kept intact in front.
func (s *Synonyms) Expand(query string) string {
	if len(s.entries) == 0 {
		return query
	}

	seen := make(map[string]struct{})
	var extra []string
	for _, field := range strings.Fields(query) {
		core, _, _ := trimPunct(field)
		expansions, ok := s.entries[strings.ToLower(core)]
		if !ok {
			continue
		}
		for _, e := range expansions {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			extra = append(extra, e)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}
