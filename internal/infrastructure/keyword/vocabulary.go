package keyword

import (
	"fmt"
	"sync/atomic"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

// Vocabulary bundles the harvested index with the synonym dictionary. The
// index pointer is swapped atomically on corpus rebuilds, so retrieval
// readers never observe a half-built vocabulary.
type Vocabulary struct {
	ix       atomic.Pointer[Index]
	synonyms *Synonyms
	cacheDir string
}

// NewVocabulary wraps an already-built index. cacheDir may be empty to
// disable on-disk persistence on rebuilds.
func NewVocabulary(ix *Index, syn *Synonyms, cacheDir string) *Vocabulary {
	if syn == nil {
		syn = NewSynonyms(nil)
	}
	v := &Vocabulary{synonyms: syn, cacheDir: cacheDir}
	v.ix.Store(ix)
	return v
}

func (v *Vocabulary) NormalizeQuery(query string) string {
	return v.ix.Load().NormalizeQuery(query)
}

func (v *Vocabulary) QueryKeywords(query string) []string {
	return v.ix.Load().QueryKeywords(query)
}

func (v *Vocabulary) HeadersFor(keyword string) []string {
	return v.ix.Load().HeadersFor(keyword)
}

func (v *Vocabulary) MatchesChunk(keyword string, chunk domain.Chunk) bool {
	return v.ix.Load().MatchesChunk(keyword, chunk)
}

// ExpandQuery applies the synonym dictionary to an already normalized
// query. The result feeds BM25 only.
func (v *Vocabulary) ExpandQuery(query string) string {
	return v.synonyms.Expand(query)
}

// Rebuild harvests a fresh index from the full chunk set, persists the
// cache files, then swaps the live index.
func (v *Vocabulary) Rebuild(chunks []domain.Chunk) error {
	current := v.ix.Load()
	fresh := Build(chunks, current.minLen, current.maxMatch)
	if v.cacheDir != "" {
		if err := SaveCache(v.cacheDir, fresh); err != nil {
			return fmt.Errorf("persist keyword cache: %w", err)
		}
	}
	v.ix.Store(fresh)
	return nil
}
