// Package bm25 is the sparse half of the dual index: an in-process Okapi
// BM25 scorer over chunk text, header, and summary. It is rebuilt from
// stored chunks at process start; there is no on-disk format.
package bm25

import (
	"math"
	"sort"
	"sync"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/infrastructure/textutil"
)

type indexedChunk struct {
	chunk  domain.Chunk
	tf     map[string]int
	length int
}

type Index struct {
	k1 float64
	b  float64

	mu          sync.RWMutex
	chunks      []indexedChunk
	bySource    map[string][]int // source -> positions in chunks (may contain tombstones)
	df          map[string]int
	totalLength int
}

func New(k1, b float64) *Index {
	if k1 <= 0 {
		k1 = 1.5
	}
	if b < 0 || b > 1 {
		b = 0.75
	}
	return &Index{
		k1:       k1,
		b:        b,
		bySource: make(map[string][]int),
		df:       make(map[string]int),
	}
}

// Index adds the chunks of one document, replacing any previous chunks of
// the same source.
func (ix *Index) Index(source string, chunks []domain.Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(source)
	for _, chunk := range chunks {
		tokens := textutil.Tokenize(chunk.Text + " " + chunk.Header + " " + chunk.Summary)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			ix.df[t]++
		}
		ix.bySource[source] = append(ix.bySource[source], len(ix.chunks))
		ix.chunks = append(ix.chunks, indexedChunk{chunk: chunk, tf: tf, length: len(tokens)})
		ix.totalLength += len(tokens)
	}
}

// Remove drops all chunks of a source from the index.
func (ix *Index) Remove(source string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(source)
}

func (ix *Index) removeLocked(source string) {
	positions, ok := ix.bySource[source]
	if !ok {
		return
	}
	for _, pos := range positions {
		entry := ix.chunks[pos]
		if entry.tf == nil {
			continue
		}
		for t := range entry.tf {
			ix.df[t]--
			if ix.df[t] <= 0 {
				delete(ix.df, t)
			}
		}
		ix.totalLength -= entry.length
		ix.chunks[pos] = indexedChunk{}
	}
	delete(ix.bySource, source)
}

// Search returns the top chunks by raw BM25 score, DESC. Scores are
// non-negative and unbounded; zero-score chunks are omitted.
func (ix *Index) Search(query string, limit int) []domain.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tokens := textutil.Tokenize(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	docCount := 0
	for _, entry := range ix.chunks {
		if entry.tf != nil {
			docCount++
		}
	}
	if docCount == 0 {
		return nil
	}
	avgLength := float64(ix.totalLength) / float64(docCount)
	if avgLength <= 0 {
		avgLength = 1
	}

	type scored struct {
		chunk domain.Chunk
		score float64
		pos   int
	}
	results := make([]scored, 0, limit)

	for pos, entry := range ix.chunks {
		if entry.tf == nil {
			continue
		}
		score := 0.0
		for _, t := range tokens {
			tf := entry.tf[t]
			if tf == 0 {
				continue
			}
			df := ix.df[t]
			idf := math.Log(1.0 + (float64(docCount)-float64(df)+0.5)/(float64(df)+0.5))
			norm := float64(tf) * (ix.k1 + 1.0)
			denom := float64(tf) + ix.k1*(1.0-ix.b+ix.b*float64(entry.length)/avgLength)
			score += idf * norm / denom
		}
		if score <= 0 {
			continue
		}
		results = append(results, scored{chunk: entry.chunk, score: score, pos: pos})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].pos < results[j].pos
	})
	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]domain.Chunk, 0, len(results))
	for _, r := range results {
		chunk := r.chunk
		chunk.Score = r.score
		chunk.RawScores.BM25 = r.score
		out = append(out, chunk)
	}
	return out
}

// All returns a snapshot of every live chunk, ordered by insertion. Used
// to rebuild the keyword vocabulary after corpus changes.
func (ix *Index) All() []domain.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]domain.Chunk, 0, len(ix.chunks))
	for _, entry := range ix.chunks {
		if entry.tf != nil {
			out = append(out, entry.chunk)
		}
	}
	return out
}

// Size reports the number of live chunks, mostly for startup logging.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, entry := range ix.chunks {
		if entry.tf != nil {
			n++
		}
	}
	return n
}
