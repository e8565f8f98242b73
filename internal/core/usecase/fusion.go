package usecase

import (
	"sort"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

type fusedCandidate struct {
	chunk domain.Chunk
	score float64
}

// fuseRRF merges the dense and lexical ranked lists with Reciprocal Rank
// Fusion. Raw per-list scores survive in RawScores; the returned Score is
// the raw RRF value, sorted DESC with deterministic tie-breaks.
func fuseRRF(dense, lexical []domain.Chunk, rrfK int) []domain.Chunk {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(dense)+len(lexical))
	addList := func(chunks []domain.Chunk) {
		for rank, chunk := range chunks {
			candidate := acc[chunk.ID]
			candidate.chunk = mergeChunkScores(candidate.chunk, chunk)
			candidate.score += 1.0 / float64(rrfK+rank+1)
			acc[chunk.ID] = candidate
		}
	}

	addList(dense)
	addList(lexical)

	out := make([]domain.Chunk, 0, len(acc))
	for _, c := range acc {
		chunk := c.chunk
		chunk.Score = c.score
		chunk.RawScores.RRF = c.score
		out = append(out, chunk)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// mergeChunkScores keeps one chunk record per id while remembering the raw
// score each list contributed.
func mergeChunkScores(current, candidate domain.Chunk) domain.Chunk {
	if current.ID == "" {
		return candidate
	}
	if candidate.RawScores.VectorSim > current.RawScores.VectorSim {
		current.RawScores.VectorSim = candidate.RawScores.VectorSim
	}
	if candidate.RawScores.BM25 > current.RawScores.BM25 {
		current.RawScores.BM25 = candidate.RawScores.BM25
	}
	return current
}

// normalizeRRFScores min-max stretches RRF scores of an already-truncated
// candidate list into [minRelevance, 1.0] and writes them as the final
// relevance. A degenerate range maps every candidate to 1.0.
func normalizeRRFScores(chunks []domain.Chunk, minRelevance float64) {
	if len(chunks) == 0 {
		return
	}

	lowest := chunks[0].Score
	highest := chunks[0].Score
	for _, c := range chunks[1:] {
		if c.Score < lowest {
			lowest = c.Score
		}
		if c.Score > highest {
			highest = c.Score
		}
	}

	span := highest - lowest
	for i := range chunks {
		normalized := 1.0
		if span > 0 {
			normalized = minRelevance + (chunks[i].Score-lowest)/span*(1.0-minRelevance)
		}
		chunks[i].Score = normalized
		chunks[i].RawScores.NormalizedRRF = normalized
	}
}

func stableSortByScore(chunks []domain.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
}

func trimCandidates(chunks []domain.Chunk, limit int) []domain.Chunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}
