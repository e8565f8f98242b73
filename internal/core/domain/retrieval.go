package domain

import (
	"strconv"
	"time"
)

// HopMarker records which hop produced a chunk: "0" for the initial hybrid
// retrieval, "D" for the deterministic keyword hop, "1".."N" for judge hops.
type HopMarker string

const (
	HopInitial     HopMarker = "0"
	HopKeywordFill HopMarker = "D"
)

func HopNumber(n int) HopMarker {
	if n <= 0 {
		return HopInitial
	}
	return HopMarker(strconv.Itoa(n))
}

// RetrievalRequest carries one question plus its retrieval tuning knobs.
type RetrievalRequest struct {
	Query        string  `json:"query"`
	ContextKey   string  `json:"context_key,omitempty"`
	MaxChunks    int     `json:"max_chunks"`
	MinRelevance float64 `json:"min_relevance"`
	UseHybrid    bool    `json:"use_hybrid"`
	UseMultiHop  bool    `json:"use_multi_hop"`
}

// RetrievalContext is the accumulated, scored context for one question.
// Chunks are ordered by relevance DESC with insertion order breaking ties.
type RetrievalContext struct {
	Chunks         []Chunk              `json:"chunks"`
	AvgRelevance   float64              `json:"avg_relevance"`
	MeetsThreshold bool                 `json:"meets_threshold"`
	ChunkHops      map[string]HopMarker `json:"chunk_hops"`
}

// Recompute refreshes the average and threshold predicate after any
// mutation of the chunk list.
func (rc *RetrievalContext) Recompute(minRelevance float64) {
	if len(rc.Chunks) == 0 {
		rc.AvgRelevance = 0
		rc.MeetsThreshold = false
		return
	}
	sum := 0.0
	for _, c := range rc.Chunks {
		sum += c.Score
	}
	rc.AvgRelevance = sum / float64(len(rc.Chunks))
	rc.MeetsThreshold = rc.AvgRelevance >= minRelevance
}

// ContainsChunk reports whether a chunk id is already accumulated.
func (rc *RetrievalContext) ContainsChunk(id string) bool {
	_, ok := rc.ChunkHops[id]
	return ok
}

// HopEvaluation is the record of one judge call plus the follow-up
// retrieval it triggered.
type HopEvaluation struct {
	Hop            int           `json:"hop"`
	CanAnswer      bool          `json:"can_answer"`
	Reasoning      string        `json:"reasoning"`
	MissingQuery   string        `json:"missing_query,omitempty"`
	CostUSD        float64       `json:"cost_usd"`
	RetrievalTime  time.Duration `json:"retrieval_time"`
	EvaluationTime time.Duration `json:"evaluation_time"`
	Failed         bool          `json:"failed,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
}

// KeywordHopTrace explains what the deterministic hop saw and did.
type KeywordHopTrace struct {
	QueryKeywords []string `json:"query_keywords"`
	Matched       []string `json:"matched"`
	Unmatched     []string `json:"unmatched"`
	TargetHeaders []string `json:"target_headers"`
	AddedChunkIDs []string `json:"added_chunk_ids"`
}

// RetrievalResult is the full engine output handed to the generator and,
// optionally, to the replay serializer.
type RetrievalResult struct {
	Context        RetrievalContext `json:"context"`
	HopEvaluations []HopEvaluation  `json:"hop_evaluations"`
	KeywordHop     *KeywordHopTrace `json:"keyword_hop,omitempty"`
}
