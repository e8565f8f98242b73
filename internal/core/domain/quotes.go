package domain

// Quote is one citation produced by the answer generator.
type Quote struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	ChunkID string `json:"chunk_id,omitempty"`
}

// QuoteCheck is the grounding verdict for a single quote.
type QuoteCheck struct {
	Quote        Quote   `json:"quote"`
	Similarity   float64 `json:"similarity"`
	Valid        bool    `json:"valid"`
	MatchChunkID string  `json:"match_chunk_id,omitempty"`
	MatchText    string  `json:"match_text,omitempty"`
}

// QuoteReport aggregates per-quote checks for one generated answer.
type QuoteReport struct {
	Checks        []QuoteCheck `json:"checks"`
	FractionValid float64      `json:"fraction_valid"`
}
