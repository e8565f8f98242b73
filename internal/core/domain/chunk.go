package domain

// DocType is the closed set of corpus document categories.
type DocType string

const (
	DocTypeCoreRules DocType = "core-rules"
	DocTypeFAQ       DocType = "faq"
	DocTypeTeamRules DocType = "team-rules"
	DocTypeOps       DocType = "ops"
)

func (d DocType) Valid() bool {
	switch d {
	case DocTypeCoreRules, DocTypeFAQ, DocTypeTeamRules, DocTypeOps:
		return true
	}
	return false
}

// ChunkScores keeps the raw scoring stages of a hybrid hop so quality
// evaluation and the quote validator can see how a chunk earned its place.
type ChunkScores struct {
	VectorSim     float64 `json:"vector_sim,omitempty"`
	BM25          float64 `json:"bm25,omitempty"`
	RRF           float64 `json:"rrf,omitempty"`
	NormalizedRRF float64 `json:"normalized_rrf,omitempty"`
}

// Chunk is a semantically bounded excerpt of one corpus document.
type Chunk struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Header      string  `json:"header"`
	HeaderLevel int     `json:"header_level"`
	Position    int     `json:"position"`
	Source      string  `json:"source"`
	DocType     DocType `json:"doc_type"`
	Published   string  `json:"publication_date,omitempty"`
	Summary     string  `json:"summary,omitempty"`

	Score     float64     `json:"score"`
	RawScores ChunkScores `json:"raw_scores,omitempty"`
}
