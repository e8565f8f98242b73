package ports

import (
	"context"
	"io"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

// DocumentRepository persists and reads corpus document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetBySource(ctx context.Context, source string) (*domain.Document, error)
	ListByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	UpdateMetadata(ctx context.Context, doc *domain.Document) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// ObjectStorage stores source markdown documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// Chunker splits a markdown document into bounded chunks.
type Chunker interface {
	Split(doc *domain.Document, content string) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk texts and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DenseIndex stores chunk vectors and answers nearest-neighbour queries.
// Search results carry a cosine-like similarity in [0,1] as Score.
type DenseIndex interface {
	IndexChunks(ctx context.Context, source string, chunks []domain.Chunk, vectors [][]float32) error
	DeleteBySource(ctx context.Context, source string) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Chunk, error)
}

// LexicalIndex is the in-process BM25 side of the dual index. It is
// rebuilt from stored chunks at process start, so operations are pure.
type LexicalIndex interface {
	Index(source string, chunks []domain.Chunk)
	Remove(source string)
	Search(query string, limit int) []domain.Chunk
	All() []domain.Chunk
}

// VocabularyBuilder rebuilds the keyword vocabulary from the full corpus
// after an ingest and persists its on-disk cache.
type VocabularyBuilder interface {
	Rebuild(chunks []domain.Chunk) error
}

// Vocabulary exposes the harvested keyword set, the keyword-to-headers
// map, query normalization, and synonym expansion.
type Vocabulary interface {
	NormalizeQuery(query string) string
	ExpandQuery(query string) string
	QueryKeywords(query string) []string
	HeadersFor(keyword string) []string
	MatchesChunk(keyword string, chunk domain.Chunk) bool
}

// JudgeVerdict is the structured output of one context-sufficiency call.
type JudgeVerdict struct {
	CanAnswer        bool
	Reasoning        string
	MissingQuery     string
	PromptTokens     int
	CompletionTokens int
}

// ContextJudge decides whether accumulated context suffices to answer.
type ContextJudge interface {
	EvaluateContext(ctx context.Context, query string, chunks []domain.Chunk) (JudgeVerdict, error)
}

// AnswerGenerator creates the final user-facing answer (external
// collaborator; the engine only needs it for end-to-end wiring).
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.Chunk) (string, error)
}

// RetrievalCache memoizes full retrieval results per query/context key.
type RetrievalCache interface {
	Get(query, contextKey string) (*domain.RetrievalResult, bool)
	Set(query, contextKey string, result *domain.RetrievalResult)
	Invalidate(documentSource string)
}
