package ports

import (
	"context"
	"io"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

// DocumentIngestor is the inbound contract for corpus document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ContextRetriever is the single engine entry point.
type ContextRetriever interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error)
}

// QuoteValidator grounds generator quotes against retrieved chunks.
type QuoteValidator interface {
	Validate(quotes []domain.Quote, chunks []domain.Chunk) domain.QuoteReport
}
