package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/core/ports"
)

// ProcessDocumentUseCase turns an uploaded markdown document into indexed
// chunks: front matter, chunking, embeddings, the dense and sparse
// indices, and the keyword vocabulary rebuild.
type ProcessDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	chunker ports.Chunker
	embed   ports.Embedder
	dense   ports.DenseIndex
	lexical ports.LexicalIndex
	vocab   ports.VocabularyBuilder
	cache   ports.RetrievalCache
	logger  *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	chunker ports.Chunker,
	embed ports.Embedder,
	dense ports.DenseIndex,
	lexical ports.LexicalIndex,
	vocab ports.VocabularyBuilder,
	cache ports.RetrievalCache,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:    repo,
		storage: storage,
		chunker: chunker,
		embed:   embed,
		dense:   dense,
		lexical: lexical,
		vocab:   vocab,
		cache:   cache,
		logger:  logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusIndexing, ""); err != nil {
		return fmt.Errorf("set status=indexing: %w", err)
	}

	doc, chunkCount, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SetChunkCount(ctx, doc.ID, chunkCount); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}
	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	uc.logger.Info("document_indexed", "document_id", doc.ID, "source", doc.Source, "chunks", chunkCount)
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch document by id: %w", err)
	}

	content, err := uc.readContent(ctx, doc)
	if err != nil {
		return nil, 0, err
	}

	chunks, err := uc.chunker.Split(doc, content)
	if err != nil {
		return nil, 0, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, 0, domain.WrapError(domain.ErrInvalidDocument, "chunk document", errors.New("chunking produced zero chunks"))
	}
	// Split fills source/doc_type/section from front matter; persist them.
	if err := uc.repo.UpdateMetadata(ctx, doc); err != nil {
		return nil, 0, fmt.Errorf("persist document metadata: %w", err)
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return nil, 0, err
	}

	if err := uc.index(ctx, doc.Source, chunks, vectors); err != nil {
		return nil, 0, err
	}

	if err := uc.vocab.Rebuild(uc.lexical.All()); err != nil {
		return nil, 0, fmt.Errorf("rebuild keyword vocabulary: %w", err)
	}
	if uc.cache != nil {
		uc.cache.Invalidate(doc.Source)
	}

	return doc, len(chunks), nil
}

func (uc *ProcessDocumentUseCase) readContent(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read stored document: %w", err)
	}
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrInvalidDocument, "read stored document", errors.New("empty document"))
	}
	return string(raw), nil
}

func (uc *ProcessDocumentUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := uc.embed.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(vectors), len(chunks))
	}
	return vectors, nil
}

// index writes both halves of the dual index, dense first. A dense failure
// leaves the lexical side untouched; re-ingesting the same source replaces
// its chunks in both.
func (uc *ProcessDocumentUseCase) index(ctx context.Context, source string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := uc.dense.DeleteBySource(ctx, source); err != nil {
		return fmt.Errorf("clear dense index: %w", err)
	}
	if err := uc.dense.IndexChunks(ctx, source, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in dense store: %w", err)
	}
	uc.lexical.Index(source, chunks)
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
