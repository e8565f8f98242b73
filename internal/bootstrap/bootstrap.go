// Package bootstrap wires configuration, infrastructure adapters, and
// use cases into a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/skirmishlab/rulehound/internal/config"
	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/core/ports"
	"github.com/skirmishlab/rulehound/internal/core/usecase"
	"github.com/skirmishlab/rulehound/internal/infrastructure/cache"
	"github.com/skirmishlab/rulehound/internal/infrastructure/chunking"
	"github.com/skirmishlab/rulehound/internal/infrastructure/keyword"
	"github.com/skirmishlab/rulehound/internal/infrastructure/lexical/bm25"
	"github.com/skirmishlab/rulehound/internal/infrastructure/llm/ollama"
	"github.com/skirmishlab/rulehound/internal/infrastructure/queue/nats"
	"github.com/skirmishlab/rulehound/internal/infrastructure/repository/postgres"
	"github.com/skirmishlab/rulehound/internal/infrastructure/resilience"
	"github.com/skirmishlab/rulehound/internal/infrastructure/storage/localfs"
	"github.com/skirmishlab/rulehound/internal/infrastructure/structure"
	"github.com/skirmishlab/rulehound/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC  *usecase.IngestDocumentUseCase
	ProcessUC ports.DocumentProcessor
	Retriever ports.ContextRetriever
	QuoteUC   ports.QuoteValidator
	Generator ports.AnswerGenerator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	structures, err := structure.Load(cfg.RulesStructure, cfg.TeamsStructure)
	if err != nil {
		return nil, fmt.Errorf("load corpus structure: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.JudgeMaxRetries,
		RetryInitialBackoff: cfg.JudgeRetryBackoff,
		RetryMaxBackoff:     4 * cfg.JudgeRetryBackoff,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      cfg.JudgeTimeout,
		BreakerHalfOpenMaxCalls: 2,
	})

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaJudgeModel, cfg.OllamaGenModel, cfg.OllamaEmbedModel).
		WithRateLimit(cfg.JudgeRequestsPerMin).
		WithResilience(executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	judge := ollama.NewJudge(ollamaClient, structures, cfg.MaxChunkLenForEval, cfg.JudgeTimeout)

	dense := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	lexical := bm25.New(cfg.BM25K1, cfg.BM25B)
	chunker := chunking.NewMarkdownSplitter(cfg.MaxChunkTokens, nil)

	synonyms, err := keyword.LoadSynonyms(cfg.SynonymsPath)
	if err != nil {
		return nil, fmt.Errorf("load synonyms: %w", err)
	}
	keywordIndex, err := keyword.LoadCache(cfg.KeywordCachePath, cfg.KeywordMinLength, cfg.KeywordMaxMatch)
	if err != nil {
		logger.Warn("keyword cache unavailable, starting empty", "error", err)
		keywordIndex = keyword.Build(nil, cfg.KeywordMinLength, cfg.KeywordMaxMatch)
	}
	vocab := keyword.NewVocabulary(keywordIndex, synonyms, cfg.KeywordCachePath)

	if err := rebuildLexicalIndex(ctx, repo, storage, chunker, lexical, vocab, logger); err != nil {
		return nil, fmt.Errorf("rebuild lexical index: %w", err)
	}

	retrievalCache := cache.New(cfg.CacheTTL, cfg.CacheMaxEntries)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(
		repo, storage, chunker, embedder, dense, lexical, vocab, retrievalCache, logger)
	retrieveUC := usecase.NewRetrieveUseCase(
		embedder, dense, lexical, vocab, judge, retrievalCache, logger,
		usecase.RetrieverConfig{
			RRFK:                 cfg.RRFK,
			MaxQueryLength:       cfg.MaxQueryLength,
			DefaultMaxChunks:     cfg.MaxChunks,
			DefaultMinRelevance:  cfg.MinRelevance,
			MaxHops:              cfg.MaxHops,
			MaxFinalChunks:       cfg.MaxFinalChunks,
			KeywordHopLimit:      cfg.HopLimit,
			KeywordHopBoost:      cfg.HopHeaderBoost,
			KeywordLookupHeaders: cfg.KeywordLookupHeaders,
			ScoreBasis:           cfg.RerankScoreBasis,
			PromptCostPer1K:      cfg.CostPromptPer1K,
			CompletionCostPer1K:  cfg.CostCompletionPer1K,
		})
	quoteUC := usecase.NewQuoteValidatorUseCase(cfg.QuoteSimilarityThreshold, logger)

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Retriever: retrieveUC,
		QuoteUC:   quoteUC,
		Generator: generator,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// rebuildLexicalIndex re-splits every ready document from object storage
// into the in-process BM25 index. The index lives in memory only, so this
// runs on every process start.
func rebuildLexicalIndex(
	ctx context.Context,
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	chunker ports.Chunker,
	lexical ports.LexicalIndex,
	vocab ports.VocabularyBuilder,
	logger *slog.Logger,
) error {
	docs, err := repo.ListByStatus(ctx, domain.StatusReady)
	if err != nil {
		return fmt.Errorf("list ready documents: %w", err)
	}

	total := 0
	for i := range docs {
		doc := &docs[i]
		chunks, err := resplitDocument(ctx, storage, chunker, doc)
		if err != nil {
			logger.Warn("skipping document during index rebuild",
				"document_id", doc.ID, "source", doc.Source, "error", err)
			continue
		}
		lexical.Index(doc.Source, chunks)
		total += len(chunks)
	}

	if total > 0 {
		if err := vocab.Rebuild(lexical.All()); err != nil {
			logger.Warn("keyword vocabulary rebuild failed", "error", err)
		}
	}

	logger.Info("lexical index rebuilt", "documents", len(docs), "chunks", total)
	return nil
}

func resplitDocument(
	ctx context.Context,
	storage ports.ObjectStorage,
	chunker ports.Chunker,
	doc *domain.Document,
) ([]domain.Chunk, error) {
	reader, err := storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}
	return chunker.Split(doc, string(content))
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
