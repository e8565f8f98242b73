package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/core/ports"
)

// RetrieverConfig carries the tuning knobs of the retrieval pipeline.
// Zero values fall back to the defaults applied in NewRetriever.
type RetrieverConfig struct {
	RRFK                 int
	MaxQueryLength       int
	DefaultMaxChunks     int
	DefaultMinRelevance  float64
	MaxHops              int
	MaxFinalChunks       int
	KeywordHopLimit      int
	KeywordHopBoost      float64
	KeywordLookupHeaders int
	ScoreBasis           string
	PromptCostPer1K      float64
	CompletionCostPer1K  float64
}

const (
	// ScoreBasisHop keeps the score from the hop that first produced a
	// chunk; ScoreBasisBest upgrades it when a later hop sees it higher.
	ScoreBasisHop  = "hop"
	ScoreBasisBest = "best"
)

type RetrieveUseCase struct {
	embedder ports.Embedder
	dense    ports.DenseIndex
	lexical  ports.LexicalIndex
	vocab    ports.Vocabulary
	judge    ports.ContextJudge
	cache    ports.RetrievalCache
	logger   *slog.Logger
	cfg      RetrieverConfig
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	dense ports.DenseIndex,
	lexical ports.LexicalIndex,
	vocab ports.Vocabulary,
	judge ports.ContextJudge,
	cache ports.RetrievalCache,
	logger *slog.Logger,
	cfg RetrieverConfig,
) *RetrieveUseCase {
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 2000
	}
	if cfg.DefaultMaxChunks <= 0 {
		cfg.DefaultMaxChunks = 10
	}
	if cfg.DefaultMinRelevance <= 0 {
		cfg.DefaultMinRelevance = 0.55
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 3
	}
	if cfg.MaxFinalChunks <= 0 {
		cfg.MaxFinalChunks = 15
	}
	if cfg.KeywordHopLimit <= 0 {
		cfg.KeywordHopLimit = 5
	}
	if cfg.KeywordLookupHeaders <= 0 {
		cfg.KeywordLookupHeaders = 10
	}
	if cfg.ScoreBasis != ScoreBasisBest {
		cfg.ScoreBasis = ScoreBasisHop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		embedder: embedder,
		dense:    dense,
		lexical:  lexical,
		vocab:    vocab,
		judge:    judge,
		cache:    cache,
		logger:   logger,
		cfg:      cfg,
	}
}

// Retrieve runs the full pipeline: hybrid Hop 0, the deterministic keyword
// hop, then the judge-guided loop. Retrieval is best-effort past Hop 0;
// only invalid queries and an unreachable index are fatal.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	if err := uc.validateQuery(req.Query); err != nil {
		return nil, err
	}
	if req.MaxChunks <= 0 {
		req.MaxChunks = uc.cfg.DefaultMaxChunks
	}
	if req.MinRelevance <= 0 {
		req.MinRelevance = uc.cfg.DefaultMinRelevance
	}

	if uc.cache != nil {
		if cached, ok := uc.cache.Get(req.Query, req.ContextKey); ok {
			uc.logger.Debug("retrieval_cache_hit", "context_key", req.ContextKey)
			return cached, nil
		}
	}

	chunks, err := uc.hybridHop(ctx, req.Query, req.MaxChunks, req.MinRelevance, req.UseHybrid)
	if err != nil {
		return nil, fmt.Errorf("initial retrieval: %w", err)
	}

	result := &domain.RetrievalResult{
		Context: domain.RetrievalContext{
			Chunks:    make([]domain.Chunk, 0, len(chunks)),
			ChunkHops: make(map[string]domain.HopMarker, len(chunks)),
		},
	}
	uc.accumulate(&result.Context, chunks, domain.HopInitial)
	result.Context.Recompute(req.MinRelevance)

	if req.UseHybrid && uc.vocab != nil {
		result.KeywordHop = uc.keywordHop(ctx, req.Query, &result.Context)
	}

	multiHopRan := false
	if req.UseMultiHop && uc.judge != nil && len(result.Context.Chunks) > 0 {
		if err := uc.runJudgeLoop(ctx, req, result); err != nil {
			return nil, err
		}
		multiHopRan = true
	}

	uc.sortAccumulated(&result.Context)
	if multiHopRan || result.KeywordHop != nil {
		uc.truncateFinal(&result.Context, uc.cfg.MaxFinalChunks)
	}
	result.Context.Recompute(req.MinRelevance)

	uc.logger.Info("retrieval_done",
		"chunks", len(result.Context.Chunks),
		"avg_relevance", result.Context.AvgRelevance,
		"meets_threshold", result.Context.MeetsThreshold,
		"hops", len(result.HopEvaluations),
	)

	if uc.cache != nil {
		uc.cache.Set(req.Query, req.ContextKey, result)
	}
	return result, nil
}

func (uc *RetrieveUseCase) validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return domain.WrapError(domain.ErrInvalidQuery, "validate query", errors.New("empty query"))
	}
	if n := utf8.RuneCountInString(query); n > uc.cfg.MaxQueryLength {
		return domain.WrapError(
			domain.ErrInvalidQuery,
			"validate query",
			fmt.Errorf("query length %d exceeds %d", n, uc.cfg.MaxQueryLength),
		)
	}
	return nil
}

// hybridHop is one retrieval pass: dense search on the normalized query,
// optionally fused with BM25 on the synonym-expanded query.
func (uc *RetrieveUseCase) hybridHop(
	ctx context.Context,
	query string,
	maxChunks int,
	minRelevance float64,
	hybrid bool,
) ([]domain.Chunk, error) {
	normalized := query
	expanded := query
	if uc.vocab != nil {
		normalized = uc.vocab.NormalizeQuery(query)
		expanded = uc.vocab.ExpandQuery(normalized)
	}

	vector, err := uc.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	dense, err := uc.dense.Search(ctx, vector, maxChunks)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	dense = filterBySimilarity(dense, minRelevance)

	if !hybrid || uc.lexical == nil {
		return dense, nil
	}

	lexical := uc.lexical.Search(expanded, 2*maxChunks)
	fused := fuseRRF(dense, lexical, uc.cfg.RRFK)
	fused = trimCandidates(fused, maxChunks)
	normalizeRRFScores(fused, minRelevance)
	return fused, nil
}

func filterBySimilarity(chunks []domain.Chunk, minRelevance float64) []domain.Chunk {
	out := chunks[:0]
	for _, c := range chunks {
		if c.Score >= minRelevance {
			out = append(out, c)
		}
	}
	return out
}

// accumulate merges new chunks into the context, deduplicating by id. With
// the "best" score basis a re-retrieved chunk keeps its original hop marker
// but upgrades to the higher score.
func (uc *RetrieveUseCase) accumulate(rctx *domain.RetrievalContext, chunks []domain.Chunk, hop domain.HopMarker) []string {
	added := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if rctx.ContainsChunk(chunk.ID) {
			if uc.cfg.ScoreBasis == ScoreBasisBest {
				for i := range rctx.Chunks {
					if rctx.Chunks[i].ID == chunk.ID && chunk.Score > rctx.Chunks[i].Score {
						rctx.Chunks[i].Score = chunk.Score
						rctx.Chunks[i].RawScores = chunk.RawScores
					}
				}
			}
			continue
		}
		rctx.Chunks = append(rctx.Chunks, chunk)
		rctx.ChunkHops[chunk.ID] = hop
		added = append(added, chunk.ID)
	}
	return added
}

// sortAccumulated orders chunks by score DESC; the stable sort keeps
// earlier-hop chunks ahead of later ones at equal scores.
func (uc *RetrieveUseCase) sortAccumulated(rctx *domain.RetrievalContext) {
	stableSortByScore(rctx.Chunks)
}

// truncateFinal caps the accumulated context and prunes the hop map down
// to the surviving chunk ids.
func (uc *RetrieveUseCase) truncateFinal(rctx *domain.RetrievalContext, limit int) {
	if limit <= 0 || len(rctx.Chunks) <= limit {
		return
	}
	dropped := rctx.Chunks[limit:]
	rctx.Chunks = rctx.Chunks[:limit]
	for _, chunk := range dropped {
		delete(rctx.ChunkHops, chunk.ID)
	}
}
