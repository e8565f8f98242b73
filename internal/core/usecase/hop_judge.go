package usecase

import (
	"context"
	"time"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/core/ports"
)

// runJudgeLoop drives the multi-hop accumulation in a dedicated worker
// goroutine, so both synchronous and request-scoped callers get the same
// sequential hop semantics. The worker owns the result exclusively until
// it reports back; an abandoned worker never mutates state the caller
// still reads.
func (uc *RetrieveUseCase) runJudgeLoop(ctx context.Context, req domain.RetrievalRequest, result *domain.RetrievalResult) error {
	done := make(chan struct{}, 1)
	go func() {
		uc.judgeLoop(ctx, req, result)
		done <- struct{}{}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// judgeLoop asks the judge whether the accumulated context answers the
// original question and, while it names a gap, fills it with one more
// hybrid retrieval. Every failure mode past this point degrades to
// returning what has been accumulated so far.
func (uc *RetrieveUseCase) judgeLoop(ctx context.Context, req domain.RetrievalRequest, result *domain.RetrievalResult) {
	for hop := 1; hop <= uc.cfg.MaxHops; hop++ {
		eval := domain.HopEvaluation{Hop: hop}

		evalStart := time.Now()
		verdict, err := uc.judge.EvaluateContext(ctx, req.Query, result.Context.Chunks)
		eval.EvaluationTime = time.Since(evalStart)

		if err != nil {
			eval.Failed = true
			eval.FailureReason = err.Error()
			result.HopEvaluations = append(result.HopEvaluations, eval)
			uc.logger.Warn("judge_hop_failed", "hop", hop, "error", err)
			return
		}

		eval.CanAnswer = verdict.CanAnswer
		eval.Reasoning = verdict.Reasoning
		eval.MissingQuery = verdict.MissingQuery
		eval.CostUSD = uc.hopCost(verdict)

		if verdict.CanAnswer || verdict.MissingQuery == "" {
			result.HopEvaluations = append(result.HopEvaluations, eval)
			uc.logger.Info("judge_hop_done",
				"hop", hop,
				"can_answer", verdict.CanAnswer,
				"cost_usd", eval.CostUSD,
			)
			return
		}

		retrievalStart := time.Now()
		chunks, err := uc.hybridHop(ctx, verdict.MissingQuery, req.MaxChunks, req.MinRelevance, req.UseHybrid)
		eval.RetrievalTime = time.Since(retrievalStart)

		if err != nil {
			eval.Failed = true
			eval.FailureReason = err.Error()
			result.HopEvaluations = append(result.HopEvaluations, eval)
			uc.logger.Warn("judge_hop_retrieval_failed", "hop", hop, "error", err)
			return
		}

		added := uc.markHopChunks(result, chunks, hop)
		result.HopEvaluations = append(result.HopEvaluations, eval)
		uc.logger.Info("judge_hop_done",
			"hop", hop,
			"can_answer", false,
			"missing_query", verdict.MissingQuery,
			"added", len(added),
			"cost_usd", eval.CostUSD,
		)
	}
}

func (uc *RetrieveUseCase) markHopChunks(result *domain.RetrievalResult, chunks []domain.Chunk, hop int) []string {
	return uc.accumulate(&result.Context, chunks, domain.HopNumber(hop))
}

// hopCost prices one judge call at the model's per-1k-token rates.
func (uc *RetrieveUseCase) hopCost(verdict ports.JudgeVerdict) float64 {
	prompt := float64(verdict.PromptTokens) / 1000.0 * uc.cfg.PromptCostPer1K
	completion := float64(verdict.CompletionTokens) / 1000.0 * uc.cfg.CompletionCostPer1K
	return prompt + completion
}
