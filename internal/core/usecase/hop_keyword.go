package usecase

import (
	"context"
	"strings"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

// keywordHop runs the deterministic fill after Hop 0: find rule names the
// query mentions that no accumulated chunk covers, then fetch the sections
// titled after them directly. Failures are logged and swallowed; the hop
// is strictly best-effort.
func (uc *RetrieveUseCase) keywordHop(ctx context.Context, query string, rctx *domain.RetrievalContext) *domain.KeywordHopTrace {
	trace := &domain.KeywordHopTrace{
		QueryKeywords: uc.vocab.QueryKeywords(query),
	}
	if len(trace.QueryKeywords) == 0 {
		return trace
	}

	for _, kw := range trace.QueryKeywords {
		if uc.keywordCovered(kw, rctx.Chunks) {
			trace.Matched = append(trace.Matched, kw)
			continue
		}
		trace.Unmatched = append(trace.Unmatched, kw)
	}
	if len(trace.Unmatched) == 0 {
		return trace
	}

	trace.TargetHeaders = uc.targetHeaders(trace.Unmatched)
	if len(trace.TargetHeaders) == 0 {
		return trace
	}

	lookup := strings.Join(trace.TargetHeaders, ", ")
	vector, err := uc.embedder.EmbedQuery(ctx, lookup)
	if err != nil {
		uc.logger.Warn("keyword_hop_embed_failed", "error", err)
		return trace
	}

	candidates, err := uc.dense.Search(ctx, vector, 2*uc.cfg.KeywordHopLimit)
	if err != nil {
		uc.logger.Warn("keyword_hop_search_failed", "error", err)
		return trace
	}

	boosted := uc.boostHeaderMatches(candidates, trace.TargetHeaders)
	boosted = dropAccumulated(boosted, rctx)
	boosted = trimCandidates(boosted, uc.cfg.KeywordHopLimit)

	trace.AddedChunkIDs = uc.accumulate(rctx, boosted, domain.HopKeywordFill)
	uc.logger.Info("keyword_hop_done",
		"unmatched", len(trace.Unmatched),
		"target_headers", len(trace.TargetHeaders),
		"added", len(trace.AddedChunkIDs),
	)
	return trace
}

// keywordCovered reports whether any accumulated chunk already mentions
// the keyword as a whole word in its header or text.
func (uc *RetrieveUseCase) keywordCovered(kw string, chunks []domain.Chunk) bool {
	for _, chunk := range chunks {
		if uc.vocab.MatchesChunk(kw, chunk) {
			return true
		}
	}
	return false
}

// targetHeaders unions the header lists of the unmatched keywords, capped
// at the configured lookup width.
func (uc *RetrieveUseCase) targetHeaders(unmatched []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, kw := range unmatched {
		for _, header := range uc.vocab.HeadersFor(kw) {
			key := strings.ToLower(header)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, header)
			if len(out) >= uc.cfg.KeywordLookupHeaders {
				return out
			}
		}
	}
	return out
}

// boostHeaderMatches bumps candidates whose header names one of the target
// sections, then re-sorts. Scores stay capped at 1.0.
func (uc *RetrieveUseCase) boostHeaderMatches(candidates []domain.Chunk, headers []string) []domain.Chunk {
	if uc.cfg.KeywordHopBoost <= 0 {
		return candidates
	}
	for i := range candidates {
		if headerMatchesAny(candidates[i].Header, headers) {
			candidates[i].Score += uc.cfg.KeywordHopBoost
			if candidates[i].Score > 1.0 {
				candidates[i].Score = 1.0
			}
		}
	}
	stableSortByScore(candidates)
	return candidates
}

func headerMatchesAny(header string, targets []string) bool {
	if header == "" {
		return false
	}
	lower := strings.ToLower(header)
	for _, target := range targets {
		if containsWholeWord(lower, strings.ToLower(target)) {
			return true
		}
	}
	return false
}

// containsWholeWord checks for needle inside haystack at word boundaries.
// Both arguments must already be lowercased.
func containsWholeWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for from := 0; ; {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		leftOK := start == 0 || !isWordChar(haystack[start-1])
		rightOK := end == len(haystack) || !isWordChar(haystack[end])
		if leftOK && rightOK {
			return true
		}
		from = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '-'
}

func dropAccumulated(chunks []domain.Chunk, rctx *domain.RetrievalContext) []domain.Chunk {
	out := chunks[:0]
	for _, c := range chunks {
		if !rctx.ContainsChunk(c.ID) {
			out = append(out, c)
		}
	}
	return out
}
