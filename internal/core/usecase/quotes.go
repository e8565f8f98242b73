package usecase

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

// QuoteValidatorUseCase grounds generator citations against the retrieved
// chunks by fuzzy text matching. It never mutates the retrieval context;
// invalid quotes are only reported.
type QuoteValidatorUseCase struct {
	threshold float64
	logger    *slog.Logger
}

func NewQuoteValidatorUseCase(threshold float64, logger *slog.Logger) *QuoteValidatorUseCase {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.98
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteValidatorUseCase{threshold: threshold, logger: logger}
}

func (uc *QuoteValidatorUseCase) Validate(quotes []domain.Quote, chunks []domain.Chunk) domain.QuoteReport {
	report := domain.QuoteReport{Checks: make([]domain.QuoteCheck, 0, len(quotes))}
	if len(quotes) == 0 {
		return report
	}

	valid := 0
	for _, quote := range quotes {
		check := uc.checkQuote(quote, chunks)
		if check.Valid {
			valid++
		}
		report.Checks = append(report.Checks, check)
		uc.logger.Debug("quote_checked",
			"title", quote.Title,
			"similarity", check.Similarity,
			"valid", check.Valid,
		)
	}
	report.FractionValid = float64(valid) / float64(len(quotes))

	if invalid := len(quotes) - valid; invalid > 0 {
		uc.logger.Warn("quotes_invalid", "count", invalid, "total", len(quotes))
	}
	return report
}

func (uc *QuoteValidatorUseCase) checkQuote(quote domain.Quote, chunks []domain.Chunk) domain.QuoteCheck {
	check := domain.QuoteCheck{Quote: quote}
	normalizedQuote := normalizeQuoteText(quote.Text)
	if normalizedQuote == "" {
		return check
	}

	for _, chunk := range chunks {
		normalizedChunk := normalizeQuoteText(chunk.Text)
		if strings.Contains(normalizedChunk, normalizedQuote) {
			check.Similarity = 1.0
			check.Valid = true
			check.MatchChunkID = shortChunkID(chunk.ID)
			check.MatchText = quote.Text
			return check
		}

		sim, window := bestWindowMatch(normalizedQuote, chunk.Text)
		if sim > check.Similarity {
			check.Similarity = sim
			check.MatchChunkID = shortChunkID(chunk.ID)
			check.MatchText = window
		}
	}

	check.Valid = check.Similarity >= uc.threshold
	return check
}

var (
	emphasisPattern = regexp.MustCompile(`\*\*|__|[*_` + "`" + `]`)
	ellipsisPattern = regexp.MustCompile(`\x{2026}|\.\.\.`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// normalizeQuoteText strips markdown emphasis, ellipses and the explicit
// "[…]" separator, lowercases, and collapses whitespace.
func normalizeQuoteText(s string) string {
	s = strings.ReplaceAll(s, "[…]", " ")
	s = emphasisPattern.ReplaceAllString(s, "")
	s = ellipsisPattern.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// bestWindowMatch slides windows of a few lengths proportional to the
// quote across the chunk's original text at coarse offsets and keeps the
// best ratio-style score. Returns the score plus the original-text window
// for display.
func bestWindowMatch(normalizedQuote, chunkText string) (float64, string) {
	if chunkText == "" {
		return 0, ""
	}

	quoteLen := len(normalizedQuote)
	step := quoteLen / 4
	if step < 8 {
		step = 8
	}

	best := 0.0
	bestWindow := ""
	for _, scale := range []float64{0.8, 1.0, 1.2} {
		window := int(float64(quoteLen) * scale)
		if window < 1 {
			window = 1
		}
		if window > len(chunkText) {
			window = len(chunkText)
		}
		for offset := 0; offset < len(chunkText); offset += step {
			end := offset + window
			if end > len(chunkText) {
				end = len(chunkText)
			}
			candidate := chunkText[offset:end]
			sim := matchRatio(normalizedQuote, normalizeQuoteText(candidate))
			if sim > best {
				best = sim
				bestWindow = candidate
			}
			if end == len(chunkText) {
				break
			}
		}
	}
	return best, strings.TrimSpace(bestWindow)
}

// matchRatio is an edit-distance ratio in [0,1]: 1 minus the Levenshtein
// distance over the longer length.
func matchRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	dist := levenshtein(a, b)
	return 1.0 - float64(dist)/float64(longer)
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// shortChunkID keeps the leading UUID segment, enough to identify a chunk
// in logs and API responses.
func shortChunkID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}
