package ollama

import (
	"fmt"
	"strings"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/infrastructure/structure"
)

func buildJudgePrompt(query string, chunks []domain.Chunk, maxChunkLen int, docs *structure.Docs) string {
	var b strings.Builder

	b.WriteString(`You judge whether the retrieved rule excerpts below are enough to answer the question.
Return strict JSON with keys:
can_answer (bool), reasoning (string), missing_query (string or null).
If context is insufficient, missing_query must be a short focused retrieval query for the missing rule.
No markdown, no extra keys.

Question:
`)
	b.WriteString(query)
	b.WriteString("\n\nRetrieved context:\n")

	for idx, chunk := range chunks {
		header := chunk.Header
		if header == "" {
			header = chunk.Source
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", idx+1, header, chunk.DocType, truncateForEvaluation(chunk.Text, maxChunkLen))
	}

	if outline := docs.RulesOutline(); outline != "" {
		b.WriteString("Rule sections available in the corpus:\n")
		b.WriteString(outline)
		b.WriteString("\n\n")
	}
	if outline := docs.TeamsOutline(query); outline != "" {
		b.WriteString("Team rosters relevant to the question:\n")
		b.WriteString(outline)
		b.WriteString("\n")
	}

	return b.String()
}

// truncateForEvaluation cuts a chunk for the judge prompt but appends any
// section headings from the cut zone so the judge still sees what the
// tail of the chunk covers.
func truncateForEvaluation(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	head := text[:maxLen]
	tail := text[maxLen:]

	var headers []string
	for _, line := range strings.Split(tail, "\n") {
		if strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ") {
			headers = append(headers, strings.TrimSpace(line))
		}
	}
	if len(headers) == 0 {
		return head + "…"
	}
	return head + "…\n" + strings.Join(headers, "\n")
}

func buildAnswerPrompt(question string, chunks []domain.Chunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		fmt.Fprintf(&contextBuilder,
			"[%d] header=%s source=%s score=%.3f\n%s\n\n",
			idx+1,
			chunk.Header,
			chunk.Source,
			chunk.Score,
			chunk.Text,
		)
	}

	return fmt.Sprintf(`Answer the rules question only from the context below.
Cite the header of every excerpt you rely on. If context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
