package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/core/ports"
	"github.com/skirmishlab/rulehound/internal/infrastructure/structure"
)

// Judge asks the model whether accumulated context suffices to answer
// and, if not, what follow-up query would fill the gap.
type Judge struct {
	client      *Client
	structures  *structure.Docs
	maxChunkLen int
	timeout     time.Duration
}

func NewJudge(client *Client, structures *structure.Docs, maxChunkLen int, timeout time.Duration) *Judge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Judge{
		client:      client,
		structures:  structures,
		maxChunkLen: maxChunkLen,
		timeout:     timeout,
	}
}

func (j *Judge) EvaluateContext(ctx context.Context, query string, chunks []domain.Chunk) (ports.JudgeVerdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	prompt := buildJudgePrompt(query, chunks, j.maxChunkLen, j.structures)

	// Temperature 0 keeps the verdict deterministic for a fixed context.
	resp, err := j.client.generate(callCtx, j.client.judgeModel, prompt, true, map[string]any{
		"temperature": 0,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ports.JudgeVerdict{}, domain.WrapError(domain.ErrJudgeTimeout, "judge evaluate", err)
		}
		return ports.JudgeVerdict{}, err
	}

	var parsed struct {
		CanAnswer    bool    `json:"can_answer"`
		Reasoning    string  `json:"reasoning"`
		MissingQuery *string `json:"missing_query"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(resp.text)), &parsed); err != nil {
		return ports.JudgeVerdict{}, domain.WrapError(domain.ErrJudgeResponse, "judge evaluate", err)
	}

	verdict := ports.JudgeVerdict{
		CanAnswer:        parsed.CanAnswer,
		Reasoning:        parsed.Reasoning,
		PromptTokens:     resp.promptTokens,
		CompletionTokens: resp.completionTokens,
	}
	if parsed.MissingQuery != nil {
		verdict.MissingQuery = *parsed.MissingQuery
	}
	return verdict, nil
}
