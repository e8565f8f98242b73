package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds. ErrInvalidQuery and ErrIndexUnavailable abort a
// retrieval; judge and embedder failures mid-hop only degrade it.
var (
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInvalidDocument  = errors.New("invalid document")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrDocumentNotFound = errors.New("document not found")
	ErrJudgeTimeout     = errors.New("judge timeout")
	ErrJudgeResponse    = errors.New("judge invalid response")
	ErrRateLimited      = errors.New("rate limited")
	ErrEmbedder         = errors.New("embedder failure")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
