package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// rateLimitSignatures are matched case-insensitively against the combined
// stdout and stderr of a failed invocation. Each entry is wording one of
// the worker CLIs actually emits when a usage cap is hit.
var rateLimitSignatures = []string{ //nolint:gochecknoglobals // static match list
	"rate limit",
	"rate-limit",
	"hit your limit",
	"too many requests",
	"resource exhausted",
	"resource_exhausted",
	"quota exceeded",
	"429",
}

// ClassifyFailure maps a failed invocation onto the engine's retry
// decision. Validation and timeout errors pass through unchanged, output
// carrying a rate-limit signature becomes ErrRateLimited so the engine
// advances to the next worker, and everything else is transient.
func ClassifyFailure(result *domain.WorkerResult, err error) error {
	switch {
	case err == nil:
		return nil
	case IsValidationError(err):
		return err
	case errors.Is(err, opserrors.ErrWorkerTimeout):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Raw context errors here mean the parent context ended, not the
		// per-invocation deadline; the runner maps that to ErrWorkerTimeout.
		return err
	case IsRateLimited(result):
		return fmt.Errorf("worker '%s' reported a usage limit: %w", workerName(result), opserrors.ErrRateLimited)
	case errors.Is(err, opserrors.ErrWorkerTransient):
		return err
	default:
		return fmt.Errorf("%v: %w", err, opserrors.ErrWorkerTransient)
	}
}

// IsRateLimited reports whether the invocation's captured output carries a
// rate-limit signature. Only called for failed invocations; a success that
// merely discusses rate limits is never reclassified.
func IsRateLimited(result *domain.WorkerResult) bool {
	if result == nil {
		return false
	}

	text := strings.ToLower(result.Output + "\n" + result.Stderr)
	for _, sig := range rateLimitSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

func workerName(result *domain.WorkerResult) domain.Worker {
	if result == nil {
		return ""
	}
	return result.Worker
}
