package worker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// ValidateRequest checks the hard preconditions for a worker invocation.
// A request that fails here will fail identically on every retry, so the
// engine routes these straight to Failed instead of cycling workers.
func ValidateRequest(req *domain.WorkerRequest) error {
	if req == nil {
		return fmt.Errorf("worker request is nil: %w", opserrors.ErrValidation)
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return opserrors.ErrEmptyPrompt
	}

	if len(req.Prompt) > constants.MaxPromptBytes {
		return fmt.Errorf("prompt is %d bytes, limit is %d: %w", len(req.Prompt), constants.MaxPromptBytes, opserrors.ErrPromptTooLarge)
	}

	if req.WorkingDir == "" || !filepath.IsAbs(req.WorkingDir) {
		return fmt.Errorf("working directory '%s' must be an absolute path: %w", req.WorkingDir, opserrors.ErrWorkingDirInvalid)
	}

	info, err := os.Stat(req.WorkingDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("working directory '%s' does not exist: %w", req.WorkingDir, opserrors.ErrWorkingDirInvalid)
	}

	return nil
}

// IsValidationError reports whether err is a request precondition failure.
// These are permanent: no worker switch or retry can repair the request.
func IsValidationError(err error) bool {
	return errors.Is(err, opserrors.ErrValidation) ||
		errors.Is(err, opserrors.ErrEmptyPrompt) ||
		errors.Is(err, opserrors.ErrPromptTooLarge) ||
		errors.Is(err, opserrors.ErrWorkingDirInvalid)
}
