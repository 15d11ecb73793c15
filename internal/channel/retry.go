package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// timeSleep is swapped in tests to avoid real backoff waits.
//
//nolint:gochecknoglobals // Required for test mocking
var timeSleep = time.After

// RetryPolicy bounds how SendWithRetry reacts to transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of send attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt. It doubles
	// after every transient failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubling.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the standard outbound retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    constants.MaxSendAttempts,
		InitialBackoff: constants.SendBackoffInitial,
		MaxBackoff:     constants.SendBackoffCap,
	}
}

// withDefaults fills unset policy fields with the standard values.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = constants.MaxSendAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = constants.SendBackoffInitial
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = constants.SendBackoffCap
	}
	return p
}

// SendWithRetry delivers out through sender, retrying transient failures
// with doubling backoff. Permanent failures and context cancellation stop
// the attempts immediately.
func SendWithRetry(ctx context.Context, sender Sender, out *domain.Outbound, policy RetryPolicy, logger zerolog.Logger) (string, error) {
	policy = policy.withDefaults()
	backoff := policy.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		ref, err := sender.Send(ctx, out)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if !errors.Is(err, opserrors.ErrSendTransient) {
			return "", err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		logger.Warn().
			Err(err).
			Str("channel", sender.Channel().String()).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("transient send failure, backing off")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeSleep(backoff):
		}

		backoff *= 2
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	return "", fmt.Errorf("send failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}
