package channel

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/worker"
)

// transientSignatures mark helper command failures worth retrying.
//
//nolint:gochecknoglobals // shared lookup table
var transientSignatures = []string{
	"rate limit",
	"rate-limit",
	"too many requests",
	"429",
	"503",
	"temporarily unavailable",
	"try again",
	"timed out",
	"connection reset",
}

// SocialSender posts to one social platform by running a configured
// helper command with the post body on stdin. Platform credentials and
// session state live in the helper, never in this process.
type SocialSender struct {
	platform domain.Channel
	command  []string
	timeout  time.Duration
	executor worker.CommandExecutor
	logger   zerolog.Logger
}

// NewSocialSender creates a sender for one platform from the social
// configuration. Platforms without a configured helper command are not
// constructable, which keeps them out of the Registry entirely.
func NewSocialSender(platform domain.Channel, cfg *config.SocialConfig, executor worker.CommandExecutor, logger zerolog.Logger) (*SocialSender, error) {
	command := strings.Fields(cfg.Commands[platform.String()])
	if len(command) == 0 {
		return nil, fmt.Errorf("no helper command configured for platform '%s': %w", platform, opserrors.ErrUnknownChannel)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.SocialHelperTimeout
	}
	if executor == nil {
		executor = &worker.DefaultExecutor{}
	}

	return &SocialSender{
		platform: platform,
		command:  command,
		timeout:  timeout,
		executor: executor,
		logger:   logger.With().Str("channel", platform.String()).Logger(),
	}, nil
}

// Channel identifies the delivery surface.
func (s *SocialSender) Channel() domain.Channel {
	return s.platform
}

// Send runs the helper command and returns its first output line as the
// post reference.
func (s *SocialSender) Send(ctx context.Context, out *domain.Outbound) (string, error) {
	if strings.TrimSpace(out.Body) == "" {
		return "", fmt.Errorf("social post requires a body: %w", opserrors.ErrMissingField)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := make([]string, 0, len(s.command))
	args = append(args, s.command[1:]...)
	args = append(args, s.platform.String())

	cmd := exec.CommandContext(runCtx, s.command[0], args...) //nolint:gosec // command comes from operator configuration
	cmd.Stdin = strings.NewReader(out.Body)

	s.logger.Debug().Str("helper", s.command[0]).Int("body_length", len(out.Body)).Msg("running post helper")

	stdout, stderr, err := s.executor.Execute(runCtx, cmd)
	if err != nil {
		return "", s.classifyHelperError(ctx, runCtx, stdout, stderr, err)
	}

	ref := firstLine(strings.TrimSpace(string(stdout)))
	if ref == "" {
		ref = "posted"
	}
	return ref, nil
}

// classifyHelperError maps a helper command failure onto the send error
// taxonomy.
func (s *SocialSender) classifyHelperError(ctx, runCtx context.Context, stdout, stderr []byte, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("helper command for '%s' timed out after %s: %w", s.platform, s.timeout, opserrors.ErrChannelSend)
	}

	combined := strings.ToLower(string(stdout) + "\n" + string(stderr))
	for _, sig := range transientSignatures {
		if strings.Contains(combined, sig) {
			return fmt.Errorf("helper command for '%s' hit a transient failure: %w", s.platform, opserrors.ErrSendTransient)
		}
	}

	detail := strings.TrimSpace(string(stderr))
	if detail == "" {
		detail = err.Error()
	}
	return fmt.Errorf("helper command for '%s' failed: %s: %w", s.platform, firstLine(detail), opserrors.ErrChannelSend)
}

// firstLine truncates multi-line command output to its first line.
func firstLine(text string) string {
	if line, _, found := strings.Cut(text, "\n"); found {
		return strings.TrimSpace(line)
	}
	return text
}

// Interface compliance check
var _ Sender = (*SocialSender)(nil)
