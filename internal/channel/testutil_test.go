package channel

import (
	"context"
	"io"
	"net/smtp"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testEmailConfig() *config.EmailConfig {
	return &config.EmailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		Username: "ops@example.com",
		Password: "app-password",
	}
}

// sendStep scripts one stubSender.Send result.
type sendStep struct {
	ref string
	err error
}

// stubSender returns scripted results per call; the last step repeats.
type stubSender struct {
	channel domain.Channel
	steps   []sendStep
	calls   int
}

func (s *stubSender) Channel() domain.Channel {
	return s.channel
}

func (s *stubSender) Send(_ context.Context, _ *domain.Outbound) (string, error) {
	s.calls++
	if len(s.steps) == 0 {
		return "ok", nil
	}

	idx := s.calls - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	step := s.steps[idx]
	return step.ref, step.err
}

var _ Sender = (*stubSender)(nil)

// capturedMail records one smtp.SendMail invocation.
type capturedMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

// stubSendMail replaces the SMTP seam and records what would have gone
// over the wire. Tests using this must not run in parallel.
func stubSendMail(t *testing.T, err error) *capturedMail {
	t.Helper()

	captured := &capturedMail{}
	orig := sendMail
	sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = append([]string{}, to...)
		captured.msg = append([]byte{}, msg...)
		return err
	}
	t.Cleanup(func() { sendMail = orig })

	return captured
}

// stubSleep replaces the backoff timer with an instant channel and
// records the requested durations. Tests using this must not run in
// parallel.
func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()

	var waits []time.Duration
	orig := timeSleep
	timeSleep = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	t.Cleanup(func() { timeSleep = orig })

	return &waits
}

// mockExecutor satisfies worker.CommandExecutor without spawning
// processes.
type mockExecutor struct {
	stdout []byte
	stderr []byte
	err    error
	delay  time.Duration

	capturedCmd  *exec.Cmd
	capturedBody string
	calls        int
}

func (m *mockExecutor) Execute(ctx context.Context, cmd *exec.Cmd) ([]byte, []byte, error) {
	m.calls++
	m.capturedCmd = cmd
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		m.capturedBody = string(data)
	}

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	return m.stdout, m.stderr, m.err
}
