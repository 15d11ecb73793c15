// Package signal provides graceful shutdown handling for the OpsDesk daemon
// and CLI commands.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// exitFunc is overridable in tests so a forced shutdown can be observed
// without killing the test process.
//
//nolint:gochecknoglobals // test seam for the hard-exit path
var exitFunc = os.Exit

// Handler manages graceful shutdown by listening for interrupt signals.
// It wraps a context and cancels it when SIGINT or SIGTERM is received.
// The polling loops check the context between iterations, so the first
// signal stops work cooperatively. A second signal forces an immediate
// exit for the case where a worker subprocess refuses to die.
type Handler struct {
	ctx         context.Context //nolint:containedctx // intentional: handler manages context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	done        chan struct{} // signals listen() to exit cleanly
	once        sync.Once
	stopOnce    sync.Once
	sigChan     chan os.Signal
	forceExit   bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithForceExit makes the second interrupt call os.Exit(130) instead of
// being ignored. The daemon enables this; short commands do not.
func WithForceExit() Option {
	return func(h *Handler) {
		h.forceExit = true
	}
}

// NewHandler creates a signal handler that listens for SIGINT and SIGTERM.
// When a signal is received, the handler cancels the context and closes
// the interrupted channel.
//
// Usage:
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	ctx = h.Context()
//
//	// ... run loops with ctx ...
//
//	select {
//	case <-h.Interrupted():
//	    // Report the interruption
//	default:
//	}
func NewHandler(parent context.Context, opts ...Option) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		// Buffer of 1 ensures signal.Notify doesn't drop signals if handler is busy.
		// See: https://pkg.go.dev/os/signal#Notify
		sigChan: make(chan os.Signal, 1),
	}

	for _, opt := range opts {
		opt(h)
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context returns the cancellable context.
// Use this context for all operations that should be interruptible.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel that closes when an interrupt signal is received.
// Use this to detect when the user pressed Ctrl+C.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Stop cleans up the signal handler and stops listening for signals.
// Always call this when done to prevent resource leaks.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done) // Signal listen() to exit before closing sigChan
		h.cancel()
	})
}

// handleSignal processes a received signal. The first signal cancels the
// context; with force-exit enabled, any later signal ends the process with
// the conventional interrupt exit code.
func (h *Handler) handleSignal() {
	var first bool
	h.once.Do(func() {
		first = true
		h.cancel()
		close(h.interrupted)
	})

	if !first && h.forceExit {
		exitFunc(130)
	}
}

// listen waits for signals and handles them.
// It loops continuously to handle multiple signals until Stop() is called
// or the context is canceled.
func (h *Handler) listen() {
	for {
		select {
		case <-h.done:
			// Stop() was called - exit cleanly
			return
		case <-h.sigChan:
			h.handleSignal()
			// Keep draining so a second signal can force an exit and so
			// signal delivery never blocks.
		}
	}
}
