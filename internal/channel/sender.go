// Package channel delivers approved outbound messages.
//
// Each delivery surface (email, whatsapp, the social platforms) implements
// the Sender interface. A Registry maps channels to senders so the
// dispatcher can route a parsed draft without knowing transport details.
// Senders classify their failures into ErrSendTransient (worth retrying)
// and ErrChannelSend (permanent); SendWithRetry acts on that split.
//
// Import rules:
//   - MAY import: config, constants, ctxutil, domain, errors, worker (executor seam only)
//   - MUST NOT import: vault, engine, dispatch, cli
package channel

import (
	"context"
	"fmt"

	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// Sender transmits one outbound message on a single delivery surface.
type Sender interface {
	// Channel identifies the surface this sender delivers to.
	Channel() domain.Channel

	// Send transmits the message and returns a channel-specific reference
	// (message id, sid, or helper output) for the activity log.
	Send(ctx context.Context, out *domain.Outbound) (string, error)
}

// Registry maps channels to their senders.
type Registry struct {
	senders map[domain.Channel]Sender
}

// NewRegistry creates a Registry holding the given senders.
func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[domain.Channel]Sender, len(senders))}
	for _, s := range senders {
		r.Register(s)
	}
	return r
}

// Register adds a sender, replacing any existing sender for its channel.
func (r *Registry) Register(s Sender) {
	if s == nil {
		return
	}
	r.senders[s.Channel()] = s
}

// Lookup returns the sender for a channel. An unregistered channel is an
// error the dispatcher turns into a rejected draft, never a panic.
func (r *Registry) Lookup(ch domain.Channel) (Sender, error) {
	s, ok := r.senders[ch]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel '%s': %w", ch, opserrors.ErrUnknownChannel)
	}
	return s, nil
}

// Channels returns the channels with a registered sender.
func (r *Registry) Channels() []domain.Channel {
	out := make([]domain.Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	return out
}
