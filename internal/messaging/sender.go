// Package messaging holds the outbound transports that deliver bot replies
// to leads. Each transport implements one narrow contract: send a text to an
// address on its channel.
package messaging

import (
	"context"
	"fmt"
)

// OutboundText is one reply to deliver. To is the channel address: an E.164
// phone for WhatsApp, a widget session id for webchat.
type OutboundText struct {
	CompanyID      string
	ConversationID string
	To             string
	Body           string
}

// Sender delivers a single text message.
type Sender interface {
	SendText(ctx context.Context, msg OutboundText) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg OutboundText) (err error)

func (f SenderFunc) SendText(ctx context.Context, msg OutboundText) error {
	return f(ctx, msg)
}

// Router picks the sender for a channel.
type Router struct {
	senders map[string]Sender
}

func NewRouter() *Router {
	return &Router{senders: make(map[string]Sender)}
}

// Register binds a sender to a channel, replacing any previous binding.
func (r *Router) Register(channel string, sender Sender) {
	r.senders[channel] = sender
}

// ForChannel returns the sender registered for the channel.
func (r *Router) ForChannel(channel string) (Sender, error) {
	s, ok := r.senders[channel]
	if !ok {
		return nil, fmt.Errorf("messaging: no sender registered for channel %q", channel)
	}
	return s, nil
}
