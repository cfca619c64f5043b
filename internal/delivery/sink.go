// Package delivery carries formatted messages to a member's channel.
package delivery

import (
	"context"
	"errors"
	"sync"
)

// ErrNoChannel means the member has no channel to deliver to yet.
var ErrNoChannel = errors.New("member has no channel")

// Colours used by the core's messages.
const (
	ColorConnection     = 0x9900ff
	ColorRecommendation = 0x00b894
	ColorNotice         = 0xfabd2f
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is an embed-like card: a title, optional body and fields.
type Message struct {
	ChannelID   string
	Title       string
	Description string
	URL         string
	Color       int
	Fields      []Field
	Footer      string
}

// Sink sends a message to its channel.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// RecordingSink keeps every message in memory. Used by tests and dry runs.
type RecordingSink struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (r *RecordingSink) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *RecordingSink) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// MultiSink sends to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, msg Message) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
