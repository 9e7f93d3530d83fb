// Package events fans dispatch lifecycle events out to in-process
// subscribers (the SSE endpoint, alert forwarding) over a Watermill
// gochannel pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic is the single topic all dispatch events are published on.
const Topic = "switchyard.dispatch"

// Event types published by the dispatcher.
const (
	TypeAdmitted    = "dispatch.admitted"
	TypeDeferred    = "dispatch.deferred"
	TypeNoop        = "dispatch.noop"
	TypeRunReleased = "run.released"
	TypeRunComplete = "run.completed"
)

// Event is one dispatch lifecycle occurrence.
type Event struct {
	Type         string    `json:"type"`
	UserID       string    `json:"user_id"`
	ThreadID     string    `json:"thread_id,omitempty"`
	ThreadChatID string    `json:"thread_chat_id,omitempty"`
	Trigger      string    `json:"trigger,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// Broker wraps a gochannel pub/sub. Publishing never blocks the dispatch
// path; slow subscribers only delay their own channel.
type Broker struct {
	pubSub *gochannel.GoChannel
}

// NewBroker creates an in-process broker.
func NewBroker() *Broker {
	return &Broker{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NopLogger{}),
	}
}

// Publish emits an event to all current subscribers. At is stamped when zero.
func (b *Broker) Publish(ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", ev.Type, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe returns a channel of decoded events, closed when ctx is done.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the broker down and closes all subscriber channels.
func (b *Broker) Close() error {
	if err := b.pubSub.Close(); err != nil {
		return fmt.Errorf("events: close: %w", err)
	}
	return nil
}
