package mq

import (
	"context"
	"encoding/json"

	"github.com/taskhive/apiserver/types"
)

// AuthEventsChannel carries session lifecycle events between nodes. It is
// the server-side counterpart of the browser's cross-tab auth-event record.
const AuthEventsChannel = "auth-events"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// EventHandler processes a decoded session event.
type EventHandler func(ctx context.Context, event types.SessionEvent) error

// Bus wraps a backend with typed session event publishing.
type Bus struct {
	backend Backend
}

// NewBus constructs a Bus over the provided backend.
func NewBus(backend Backend) *Bus {
	return &Bus{backend: backend}
}

// PublishSessionEvent broadcasts a session event on the auth channel.
func (b *Bus) PublishSessionEvent(ctx context.Context, event types.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = b.backend.Publish(ctx, AuthEventsChannel, data, map[string]string{
		"type":   event.Type,
		"client": event.ClientID,
	})
	return err
}

// SubscribeSessionEvents consumes session events until ctx is cancelled.
// Undecodable payloads are acked and skipped.
func (b *Bus) SubscribeSessionEvents(ctx context.Context, handler EventHandler) error {
	return b.backend.Subscribe(ctx, AuthEventsChannel, func(ctx context.Context, msg Message) error {
		var event types.SessionEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}
