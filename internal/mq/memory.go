package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
)

const memorySubscriberBuffer = 64

// MemoryBackend is an in-process broker for single-node deployments and
// tests. Every subscriber on a channel receives every message.
type MemoryBackend struct {
	mu          sync.Mutex
	subscribers map[string][]chan Message
	closed      bool
}

// NewMemoryBackend constructs an empty in-process broker.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{subscribers: make(map[string][]chan Message)}
}

// Publish fans the message out to every current subscriber of the channel.
// Subscribers that cannot keep up drop messages rather than block.
func (m *MemoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id := newMessageID()
	msg := Message{ID: id, Data: data, Attributes: attrs}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", errors.New("memory broker closed")
	}
	for _, ch := range m.subscribers[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return id, nil
}

// Subscribe delivers channel messages to the handler until ctx is cancelled.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	ch := make(chan Message, memorySubscriberBuffer)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("memory broker closed")
	}
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	m.mu.Unlock()

	defer m.unsubscribe(channel, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			// Handler errors are dropped: there is no redelivery in-process.
			_ = handler(ctx, msg)
		}
	}
}

// Close drops all subscribers.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subscribers = make(map[string][]chan Message)
	return nil
}

func (m *MemoryBackend) unsubscribe(channel string, ch chan Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[channel]
	for i, sub := range subs {
		if sub == ch {
			m.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
