package stream

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemory buffers published messages per stream. It backs tests and
// deployments without Redis.
type InMemory struct {
	mu      sync.Mutex
	streams map[string][]json.RawMessage
	closed  bool
}

func NewInMemory() *InMemory {
	return &InMemory{streams: make(map[string][]json.RawMessage)}
}

func (m *InMemory) PublishJSON(ctx context.Context, stream string, payload any) error {
	if err := ctx.Err(); err != nil {
		return observePublish(stream, err)
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return observePublish(stream, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return observePublish(stream, context.Canceled)
	}
	m.streams[stream] = append(m.streams[stream], data)
	return observePublish(stream, nil)
}

// Messages returns a copy of everything published to the stream.
func (m *InMemory) Messages(stream string) []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]json.RawMessage, len(m.streams[stream]))
	copy(out, m.streams[stream])
	return out
}

func (m *InMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
