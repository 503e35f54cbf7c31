package bus

import (
	"context"
	"errors"
	"sync"
)

// InMemoryBroker is the in-process broker: buffered channels standing
// in for the request/response topics an external bus would carry.
type InMemoryBroker struct {
	requests  chan *ResolutionRequest
	responses chan *HighEntropyContext

	mu     sync.Mutex
	closed bool
}

// NewInMemoryBroker creates an in-process broker.
func NewInMemoryBroker(buffer int) *InMemoryBroker {
	if buffer <= 0 {
		buffer = 64
	}
	return &InMemoryBroker{
		requests:  make(chan *ResolutionRequest, buffer),
		responses: make(chan *HighEntropyContext, buffer),
	}
}

// PublishRequest enqueues an enrichment request. A full queue drops
// the request rather than blocking the caller's deadline.
func (m *InMemoryBroker) PublishRequest(ctx context.Context, req *ResolutionRequest) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errors.New("broker closed")
	}

	select {
	case m.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("request queue full")
	}
}

// Requests exposes the request stream for enrichment workers.
func (m *InMemoryBroker) Requests() <-chan *ResolutionRequest {
	return m.requests
}

// Respond publishes an enrichment response.
func (m *InMemoryBroker) Respond(response *HighEntropyContext) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errors.New("broker closed")
	}

	select {
	case m.responses <- response:
		return nil
	default:
		return errors.New("response queue full")
	}
}

// Responses exposes the response stream for the bus listener.
func (m *InMemoryBroker) Responses() <-chan *HighEntropyContext {
	return m.responses
}

// Close shuts the broker down. Pending channel readers observe the
// close.
func (m *InMemoryBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.requests)
	close(m.responses)
	return nil
}
