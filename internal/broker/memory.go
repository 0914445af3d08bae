package broker

import (
	"context"
	"fmt"
	"sync"
)

const memoryQueueDepth = 256

// Memory is an in-process Broker for tests and single-process runs. Jobs
// ride a buffered channel in FIFO order; events fan out synchronously to
// every subscribed handler.
type Memory struct {
	mu      sync.Mutex
	jobs    chan []byte
	subs    map[int]EventHandler
	nextSub int
	closed  bool
}

// NewMemory returns an empty in-memory broker.
func NewMemory() *Memory {
	return &Memory{
		jobs: make(chan []byte, memoryQueueDepth),
		subs: make(map[int]EventHandler),
	}
}

func (m *Memory) PublishJob(_ context.Context, body []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return unavailable(fmt.Errorf("broker closed"))
	}

	cp := append([]byte(nil), body...)
	select {
	case m.jobs <- cp:
		return nil
	default:
		return unavailable(fmt.Errorf("jobs queue full"))
	}
}

func (m *Memory) PublishEvent(_ context.Context, body []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return unavailable(fmt.Errorf("broker closed"))
	}
	handlers := make([]EventHandler, 0, len(m.subs))
	for _, fn := range m.subs {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	cp := append([]byte(nil), body...)
	for _, fn := range handlers {
		fn(cp)
	}
	return nil
}

func (m *Memory) ConsumeJobs(ctx context.Context, fn JobHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case body := <-m.jobs:
			// Handlers record failures durably themselves; the delivery
			// is considered acknowledged either way.
			_ = fn(ctx, body)
		}
	}
}

func (m *Memory) ConsumeEvents(ctx context.Context, fn EventHandler) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return unavailable(fmt.Errorf("broker closed"))
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.subs, id)
	m.mu.Unlock()
	return ctx.Err()
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable(fmt.Errorf("broker closed"))
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Pending returns the number of undelivered jobs. Test helper.
func (m *Memory) Pending() int {
	return len(m.jobs)
}
