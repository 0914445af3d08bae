// Package broker abstracts the message fabric between the API and worker
// processes: a durable jobs queue consumed by the worker and a fanout
// events exchange consumed by every API process.
package broker

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the broker cannot be reached or refuses a
// publish. API callers surface it as 503.
var ErrUnavailable = errors.New("broker unavailable")

// JobHandler processes one job delivery. The delivery is acknowledged when
// the handler returns, error or not: handlers record failures durably
// themselves, so redelivery would only repeat work their idempotency checks
// skip.
type JobHandler func(ctx context.Context, body []byte) error

// EventHandler receives one event broadcast.
type EventHandler func(body []byte)

// Broker is the transport contract shared by the AMQP adapter and the
// in-memory fake used in tests.
type Broker interface {
	// PublishJob places a job on the durable jobs queue. It returns once
	// the broker has accepted persistence responsibility for the message.
	PublishJob(ctx context.Context, body []byte) error

	// PublishEvent broadcasts an event to all connected consumers.
	// Fire-and-forget: no consumer, no delivery.
	PublishEvent(ctx context.Context, body []byte) error

	// ConsumeJobs delivers queued jobs to fn one at a time until ctx is
	// canceled. It blocks.
	ConsumeJobs(ctx context.Context, fn JobHandler) error

	// ConsumeEvents delivers event broadcasts to fn until ctx is canceled.
	// It blocks.
	ConsumeEvents(ctx context.Context, fn EventHandler) error

	// Ping reports whether the broker is reachable.
	Ping(ctx context.Context) error

	// Close tears down connections. Publish and consume calls after Close
	// fail with ErrUnavailable.
	Close() error
}
