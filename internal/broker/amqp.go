package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tomehq/tome/internal/config"
)

// AMQP is the RabbitMQ-backed Broker. One connection serves publishers and
// consumers; consumers take their own channel and reconnect on connection
// loss with the configured delay. The publish channel runs in confirm mode
// so PublishJob can wait for the broker ack.
type AMQP struct {
	cfg    config.BrokerConfig
	logger *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	closed bool
}

// NewAMQP dials the broker and declares the jobs queue and events exchange.
// The dial is retried a few times so process startup tolerates a broker
// that is still coming up.
func NewAMQP(ctx context.Context, cfg config.BrokerConfig, logger *slog.Logger) (*AMQP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &AMQP{cfg: cfg, logger: logger}

	err := retry.Do(
		func() error {
			b.mu.Lock()
			defer b.mu.Unlock()
			return b.connectLocked()
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(cfg.ReconnectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// connectLocked dials and declares topology. Callers hold b.mu.
func (b *AMQP) connectLocked() error {
	// The URL may carry credentials as a ${ENV_VAR} reference.
	conn, err := amqp.Dial(config.ResolveEnvVars(b.cfg.URL))
	if err != nil {
		return unavailable(fmt.Errorf("failed to dial broker: %w", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return unavailable(fmt.Errorf("failed to open channel: %w", err))
	}

	if err := declareTopology(ch, b.cfg); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return unavailable(fmt.Errorf("failed to enable publisher confirms: %w", err))
	}

	b.conn = conn
	b.pubCh = ch
	b.logger.Debug("broker connected", "jobs_queue", b.cfg.JobsQueue, "events_exchange", b.cfg.EventsExchange)
	return nil
}

// declareTopology creates the durable jobs queue and the fanout events
// exchange. Declarations are idempotent as long as the arguments match.
func declareTopology(ch *amqp.Channel, cfg config.BrokerConfig) error {
	if _, err := ch.QueueDeclare(cfg.JobsQueue, true, false, false, false, jobsQueueArgs(cfg.ConsumerTimeout)); err != nil {
		return unavailable(fmt.Errorf("failed to declare jobs queue %s: %w", cfg.JobsQueue, err))
	}
	if err := ch.ExchangeDeclare(cfg.EventsExchange, "fanout", true, false, false, false, nil); err != nil {
		return unavailable(fmt.Errorf("failed to declare events exchange %s: %w", cfg.EventsExchange, err))
	}
	return nil
}

// jobsQueueArgs extends the broker's per-delivery ack deadline; folder
// organize runs can hold one delivery for hours.
func jobsQueueArgs(consumerTimeout time.Duration) amqp.Table {
	if consumerTimeout <= 0 {
		return nil
	}
	return amqp.Table{"x-consumer-timeout": consumerTimeout.Milliseconds()}
}

// publishChannel returns the confirm-mode channel, redialing when the
// connection has died.
func (b *AMQP) publishChannel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, unavailable(fmt.Errorf("broker closed"))
	}
	if b.conn == nil || b.conn.IsClosed() {
		if err := b.connectLocked(); err != nil {
			return nil, err
		}
	}
	return b.pubCh, nil
}

// consumerChannel opens a fresh channel for a consumer loop.
func (b *AMQP) consumerChannel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, unavailable(fmt.Errorf("broker closed"))
	}
	if b.conn == nil || b.conn.IsClosed() {
		if err := b.connectLocked(); err != nil {
			return nil, err
		}
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to open channel: %w", err))
	}
	return ch, nil
}

// PublishJob publishes a persistent message to the jobs queue and waits for
// the broker's confirm.
func (b *AMQP) PublishJob(ctx context.Context, body []byte) error {
	ch, err := b.publishChannel()
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", b.cfg.JobsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return unavailable(fmt.Errorf("failed to publish job: %w", err))
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for publish confirm: %w", err)
	}
	if !acked {
		return unavailable(fmt.Errorf("broker nacked job publish"))
	}
	return nil
}

// PublishEvent broadcasts a transient message on the events exchange.
func (b *AMQP) PublishEvent(ctx context.Context, body []byte) error {
	ch, err := b.publishChannel()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, b.cfg.EventsExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		return unavailable(fmt.Errorf("failed to publish event: %w", err))
	}
	return nil
}

// ConsumeJobs reads the jobs queue with manual acks and the configured
// prefetch window, reconnecting on connection loss until ctx is canceled.
// Every delivery is acknowledged after fn returns; fn errors are logged,
// not redelivered.
func (b *AMQP) ConsumeJobs(ctx context.Context, fn JobHandler) error {
	for {
		err := b.consumeJobsOnce(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Warn("jobs consumer disconnected, reconnecting",
			"error", err, "delay", b.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.ReconnectDelay):
		}
	}
}

func (b *AMQP) consumeJobsOnce(ctx context.Context, fn JobHandler) error {
	ch, err := b.consumerChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return unavailable(fmt.Errorf("failed to set prefetch: %w", err))
	}

	deliveries, err := ch.Consume(b.cfg.JobsQueue, "", false, false, false, false, nil)
	if err != nil {
		return unavailable(fmt.Errorf("failed to start jobs consumer: %w", err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return unavailable(fmt.Errorf("jobs delivery channel closed"))
			}
			if err := fn(ctx, d.Body); err != nil {
				b.logger.Error("job handler failed", "error", err)
			}
			if err := d.Ack(false); err != nil {
				return unavailable(fmt.Errorf("failed to ack job: %w", err))
			}
		}
	}
}

// ConsumeEvents binds an exclusive auto-delete queue to the events exchange
// and streams broadcasts to fn, reconnecting on connection loss.
func (b *AMQP) ConsumeEvents(ctx context.Context, fn EventHandler) error {
	for {
		err := b.consumeEventsOnce(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Warn("events consumer disconnected, reconnecting",
			"error", err, "delay", b.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.ReconnectDelay):
		}
	}
}

func (b *AMQP) consumeEventsOnce(ctx context.Context, fn EventHandler) error {
	ch, err := b.consumerChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return unavailable(fmt.Errorf("failed to declare events queue: %w", err))
	}
	if err := ch.QueueBind(q.Name, "", b.cfg.EventsExchange, false, nil); err != nil {
		return unavailable(fmt.Errorf("failed to bind events queue: %w", err))
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return unavailable(fmt.Errorf("failed to start events consumer: %w", err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return unavailable(fmt.Errorf("events delivery channel closed"))
			}
			fn(d.Body)
		}
	}
}

// Ping reports broker reachability, redialing when needed.
func (b *AMQP) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.publishChannel()
	return err
}

// Close tears the connection down. Subsequent calls fail with
// ErrUnavailable.
func (b *AMQP) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn.Close()
	}
	return nil
}

// unavailable tags an error so errors.Is(err, ErrUnavailable) holds while
// keeping the underlying cause in the message.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
