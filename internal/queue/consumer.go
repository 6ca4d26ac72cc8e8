package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"sac-backend-go/internal/services"
)

const maxBackoff = 30 * time.Second

var errDeliveriesClosed = errors.New("deliveries channel closed")

// Consumer feeds queued upload jobs to a processor. Messages are acked only
// after processing, so a crash mid-job leads to redelivery.
type Consumer struct {
	URL       string
	Queue     string
	Prefetch  int
	Processor services.JobProcessor
	Logger    *zap.Logger
}

func (c *Consumer) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Run consumes until ctx is cancelled, reconnecting with backoff.
func (c *Consumer) Run(ctx context.Context) error {
	queue := c.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	return reconnectLoop(ctx, c.URL, "upload consumer", c.logger(), func(conn *amqp.Connection) error {
		return c.consume(ctx, conn, queue)
	})
}

// reconnectLoop dials url and runs fn on the connection until ctx is done.
// Dial failures back off exponentially; a loop that ends after a successful
// dial is retried after a short pause.
func reconnectLoop(ctx context.Context, url, name string, logger *zap.Logger, fn func(conn *amqp.Connection) error) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn(name+": dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second
		err = fn(conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn(name+": loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, queue string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 4
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger().Info("upload consumer started", zap.String("queue", queue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

// handle processes one delivery. Bad payloads and failed jobs are dropped;
// jobs interrupted by shutdown go back to the queue.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var job services.UploadJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.logger().Error("upload consumer: bad payload", zap.Error(err), zap.String("message_id", d.MessageId))
		_ = d.Nack(false, false)
		return
	}
	if err := c.Processor.Process(ctx, job); err != nil {
		if ctx.Err() != nil {
			_ = d.Nack(false, true)
			return
		}
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
