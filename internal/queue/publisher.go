// Package queue moves upload jobs through a durable RabbitMQ queue so an
// accepted upload survives a process restart, and fans upload outcomes out
// to every API process.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"sac-backend-go/internal/services"
)

const DefaultQueue = "media.uploads"

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

// session is a lazily dialed connection and channel. setup runs on every
// fresh channel.
type session struct {
	url   string
	setup func(ch *amqp.Channel) error

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// channel returns the cached channel, dialing again after a broker drop.
// Callers hold s.mu.
func (s *session) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() && s.conn != nil && !s.conn.IsClosed() {
		return s.ch, nil
	}
	s.reset()
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := s.setup(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.conn, s.ch = conn, ch
	return ch, nil
}

func (s *session) reset() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Publisher is a services.Dispatcher backed by RabbitMQ. Submit returns once
// the broker has confirmed the persistent message.
type Publisher struct {
	session
	queue  string
	logger *zap.Logger
}

func NewPublisher(url, queue string, logger *zap.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{queue: queue, logger: logger}
	p.session = session{url: url, setup: func(ch *amqp.Channel) error {
		if err := ch.Confirm(false); err != nil {
			return fmt.Errorf("confirm mode: %w", err)
		}
		return declare(ch, queue)
	}}
	return p
}

func (p *Publisher) Submit(ctx context.Context, job services.UploadJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !acked {
		return errors.New("publish: broker nacked message")
	}
	p.logger.Debug("upload job queued", zap.String("job_id", job.ID), zap.String("queue", p.queue))
	return nil
}
