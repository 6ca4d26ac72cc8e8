package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"sac-backend-go/internal/services"
)

const (
	DefaultEventsExchange = "media.upload-events"
	publishEventTimeout   = 5 * time.Second
)

func declareEvents(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// EventBus is a services.EventSink that publishes upload outcomes to a
// fanout exchange. Events are transient; a dropped event is only logged.
type EventBus struct {
	session
	exchange string
	logger   *zap.Logger
}

func NewEventBus(url, exchange string, logger *zap.Logger) *EventBus {
	if exchange == "" {
		exchange = DefaultEventsExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &EventBus{exchange: exchange, logger: logger}
	b.session = session{url: url, setup: func(ch *amqp.Channel) error {
		return declareEvents(ch, exchange)
	}}
	return b
}

func (b *EventBus) Broadcast(msg any) {
	body, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("upload event: marshal", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishEventTimeout)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.channel()
	if err == nil {
		err = ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Body:        body,
		})
		if err != nil {
			b.reset()
		}
	}
	if err != nil {
		b.logger.Warn("upload event dropped", zap.Error(err))
	}
}

// EventRelay copies upload outcomes from the fanout exchange into a local
// sink, normally the /ws/uploads hub. Each relay gets its own exclusive
// queue, so every API process sees every event.
type EventRelay struct {
	URL      string
	Exchange string
	Sink     services.EventSink
	Logger   *zap.Logger
}

func (r *EventRelay) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run relays until ctx is cancelled, reconnecting with backoff.
func (r *EventRelay) Run(ctx context.Context) error {
	exchange := r.Exchange
	if exchange == "" {
		exchange = DefaultEventsExchange
	}
	return reconnectLoop(ctx, r.URL, "upload event relay", r.logger(), func(conn *amqp.Connection) error {
		return r.relay(ctx, conn, exchange)
	})
}

func (r *EventRelay) relay(ctx context.Context, conn *amqp.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareEvents(ch, exchange); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	r.logger().Info("upload event relay started", zap.String("exchange", exchange))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			r.handle(d.Body)
		}
	}
}

func (r *EventRelay) handle(body []byte) {
	var event services.UploadEvent
	if err := json.Unmarshal(body, &event); err != nil {
		r.logger().Warn("upload event relay: bad payload", zap.Error(err))
		return
	}
	r.Sink.Broadcast(event)
}
