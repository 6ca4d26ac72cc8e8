package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sac-backend-go/internal/services"
)

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type stubProcessor struct {
	err  error
	seen []services.UploadJob
}

func (s *stubProcessor) Process(ctx context.Context, job services.UploadJob) error {
	s.seen = append(s.seen, job)
	return s.err
}

func delivery(t *testing.T, ack amqp.Acknowledger, body any) amqp.Delivery {
	t.Helper()
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: raw}
}

func TestHandleAcksProcessedJob(t *testing.T) {
	processor := &stubProcessor{}
	consumer := &Consumer{Processor: processor}
	ack := &ackRecorder{}
	job := services.NewUploadJob("cat.jpg", []byte{0xff, 0xd8}, &services.Target{Kind: services.AttachEvent, EntityID: 5})

	consumer.handle(context.Background(), delivery(t, ack, job))

	assert.True(t, ack.acked)
	require.Len(t, processor.seen, 1)
	assert.Equal(t, job.ID, processor.seen[0].ID)
	assert.Equal(t, []byte{0xff, 0xd8}, processor.seen[0].Data)
	assert.Equal(t, services.AttachEvent, processor.seen[0].Target.Kind)
}

func TestHandleDropsFailedJob(t *testing.T) {
	consumer := &Consumer{Processor: &stubProcessor{err: services.ErrInvalidImage}}
	ack := &ackRecorder{}

	consumer.handle(context.Background(), delivery(t, ack, services.NewUploadJob("a.png", []byte("x"), nil)))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestHandleDropsBadPayload(t *testing.T) {
	processor := &stubProcessor{}
	consumer := &Consumer{Processor: processor}
	ack := &ackRecorder{}

	consumer.handle(context.Background(), delivery(t, ack, []byte("{not json")))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Empty(t, processor.seen)
}

func TestHandleRequeuesOnShutdown(t *testing.T) {
	consumer := &Consumer{Processor: &stubProcessor{err: errors.New("context canceled")}}
	ack := &ackRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	consumer.handle(ctx, delivery(t, ack, services.NewUploadJob("a.txt", []byte("x"), nil)))

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
