package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	UploadStored = "stored"
	UploadFailed = "failed"
)

// UploadJob is one accepted upload waiting for background processing.
type UploadJob struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Data        []byte    `json:"data"`
	Target      *Target   `json:"target,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func NewUploadJob(filename string, data []byte, target *Target) UploadJob {
	return UploadJob{
		ID:          uuid.NewString(),
		Filename:    filename,
		Data:        data,
		Target:      target,
		SubmittedAt: time.Now().UTC(),
	}
}

// UploadEvent is pushed to /ws/uploads subscribers when a job finishes.
type UploadEvent struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	MediaID int64  `json:"media_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type JobProcessor interface {
	Process(ctx context.Context, job UploadJob) error
}

// Dispatcher hands a job to background processing and returns immediately.
type Dispatcher interface {
	Submit(ctx context.Context, job UploadJob) error
}

// EventSink receives upload outcomes. *Hub delivers them to local sockets;
// the queue package relays them between processes.
type EventSink interface {
	Broadcast(msg any)
}

// UploadProcessor runs store-then-bind for a job and reports the outcome.
type UploadProcessor struct {
	Media  *MediaStore
	Events EventSink
	Logger *zap.Logger
}

func (p *UploadProcessor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *UploadProcessor) Process(ctx context.Context, job UploadJob) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("filename", job.Filename),
		zap.Int("bytes", len(job.Data)),
	}
	if job.Target != nil {
		fields = append(fields, zap.Stringer("target_kind", job.Target.Kind), zap.Int64("target_id", job.Target.EntityID))
	}
	id, err := p.Media.StoreAndBind(ctx, job.Filename, job.Data, job.Target)
	event := UploadEvent{JobID: job.ID}
	if err != nil {
		p.logger().Error("upload failed", append(fields, zap.Error(err))...)
		event.Status = UploadFailed
		event.Error = ErrInternal.Message
		if serr, ok := AsServiceError(err); ok {
			event.Error = serr.Message
		}
	} else {
		p.logger().Info("upload processed", append(fields, zap.Int64("media_id", id))...)
		event.Status = UploadStored
		event.MediaID = id
	}
	if p.Events != nil {
		p.Events.Broadcast(event)
	}
	return err
}

// InlineDispatcher processes each job on its own goroutine. Jobs are lost if
// the process dies; use the queue dispatcher when that matters.
type InlineDispatcher struct {
	processor JobProcessor
	wg        sync.WaitGroup
}

func NewInlineDispatcher(processor JobProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

func (d *InlineDispatcher) Submit(ctx context.Context, job UploadJob) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.processor.Process(context.WithoutCancel(ctx), job)
	}()
	return nil
}

// Wait blocks until in-flight jobs finish or ctx is done.
func (d *InlineDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
