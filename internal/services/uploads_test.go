package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProcessor struct {
	mu   sync.Mutex
	jobs []UploadJob
	gate chan struct{}
}

func (p *countingProcessor) Process(ctx context.Context, job UploadJob) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func TestInlineDispatcherRunsDetached(t *testing.T) {
	processor := &countingProcessor{gate: make(chan struct{})}
	dispatcher := NewInlineDispatcher(processor)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, dispatcher.Submit(ctx, NewUploadJob("a.txt", []byte("a"), nil)))
	cancel()

	waitCtx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, dispatcher.Wait(waitCtx), context.DeadlineExceeded)

	close(processor.gate)
	require.NoError(t, dispatcher.Wait(context.Background()))
	assert.Len(t, processor.jobs, 1)
}

func TestUploadProcessorReportsOutcome(t *testing.T) {
	database, mock := newMockDB(t)
	hub := NewHub(4, nil)
	processor := &UploadProcessor{Media: &MediaStore{DB: database}, Events: hub}

	mock.ExpectQuery(regexp.QuoteMeta(qOriginal)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	job := NewUploadJob("a.txt", []byte("a"), nil)
	require.NoError(t, processor.Process(context.Background(), job))

	mock.ExpectQuery(regexp.QuoteMeta(qOriginal)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	bad := NewUploadJob("cat.png", []byte("nope"), nil)
	assert.ErrorIs(t, processor.Process(context.Background(), bad), ErrInvalidImage)

	stored := (<-hub.ch).(UploadEvent)
	assert.Equal(t, UploadEvent{JobID: job.ID, Status: UploadStored, MediaID: 3}, stored)
	failed := (<-hub.ch).(UploadEvent)
	assert.Equal(t, UploadEvent{JobID: bad.ID, Status: UploadFailed, Error: "Invalid image"}, failed)
}

func TestHubDeliversToClients(t *testing.T) {
	hub := NewHub(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(UploadEvent{JobID: "j1", Status: UploadStored, MediaID: 9})

	var got UploadEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, UploadEvent{JobID: "j1", Status: UploadStored, MediaID: 9}, got)
}

func TestNilHubBroadcastIsSafe(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.Broadcast(UploadEvent{}) })
}
