package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = raw.Close()
	})
	return sqlx.NewDb(raw, "sqlmock"), mock
}

type plainHasher struct{}

func (plainHasher) Hash(raw string) (string, error) { return "plain:" + raw, nil }

func (plainHasher) Verify(raw, hashed string) bool { return hashed == "plain:"+raw }

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

type memoryNonces struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (n *memoryNonces) Consume(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return false, n.err
	}
	if n.seen == nil {
		n.seen = map[string]bool{}
	}
	if n.seen[key] {
		return false, nil
	}
	n.seen[key] = true
	return true, nil
}

func (n *memoryNonces) Release(ctx context.Context, key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.seen, key)
	return nil
}
