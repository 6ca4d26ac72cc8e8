package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeThreadCountsOncePerUser(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thread_likes (thread_id, user_id) VALUES ($1, $2)")).
		WithArgs(int64(4), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE thread SET likes = likes + 1 WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, LikeThread(context.Background(), database, 1, 4))
}

func TestLikeThreadDuplicate(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thread_likes")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := LikeThread(context.Background(), database, 1, 4)
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 400, serr.Status)
	assert.Equal(t, "You already liked this thread", serr.Message)
}

func TestLikeCommentMissing(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO comment_likes (comment_id, user_id)")).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := LikeComment(context.Background(), database, 1, 99)
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 404, serr.Status)
	assert.Equal(t, "Comment not found", serr.Message)
}

func TestListThreads(t *testing.T) {
	database, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM thread t")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "user_id", "author", "club_id", "likes", "created_at"}).
			AddRow(5, "Gig", "Friday", 1, "Asha", 2, 3, now))

	items, err := ListThreads(context.Background(), database, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Asha", items[0].Author)
	assert.Equal(t, 3, items[0].Likes)
}

func TestCreateCommentOnMissingThread(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO comment (thread_id, user_id, content)")).
		WithArgs(int64(8), int64(1), "nice").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := CreateComment(context.Background(), database, 1, 8, "nice")
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "Thread not found", serr.Message)
}

func TestCreateEventReturnsID(t *testing.T) {
	database, mock := newMockDB(t)
	starts := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO event (title, description, user_id, club_id, starts_at, venue)")).
		WithArgs("Jam", "Open mic", int64(1), int64(2), starts, "Hall").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	id, err := CreateEvent(context.Background(), database, 1, NewEvent{Title: "Jam", Description: "Open mic", ClubID: 2, StartsAt: starts, Venue: "Hall"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
}

func TestPublicAnnouncementsEmpty(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM announcement")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "created_at"}))

	items, err := PublicAnnouncements(context.Background(), database)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestBusesFrom(t *testing.T) {
	database, mock := newMockDB(t)
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE stops[1] = $1 AND end_time >= $2::time")).
		WithArgs("Main Gate", "09:30:00").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stops", "start_time", "end_time"}).
			AddRow(1, "{\"Main Gate\",Library}", "09:00", "10:00"))

	buses, err := BusesFrom(context.Background(), database, "Main Gate", now)
	require.NoError(t, err)
	require.Len(t, buses, 1)
	assert.Equal(t, []string{"Main Gate", "Library"}, []string(buses[0].Stops))
	assert.Equal(t, "09:00", buses[0].StartTime)
}

func TestUpdateCouncil(t *testing.T) {
	database, mock := newMockDB(t)
	secretary := "Sec@sac.in"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE council SET secretary_email = $2 WHERE name = $1")).
		WithArgs("Cultural", "sec@sac.in").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := UpdateCouncil(context.Background(), database, "Cultural", CouncilUpdate{Secretary: &secretary})
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 404, serr.Status)

	err = UpdateCouncil(context.Background(), database, "Cultural", CouncilUpdate{})
	assert.Error(t, err)
}

func TestCreateCouncilDuplicate(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_profile")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO council")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := CreateCouncil(context.Background(), database, NewCouncil{Name: "Cultural", SecretaryEmail: "s@sac.in", DeputySecretaries: []string{"d@sac.in"}})
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 409, serr.Status)
}
