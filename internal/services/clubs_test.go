package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailsRegistered(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_profile WHERE email = ANY($1)")).
		WithArgs(pq.Array([]string{"a@sac.in", "b@sac.in"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := EmailsRegistered(context.Background(), database, []string{" A@sac.in", "b@sac.in", "a@sac.in"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = EmailsRegistered(context.Background(), database, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateClubInsertsHeadsInOneTransaction(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM council WHERE name = $1")).
		WithArgs("Cultural").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_profile")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO club (name, email, description, council_id, club_head_emails, phones)")).
		WithArgs("Music", "music@sac.in", "We play", int64(4), pq.Array([]string{"head@sac.in"}), pq.Array([]string{"123"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO membership (user_id, club_id, role, privilege_level)")).
		WithArgs(int64(9), LevelHead, pq.Array([]string{"head@sac.in"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := CreateClub(context.Background(), database, NewClub{
		Name:        "Music",
		Email:       "Music@sac.in",
		Description: "We play",
		CouncilName: "Cultural",
		HeadEmails:  []string{"head@sac.in"},
		Phones:      []string{"123"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
}

func TestCreateClubRejectsUnregisteredHeads(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM council")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_profile")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := CreateClub(context.Background(), database, NewClub{Name: "Music", CouncilName: "Cultural", HeadEmails: []string{"ghost@sac.in"}})
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 400, serr.Status)
}

func TestCreateClubUnknownCouncil(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM council")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := CreateClub(context.Background(), database, NewClub{Name: "Music", CouncilName: "Nope", HeadEmails: []string{"h@sac.in"}})
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 404, serr.Status)
}

func TestUpdateClubNeedsExactlyOneChange(t *testing.T) {
	database, _ := newMockDB(t)
	desc := "new"
	email := "x@sac.in"

	err := UpdateClub(context.Background(), database, 1, ClubUpdate{})
	assert.Error(t, err)
	err = UpdateClub(context.Background(), database, 1, ClubUpdate{Description: &desc, Email: &email})
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "Exactly one update is required", serr.Message)
}

func TestUpdateClubDescription(t *testing.T) {
	database, mock := newMockDB(t)
	desc := "Jazz only"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE club SET description = $2 WHERE id = $1")).
		WithArgs(int64(3), "Jazz only").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, UpdateClub(context.Background(), database, 3, ClubUpdate{Description: &desc}))
}

func TestUpdateClubHeadsMovesMemberships(t *testing.T) {
	database, mock := newMockDB(t)
	heads := []string{"new@sac.in"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_profile")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE club SET club_head_emails = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE membership m SET role = 'member'")).
		WithArgs(int64(3), LevelMember, pq.Array(heads)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO membership")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, UpdateClub(context.Background(), database, 3, ClubUpdate{Heads: &heads}))
}

func joinStateRows(exists, member, pending bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"club_exists", "member", "pending"}).AddRow(exists, member, pending)
}

func TestJoinClub(t *testing.T) {
	cases := []struct {
		name    string
		rows    *sqlmock.Rows
		message string
		status  int
	}{
		{name: "missing club", rows: joinStateRows(false, false, false), message: "Club not found", status: 404},
		{name: "already member", rows: joinStateRows(true, true, false), message: "You are already a member of this club", status: 400},
		{name: "pending", rows: joinStateRows(true, false, true), message: "You have already applied to this club", status: 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			database, mock := newMockDB(t)
			mock.ExpectQuery(regexp.QuoteMeta("EXISTS(SELECT 1 FROM club WHERE id = $2)")).
				WithArgs(int64(1), int64(2)).
				WillReturnRows(tc.rows)

			err := JoinClub(context.Background(), database, 1, 2, "hi")
			serr, ok := AsServiceError(err)
			require.True(t, ok)
			assert.Equal(t, tc.status, serr.Status)
			assert.Equal(t, tc.message, serr.Message)
		})
	}

	t.Run("applies", func(t *testing.T) {
		database, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("EXISTS(SELECT 1 FROM club WHERE id = $2)")).
			WillReturnRows(joinStateRows(true, false, false))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO club_application (club_id, user_id, message)")).
			WithArgs(int64(2), int64(1), "let me in").
			WillReturnResult(sqlmock.NewResult(5, 1))

		require.NoError(t, JoinClub(context.Background(), database, 1, 2, "let me in"))
	})
}

func acceptedRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "club_id", "user_id", "message", "created_at", "accepted", "accepted_at"}).
		AddRow(7, 2, 11, "hi", time.Now(), true, time.Now())
}

func TestAcceptApplicationCommitsBothWrites(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE club_application SET accepted = TRUE")).
		WithArgs(int64(7)).
		WillReturnRows(acceptedRow())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO membership (user_id, club_id, role, privilege_level)")).
		WithArgs(int64(11), int64(2), LevelMember).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, AcceptApplication(context.Background(), database, 7))
}

func TestAcceptApplicationRollsBackWhenMembershipFails(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE club_application SET accepted = TRUE")).
		WillReturnRows(acceptedRow())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO membership")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := AcceptApplication(context.Background(), database, 7)
	require.Error(t, err)
	_, isService := AsServiceError(err)
	assert.False(t, isService)
}

func TestAcceptApplicationExistingMember(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE club_application SET accepted = TRUE")).
		WillReturnRows(acceptedRow())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO membership")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := AcceptApplication(context.Background(), database, 7)
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "User is already a member of this club", serr.Message)
}

func TestAcceptApplicationAlreadyAccepted(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE club_application SET accepted = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := AcceptApplication(context.Background(), database, 7)
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 400, serr.Status)
}

func TestClubFullView(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, description, council_id, club_head_emails, phones")).
		WithArgs("Music").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "description", "council_id", "club_head_emails", "phones"}).
			AddRow(3, "Music", "music@sac.in", "We play", 1, "{head@sac.in}", "{}"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, email, contact_number FROM user_profile WHERE email = $1")).
		WithArgs("head@sac.in").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "contact_number"}).AddRow("Head", "head@sac.in", nil))

	club, err := ClubFullView(context.Background(), database, "Music")
	require.NoError(t, err)
	assert.Equal(t, "Music", club.Name)
	assert.Empty(t, club.Phones)
	require.Len(t, club.Heads, 1)
	assert.Equal(t, HeadContact{Name: "Head", Email: "head@sac.in"}, club.Heads[0])
}

func TestClubFullViewMissing(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM club")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := ClubFullView(context.Background(), database, "Nope")
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 404, serr.Status)
}
