package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireWriterLevels(t *testing.T) {
	cases := []struct {
		name    string
		rows    *sqlmock.Rows
		allowed bool
	}{
		{name: "no membership", rows: sqlmock.NewRows([]string{"privilege_level"}), allowed: false},
		{name: "member", rows: sqlmock.NewRows([]string{"privilege_level"}).AddRow(0), allowed: false},
		{name: "pending", rows: sqlmock.NewRows([]string{"privilege_level"}).AddRow(1), allowed: false},
		{name: "head", rows: sqlmock.NewRows([]string{"privilege_level"}).AddRow(2), allowed: true},
		{name: "above head", rows: sqlmock.NewRows([]string{"privilege_level"}).AddRow(5), allowed: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			database, mock := newMockDB(t)
			mock.ExpectQuery(regexp.QuoteMeta("SELECT privilege_level FROM membership")).
				WithArgs(int64(10), int64(3)).
				WillReturnRows(tc.rows)

			err := Gate{DB: database}.RequireWriter(context.Background(), 10, 3, "create threads")
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			serr, ok := AsServiceError(err)
			require.True(t, ok)
			assert.Equal(t, 403, serr.Status)
			assert.Equal(t, "You are not allowed to create threads in this club", serr.Message)
		})
	}
}

func TestPrivilegeLevelPropagatesStorageErrors(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT privilege_level FROM membership")).
		WillReturnError(errors.New("connection reset"))

	_, err := Gate{DB: database}.PrivilegeLevel(context.Background(), 1, 1)
	require.Error(t, err)
	_, isService := AsServiceError(err)
	assert.False(t, isService)
}

func TestRequireAdmin(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM admin")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM admin")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	gate := Gate{DB: database}
	assert.NoError(t, gate.RequireAdmin(context.Background(), 1))
	err := gate.RequireAdmin(context.Background(), 2)
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 403, serr.Status)
}

func TestRequireClubHeadOrAdmin(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM admin")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("ANY(club_head_emails)")).
		WithArgs(int64(4), "head@example.org").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := Gate{DB: database}.RequireClubHeadOrAdmin(context.Background(), Identity{ID: 8, Email: "head@example.org"}, 4)
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "You are not a club head", serr.Message)
}
