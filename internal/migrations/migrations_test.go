package migrations

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"V10__buses.sql":   {Data: []byte("SELECT 10")},
		"V2__clubs.sql":    {Data: []byte("SELECT 2")},
		"V1__init.sql":     {Data: []byte("SELECT 1")},
		"README.md":        {Data: []byte("docs")},
		"seed/V3__dev.sql": {Data: []byte("SELECT 3")},
	}
	migs, err := listMigrations(fsys)
	require.NoError(t, err)

	names := make([]string, 0, len(migs))
	for _, mig := range migs {
		names = append(names, mig.Name)
	}
	assert.Equal(t, []string{"V1__init.sql", "V2__clubs.sql", "V10__buses.sql"}, names)
}

func TestListMigrationsRejectsBadName(t *testing.T) {
	_, err := listMigrations(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1")}})
	assert.Error(t, err)
}

func TestApplySkipsRecordedMigrations(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	database := sqlx.NewDb(raw, "sqlmock")

	fsys := fstest.MapFS{
		"V1__init.sql":  {Data: []byte("CREATE TABLE a (id INT)")},
		"V2__more.sql": {Data: []byte("CREATE TABLE b (id INT)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("V1__init.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(2, "V2__more.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, Apply(context.Background(), database, fsys, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
