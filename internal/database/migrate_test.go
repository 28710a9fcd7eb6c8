package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-manager/internal/config"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 4)
	for i, table := range []string{"events", "seat_locks", "invitations", "waitlist_entries"} {
		assert.Contains(t, stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" (")
		assert.NotContains(t, stmts[i], "--")
	}
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range Statements() {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.StoreConfig{DBUser: "app", DBPass: "secret", DBHost: "db", DBPort: "3306", DBName: "seats"})

	c, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", c.User)
	assert.Equal(t, "secret", c.Passwd)
	assert.Equal(t, "db:3306", c.Addr)
	assert.Equal(t, "seats", c.DBName)
	assert.True(t, c.ParseTime)
	assert.True(t, c.ClientFoundRows)
	assert.Equal(t, "UTC", c.Loc.String())
}
