package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-seat-manager/internal/config"
)

// DSN builds the driver connection string for s.  Times are parsed as UTC
// and UPDATE reports matched rows, so an unchanged row still counts as found.
func DSN(s config.StoreConfig) string {
	c := mysql.NewConfig()
	c.User = s.DBUser
	c.Passwd = s.DBPass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(s.DBHost, s.DBPort)
	c.DBName = s.DBName
	c.ParseTime = true
	c.Loc = time.UTC
	c.ClientFoundRows = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, s config.StoreConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(s))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
