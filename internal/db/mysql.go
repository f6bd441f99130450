package db

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// NewMySQLConnection opens and verifies the primary MySQL pool. Every
// repository in internal/repository shares the returned handle.
func NewMySQLConnection(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	conn, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	tunePool(conn, opts)
	if err := verify(conn, opts.PingTimeout); err != nil {
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return conn, nil
}
