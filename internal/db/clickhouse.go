package db

import (
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
)

// NewClickHouseConnection opens the reporting-lane pool. The DSN carries its
// own options, e.g.
// clickhouse://default:@localhost:9000/reminders?dial_timeout=5s&compress=true
func NewClickHouseConnection(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty ClickHouse DSN")
	}
	conn, err := sqlx.Open("clickhouse", dsn)
	if err != nil {
		return nil, err
	}
	tunePool(conn, opts)
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 3 * time.Second
	}
	if err := verify(conn, opts.PingTimeout); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return conn, nil
}
