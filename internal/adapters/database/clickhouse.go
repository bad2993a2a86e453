package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// NewClickHouse opens the telemetry warehouse connection. The clickhouse
// driver is registered by the importing binary. The caller pings it; an
// unreachable warehouse is not fatal to the product.
func NewClickHouse(dsn string) (*DB, error) {
	conn, err := sqlx.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	return &DB{conn: conn}, nil
}
