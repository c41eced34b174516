// Package db is the persistence layer: connection management, domain
// models, and org-scoped repository methods for products, locations,
// suppliers, inventory movements, orders, purchase orders, and the two
// precomputed analytics marts (sales-daily, reorder-inputs).
package db

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// Open establishes the pooled *sql.DB connection, applying the same
// connection-lifecycle tuning the teacher applies (max open/idle
// connections, connection max lifetime) before the first query runs.
func Open(databaseURL string, maxConns, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(maxLifetime)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}
