package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	DSN                string `split_words:"true" required:"true"`
	MaxConnections     int    `split_words:"true" default:"10"`
	MaxIdleConnections int    `split_words:"true" default:"5"`
}

// New opens a pooled connection and verifies it with a ping.
func (c *Config) New() (*sqlx.DB, error) {
	dsn := c.DSN
	// Disable prepared statement caching to avoid "unnamed prepared
	// statement does not exist" errors behind connection poolers.
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(c.MaxConnections)
	db.SetMaxIdleConns(c.MaxIdleConnections)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
