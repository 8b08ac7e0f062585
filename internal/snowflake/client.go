// Package snowflake implements the warehouse side of the pipeline: the
// bulk loader that upserts transformed tables and the sink that
// persists run metrics.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/greenbutton-etl/internal/config"
)

// LoadError reports a failed bulk load for one source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("[%s] load failed: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Client provides access to the Snowflake warehouse.
type Client struct {
	db         *sql.DB
	schemaName string
}

// NewClient opens a connection pool against the configured database and
// schema. DSN format: user:password@account/database/schema.
func NewClient(creds *config.Credentials, dbName, schemaName string) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		creds.User,
		creds.Password,
		creds.Host,
		dbName,
		schemaName,
	)

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{db: db, schemaName: schemaName}, nil
}

// NewClientWithDB wraps an existing handle, used by tests.
func NewClientWithDB(db *sql.DB, schemaName string) *Client {
	return &Client{db: db, schemaName: schemaName}
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
