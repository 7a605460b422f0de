package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
)

// SQLiteConnector implements connector.Connector for SQLite-backed
// datasources. SQLite has no schemas, so qualification is skipped.
type SQLiteConnector struct {
	db *sqlx.DB
}

// New creates a new SQLiteConnector.
func New() connector.Connector {
	return &SQLiteConnector{}
}

// Connect opens the SQLite database file specified in the DSN. The DSN is a
// file path or ":memory:"; query parameters like ?_journal_mode=WAL are
// supported.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlite", cfg.DSN)
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// Permission returns the canonical permission string for the datasource.
func (c *SQLiteConnector) Permission(ds *model.Datasource) string {
	return connector.DatasourcePermission(ds)
}

// MetricPermission returns the permission string guarding a restricted
// metric, or an empty string for unrestricted metrics.
func (c *SQLiteConnector) MetricPermission(ds *model.Datasource, m *model.Metric) string {
	return connector.MetricPermission(ds, m)
}

// DriverName returns the driver identifier for SQLite.
func (c *SQLiteConnector) DriverName() string { return "sqlite" }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes to prevent SQL injection.
func (c *SQLiteConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParameterPlaceholder returns a SQLite-style positional parameter
// placeholder (?). SQLite ignores the index.
func (c *SQLiteConnector) ParameterPlaceholder(_ int) string {
	return "?"
}
