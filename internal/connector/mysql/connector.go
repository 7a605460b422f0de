package mysql

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
)

// MySQLConnector implements connector.Connector for MySQL-backed
// datasources.
type MySQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MySQLConnector with default settings.
func New() connector.Connector {
	return &MySQLConnector{}
}

// Connect establishes a connection to the MySQL database using the provided
// configuration. It configures connection pool settings and stores the
// schema name for table qualification and introspection.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("mysql", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
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

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	// If no schema name provided, query the current database name
	if c.schemaName == "" {
		var dbName string
		if err := db.Get(&dbName, "SELECT DATABASE()"); err == nil && dbName != "" {
			c.schemaName = dbName
		}
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

// Permission returns the canonical permission string for the datasource.
func (c *MySQLConnector) Permission(ds *model.Datasource) string {
	return connector.DatasourcePermission(ds)
}

// MetricPermission returns the permission string guarding a restricted
// metric, or an empty string for unrestricted metrics.
func (c *MySQLConnector) MetricPermission(ds *model.Datasource, m *model.Metric) string {
	return connector.MetricPermission(ds, m)
}

// DriverName returns the driver identifier for MySQL.
func (c *MySQLConnector) DriverName() string { return "mysql" }

// QuoteIdentifier wraps a SQL identifier in backticks, escaping any
// embedded backticks to prevent SQL injection.
func (c *MySQLConnector) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ParameterPlaceholder returns a MySQL-style positional parameter
// placeholder (?). MySQL ignores the index.
func (c *MySQLConnector) ParameterPlaceholder(_ int) string {
	return "?"
}
