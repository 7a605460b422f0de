package postgres

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
)

// PostgresConnector implements connector.Connector for PostgreSQL-backed
// datasources.
type PostgresConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new PostgresConnector with default settings.
func New() connector.Connector {
	return &PostgresConnector{schemaName: "public"}
}

// Connect establishes a connection to the PostgreSQL database using the
// provided configuration. It configures connection pool settings and stores
// the schema name for table qualification and introspection.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
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

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// Permission returns the canonical permission string for the datasource.
func (c *PostgresConnector) Permission(ds *model.Datasource) string {
	return connector.DatasourcePermission(ds)
}

// MetricPermission returns the permission string guarding a restricted
// metric, or an empty string for unrestricted metrics.
func (c *PostgresConnector) MetricPermission(ds *model.Datasource, m *model.Metric) string {
	return connector.MetricPermission(ds, m)
}

// DriverName returns the driver identifier for PostgreSQL.
func (c *PostgresConnector) DriverName() string { return "postgres" }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes to prevent SQL injection.
func (c *PostgresConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParameterPlaceholder returns a PostgreSQL-style $N placeholder.
func (c *PostgresConnector) ParameterPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}
