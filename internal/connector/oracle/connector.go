package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
)

// OracleConnector implements connector.Connector for Oracle-backed
// datasources.
type OracleConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new OracleConnector with default settings.
func New() connector.Connector {
	return &OracleConnector{}
}

// Connect establishes a connection to the Oracle database using the provided
// configuration. It configures connection pool settings and stores the
// schema name for table qualification and introspection. When no schema is
// configured, queries run against the connected user's own schema.
func (c *OracleConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("oracle", cfg.DSN)
	if err != nil {
		return fmt.Errorf("oracle connect: %w", err)
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
func (c *OracleConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *OracleConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *OracleConnector) DB() *sqlx.DB {
	return c.db
}

// Permission returns the canonical permission string for the datasource.
func (c *OracleConnector) Permission(ds *model.Datasource) string {
	return connector.DatasourcePermission(ds)
}

// MetricPermission returns the permission string guarding a restricted
// metric, or an empty string for unrestricted metrics.
func (c *OracleConnector) MetricPermission(ds *model.Datasource, m *model.Metric) string {
	return connector.MetricPermission(ds, m)
}

// DriverName returns the driver identifier for Oracle.
func (c *OracleConnector) DriverName() string { return "oracle" }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes. Oracle identifiers are case-sensitive when
// quoted.
func (c *OracleConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParameterPlaceholder returns an Oracle-style numbered bind placeholder
// (e.g., :1, :2, :3).
func (c *OracleConnector) ParameterPlaceholder(index int) string {
	return fmt.Sprintf(":%d", index)
}
