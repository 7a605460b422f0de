package connector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/prismbi/prism/internal/model"
)

// DefaultValuesLimit caps ValuesForColumn results when the caller does not
// provide a limit. Matches what filter-picker dropdowns can sensibly render.
const DefaultValuesLimit = 10000

// ErrNotImplemented is returned when a capability is invoked on a connector
// that does not provide it. Concrete connectors override the Unimplemented
// stubs for every capability they support.
var ErrNotImplemented = errors.New("not implemented by this connector")

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	SchemaName      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PrivateKeyPath  string // Path to PEM-encoded private key file (Snowflake JWT auth)
}

// Connector is the capability interface every datasource backend implements.
// It is the uniform contract the rest of Prism talks to: render a query for
// display, execute it, enumerate distinct column values for filter pickers,
// introspect live columns, and compose permission strings.
type Connector interface {
	// Connection management
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB

	// QueryString renders the query object as the statement that would run,
	// for display to the user so they can see what happens behind the scene.
	QueryString(ctx context.Context, ds *model.Datasource, obj model.QueryObject) (string, error)

	// Query executes the query object and returns tabular results plus any
	// error state from the backend.
	Query(ctx context.Context, ds *model.Datasource, obj model.QueryObject) (*model.QueryResult, error)

	// ValuesForColumn returns up to limit distinct values of a column, used
	// to populate the filter dropdowns in the explore view.
	ValuesForColumn(ctx context.Context, ds *model.Datasource, column string, limit int) ([]interface{}, error)

	// FetchColumns introspects the live columns of a table with capability
	// flags inferred from the physical types.
	FetchColumns(ctx context.Context, table string) ([]model.Column, error)

	// Permission composition
	Permission(ds *model.Datasource) string
	MetricPermission(ds *model.Datasource, m *model.Metric) string

	// Dialect metadata
	DriverName() string
	QuoteIdentifier(name string) string
	ParameterPlaceholder(index int) string
}

// Unimplemented provides a stub for every optional capability, each failing
// with ErrNotImplemented. Connectors embed it so the interface can grow
// without breaking them, and so invoking an unsupported capability fails
// explicitly instead of panicking.
type Unimplemented struct{}

func (Unimplemented) QueryString(context.Context, *model.Datasource, model.QueryObject) (string, error) {
	return "", fmt.Errorf("query rendering: %w", ErrNotImplemented)
}

func (Unimplemented) Query(context.Context, *model.Datasource, model.QueryObject) (*model.QueryResult, error) {
	return nil, fmt.Errorf("query execution: %w", ErrNotImplemented)
}

func (Unimplemented) ValuesForColumn(context.Context, *model.Datasource, string, int) ([]interface{}, error) {
	return nil, fmt.Errorf("column values: %w", ErrNotImplemented)
}

func (Unimplemented) FetchColumns(context.Context, string) ([]model.Column, error) {
	return nil, fmt.Errorf("column introspection: %w", ErrNotImplemented)
}

// DatasourcePermission composes the canonical permission string for a
// datasource: "[type].[name](id:N)". Stored on the record so access checks
// do not need the connector at hand.
func DatasourcePermission(ds *model.Datasource) string {
	return fmt.Sprintf("[%s].[%s](id:%d)", ds.Type, ds.Name, ds.ID)
}

// MetricPermission composes the permission string guarding a restricted
// metric: the owning datasource's permission plus the metric reference.
// Unrestricted metrics need no permission and yield an empty string.
func MetricPermission(ds *model.Datasource, m *model.Metric) string {
	if !m.IsRestricted {
		return ""
	}
	return fmt.Sprintf("%s.[%s](id:%d)", DatasourcePermission(ds), m.MetricName, m.ID)
}

// InferCapabilities fills a column's capability flags from its classified
// type: numeric columns take the aggregation flags, non-numeric columns are
// groupby/filterable, time columns additionally support min/max, and every
// column supports count-distinct.
func InferCapabilities(c *model.Column) {
	c.CountDistinct = true
	if c.IsNum() {
		c.Sum = true
		c.Avg = true
		c.Min = true
		c.Max = true
	} else {
		c.Groupby = true
		c.Filterable = true
	}
	if c.IsTime() {
		c.Min = true
		c.Max = true
	}
}

// SanitizeDSN ensures that URL-style DSNs (postgres://, sqlserver://) have
// their userinfo (especially the password) properly percent-encoded. Raw
// passwords containing @, #, %, or other URL-special characters cause the
// Go URL parser to mis-split the authority component, leading to connection
// failures that surface as "datasource not found" because the connector
// never registers in the live registry.
//
// MySQL DSNs are normalized to use the tcp() wrapper required by go-sql-driver.
// Snowflake and Oracle use their own non-URL DSN formats and are returned
// unchanged.
func SanitizeDSN(driver, dsn string) string {
	switch driver {
	case "postgres", "mssql":
		return sanitizeURLDSN(dsn)
	case "mysql":
		return sanitizeMySQLDSN(dsn)
	default:
		return dsn
	}
}

// mysqlBareHostPort matches "user:pass@host:port/db" (no tcp() wrapper, no ()
// wrapper). We look for the last "@" followed by what looks like host:port/db.
var mysqlBareHostPort = regexp.MustCompile(`^(.+)@([^(@]+:\d+)(/.*)?$`)

// sanitizeMySQLDSN normalizes a MySQL DSN so that go-sql-driver/mysql can
// parse it correctly. The driver requires the format:
//
//	user:pass@tcp(host:port)/dbname
//
// Common mistakes from users:
//
//	user:pass@host:port/db          → missing tcp() wrapper
//	user:pass@(host:port)/db        → missing "tcp" before parens
//	user:pass@tcp(host:port)/db     → already correct
//
// When the password contains "@", the driver's ParseDSN splits on the last
// "@" before "/" — this works ONLY when "tcp(" is present, otherwise the
// parser treats the password fragment as a network name.
func sanitizeMySQLDSN(dsn string) string {
	// If it already parses cleanly and has a known network, trust it.
	if cfg, err := mysqldriver.ParseDSN(dsn); err == nil && (cfg.Net == "tcp" || cfg.Net == "unix") {
		return cfg.FormatDSN()
	}

	// Try to fix common patterns.

	// Pattern: user:pass@(host:port)/db — missing "tcp" keyword.
	if idx := strings.LastIndex(dsn, "@("); idx >= 0 {
		fixed := dsn[:idx] + "@tcp" + dsn[idx+1:]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Pattern: user:pass@host:port/db — no parens at all.
	if m := mysqlBareHostPort.FindStringSubmatch(dsn); m != nil {
		userpass := m[1]
		hostport := m[2]
		dbpart := m[3]
		fixed := userpass + "@tcp(" + hostport + ")" + dbpart
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Nothing worked — return as-is and let the connect call give a clear error.
	return dsn
}

// sanitizeURLDSN parses a DSN that begins with a scheme (e.g.
// postgres://user:p@ss#word@host/db) and re-encodes the password so the
// URL library can parse it unambiguously.
func sanitizeURLDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn // not a URL-style DSN, return as-is
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	// Split off query/fragment from the authority+path portion.
	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// Find the LAST '@' — everything before it is userinfo, everything after is host+path.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn // no credentials in the DSN
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	// Split userinfo into user and password at the FIRST ':'.
	user := userinfo
	pass := ""
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
	}

	// Re-encode. url.QueryEscape encodes spaces as '+' which isn't right for
	// passwords; url.PathEscape leaves the tricky characters covered.
	encodedUser := url.PathEscape(user)
	encodedPass := url.PathEscape(pass)

	return scheme + "://" + encodedUser + ":" + encodedPass + "@" + hostpath + query
}
