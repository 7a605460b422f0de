package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Datasource is the common interface record for anything queryable: a table
// in a SQL warehouse, a view, or a non-SQL store exposed through a connector.
// Each datasource maps to one physical entity reachable through its Type
// driver, and owns the column and metric metadata the explore UI works from.
type Datasource struct {
	ID              int64  `json:"id" db:"id"`
	Type            string `json:"type" db:"type"` // postgres, mysql, mssql, snowflake, sqlite, oracle
	Name            string `json:"name" db:"name"`
	Description     string `json:"description" db:"description"`
	DefaultEndpoint string `json:"default_endpoint" db:"default_endpoint"`

	// Connection details for the backing store.
	DSN            string `json:"dsn,omitempty" db:"dsn"` // Accepted on input; omitted in list responses
	PrivateKeyPath string `json:"private_key_path,omitempty" db:"private_key_path"`
	Schema         string `json:"schema" db:"schema_name"`
	TableName      string `json:"table_name" db:"table_name"`

	IsFeatured         bool   `json:"is_featured" db:"is_featured"`
	FilterSelectEnabled bool  `json:"filter_select_enabled" db:"filter_select_enabled"`
	Offset             int    `json:"offset" db:"offset"`
	CacheTimeout       *int   `json:"cache_timeout,omitempty" db:"cache_timeout"`
	Params             string `json:"params" db:"params"` // opaque JSON blob for connector-specific settings
	Perm               string `json:"perm" db:"perm"`
	MainDatetimeColumn string `json:"main_dttm_col" db:"main_dttm_col"`

	Pool PoolConfig `json:"pool"`

	// Owned collections. Always per-record slices loaded from the store,
	// never shared defaults.
	Columns []Column `json:"columns"`
	Metrics []Metric `json:"metrics"`

	AuditFields
}

// ExportFields lists the datasource fields that participate in import/export.
func (d *Datasource) ExportFields() []string {
	return []string{
		"name", "type", "schema", "table_name", "description",
		"default_endpoint", "is_featured", "filter_select_enabled",
		"offset", "cache_timeout", "params", "main_dttm_col",
	}
}

// UID returns the identifier that is unique across all datasource types.
// Numeric IDs are only unique per type, so the type tag is folded in.
func (d *Datasource) UID() string {
	return fmt.Sprintf("%d__%s", d.ID, d.Type)
}

// ParseUID splits a datasource UID of the form "{id}__{type}" back into its
// numeric ID and type tag.
func ParseUID(uid string) (int64, string, error) {
	idx := strings.Index(uid, "__")
	if idx <= 0 || idx+2 >= len(uid) {
		return 0, "", fmt.Errorf("malformed datasource uid %q", uid)
	}
	id, err := strconv.ParseInt(uid[:idx], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed datasource uid %q: %w", uid, err)
	}
	return id, uid[idx+2:], nil
}

// ColumnNames returns all column names in ascending lexicographic order.
func (d *Datasource) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// GroupbyColumnNames returns the names of groupby-able columns, sorted.
func (d *Datasource) GroupbyColumnNames() []string {
	names := []string{}
	for _, c := range d.Columns {
		if c.Groupby {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// FilterableColumnNames returns the names of filterable columns, sorted.
func (d *Datasource) FilterableColumnNames() []string {
	names := []string{}
	for _, c := range d.Columns {
		if c.Filterable {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// DatetimeColumnNames returns the names of time-typed columns, sorted.
func (d *Datasource) DatetimeColumnNames() []string {
	names := []string{}
	for _, c := range d.Columns {
		if c.IsTime() {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// MainDttmCol returns the column used as the primary time axis. Falls back
// to "timestamp" when the datasource does not configure one.
func (d *Datasource) MainDttmCol() string {
	if d.MainDatetimeColumn != "" {
		return d.MainDatetimeColumn
	}
	return "timestamp"
}

// MetricsCombo returns (metric_name, label) pairs sorted by label, where the
// label is the verbose name or the metric name when no verbose name is set.
// The sort is stable so ties keep their input order.
func (d *Datasource) MetricsCombo() []Choice {
	combo := make([]Choice, 0, len(d.Metrics))
	for _, m := range d.Metrics {
		combo = append(combo, Choice{m.MetricName, m.Label()})
	}
	sort.SliceStable(combo, func(i, j int) bool { return combo[i][1] < combo[j][1] })
	return combo
}

// ColumnFormats maps metric names to their d3 display-format strings,
// skipping metrics that do not define one.
func (d *Datasource) ColumnFormats() map[string]string {
	formats := map[string]string{}
	for _, m := range d.Metrics {
		if m.D3Format != "" {
			formats[m.MetricName] = m.D3Format
		}
	}
	return formats
}

// EditURL returns the path to the edit view for this datasource.
func (d *Datasource) EditURL() string {
	return fmt.Sprintf("/%sdatasource/edit/%d", d.Type, d.ID)
}

// ExploreURL returns the configured default endpoint verbatim when set,
// otherwise the synthesized per-type, per-id explore path.
func (d *Datasource) ExploreURL() string {
	if d.DefaultEndpoint != "" {
		return d.DefaultEndpoint
	}
	return fmt.Sprintf("/prism/explore/%s/%d/", d.Type, d.ID)
}

// OrderByChoices returns the flattened list of order-by options the frontend
// renders: one ascending and one descending entry per column, in column
// order. The choice value is the JSON-encoded [name, ascending] pair the
// frontend posts back inside a query object.
func (d *Datasource) OrderByChoices() []Choice {
	choices := []Choice{}
	for _, name := range d.ColumnNames() {
		asc, _ := json.Marshal([]interface{}{name, true})
		desc, _ := json.Marshal([]interface{}{name, false})
		choices = append(choices,
			Choice{string(asc), name + " [asc]"},
			Choice{string(desc), name + " [desc]"},
		)
	}
	return choices
}

// DatasourceData is the snapshot of a datasource sent to the frontend.
// The key set is a wire-format contract; renaming a key breaks the UI.
type DatasourceData struct {
	AllCols        []Choice          `json:"all_cols"`
	ColumnFormats  map[string]string `json:"column_formats"`
	EditURL        string            `json:"edit_url"`
	FilterSelect   bool              `json:"filter_select"`
	FilterableCols []Choice          `json:"filterable_cols"`
	GroupbyCols    []Choice          `json:"gb_cols"`
	ID             int64             `json:"id"`
	MetricsCombo   []Choice          `json:"metrics_combo"`
	Name           string            `json:"name"`
	OrderByChoices []Choice          `json:"order_by_choices"`
	Type           string            `json:"type"`
}

// Data assembles the full frontend snapshot for this datasource.
func (d *Datasource) Data() DatasourceData {
	return DatasourceData{
		AllCols:        Choicify(d.ColumnNames()),
		ColumnFormats:  d.ColumnFormats(),
		EditURL:        d.EditURL(),
		FilterSelect:   d.FilterSelectEnabled,
		FilterableCols: Choicify(d.FilterableColumnNames()),
		GroupbyCols:    Choicify(d.GroupbyColumnNames()),
		ID:             d.ID,
		MetricsCombo:   d.MetricsCombo(),
		Name:           d.Name,
		OrderByChoices: d.OrderByChoices(),
		Type:           d.Type,
	}
}

// ColumnByName returns the column with the given name, or nil.
func (d *Datasource) ColumnByName(name string) *Column {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// MetricByName returns the metric with the given name, or nil.
func (d *Datasource) MetricByName(name string) *Metric {
	for i := range d.Metrics {
		if d.Metrics[i].MetricName == name {
			return &d.Metrics[i]
		}
	}
	return nil
}

// PoolConfig controls the database connection pool behavior for a datasource.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	PingInterval    time.Duration `yaml:"ping_interval" json:"ping_interval"`
}

// DefaultPoolConfig returns sensible defaults for a database connection pool.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		PingInterval:    30 * time.Second,
	}
}
