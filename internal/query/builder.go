package query

import (
	"fmt"
	"strings"

	"github.com/prismbi/prism/internal/model"
)

// QuoteFunc quotes a single SQL identifier for a dialect.
type QuoteFunc func(string) string

// PlaceholderFunc returns the bind-parameter placeholder for a 1-based index.
type PlaceholderFunc func(index int) string

// DollarPlaceholder returns PostgreSQL-style $N placeholders.
func DollarPlaceholder(index int) string { return fmt.Sprintf("$%d", index) }

// QuestionPlaceholder returns ?-style placeholders (MySQL, SQLite).
func QuestionPlaceholder(_ int) string { return "?" }

// AtPPlaceholder returns SQL Server-style @pN placeholders.
func AtPPlaceholder(index int) string { return fmt.Sprintf("@p%d", index) }

// ColonPlaceholder returns Oracle-style :N placeholders.
func ColonPlaceholder(index int) string { return fmt.Sprintf(":%d", index) }

// PostgresQuote returns a double-quoted identifier (PostgreSQL, Snowflake,
// SQLite, Oracle). Embedded quotes are doubled.
func PostgresQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// MySQLQuote returns a backtick-quoted identifier.
func MySQLQuote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SQLServerQuote returns a bracket-quoted identifier.
func SQLServerQuote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// SelectList assembles the SELECT list for an aggregate query: the quoted
// groupby columns followed by each requested metric's expression aliased to
// the metric name. Metric names are resolved against the datasource; asking
// for an unknown metric is an error so typos fail loudly instead of being
// silently dropped.
func SelectList(ds *model.Datasource, obj model.QueryObject, quote QuoteFunc) (string, error) {
	if len(obj.Metrics) == 0 && len(obj.Groupby) == 0 {
		return "", fmt.Errorf("query object requests no metrics and no groupby columns")
	}

	parts := make([]string, 0, len(obj.Groupby)+len(obj.Metrics))

	for _, col := range obj.Groupby {
		if err := ValidateIdentifier(col); err != nil {
			return "", fmt.Errorf("invalid groupby column: %w", err)
		}
		c := ds.ColumnByName(col)
		if c == nil {
			return "", fmt.Errorf("unknown column %q", col)
		}
		if !c.Groupby {
			return "", fmt.Errorf("column %q is not groupby-able", col)
		}
		parts = append(parts, quote(col))
	}

	for _, name := range obj.Metrics {
		m := ds.MetricByName(name)
		if m == nil {
			return "", fmt.Errorf("unknown metric %q", name)
		}
		expr := m.Expression
		if expr == "" {
			return "", fmt.Errorf("metric %q has no expression", name)
		}
		if err := ValidateIdentifier(m.MetricName); err != nil {
			return "", fmt.Errorf("invalid metric name: %w", err)
		}
		parts = append(parts, expr+" AS "+quote(m.MetricName))
	}

	return strings.Join(parts, ", "), nil
}

// GroupByClause renders the GROUP BY fragment for the groupby columns, or
// an empty string when the query has no grouping.
func GroupByClause(obj model.QueryObject, quote QuoteFunc) string {
	if len(obj.Groupby) == 0 {
		return ""
	}
	quoted := make([]string, len(obj.Groupby))
	for i, col := range obj.Groupby {
		quoted[i] = quote(col)
	}
	return "GROUP BY " + strings.Join(quoted, ", ")
}

// OrderByClause renders the ORDER BY fragment from [column, ascending]
// directives. Order targets may be groupby columns or metric aliases;
// both are validated as identifiers before quoting.
func OrderByClause(order []model.OrderBy, quote QuoteFunc) (string, error) {
	if len(order) == 0 {
		return "", nil
	}
	parts := make([]string, len(order))
	for i, o := range order {
		if err := ValidateIdentifier(o.Column); err != nil {
			return "", fmt.Errorf("invalid order column: %w", err)
		}
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		parts[i] = quote(o.Column) + " " + dir
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

// LimitStyle selects how a dialect caps result rows.
type LimitStyle int

const (
	// LimitOffset appends "LIMIT n" (PostgreSQL, MySQL, SQLite, Snowflake).
	LimitOffset LimitStyle = iota
	// FetchFirst appends "FETCH FIRST n ROWS ONLY" (SQL Server ≥2012 needs
	// ORDER BY with OFFSET; Oracle 12c+ supports it bare).
	FetchFirst
	// TopN injects "TOP n" after SELECT (legacy SQL Server paths).
	TopN
)

// LimitClause renders the trailing row-limit fragment for LimitOffset and
// FetchFirst styles. Returns an empty string for limit <= 0 or TopN, where
// the cap belongs in the SELECT keyword instead.
func LimitClause(style LimitStyle, limit int) string {
	if limit <= 0 {
		return ""
	}
	switch style {
	case LimitOffset:
		return fmt.Sprintf("LIMIT %d", limit)
	case FetchFirst:
		return fmt.Sprintf("FETCH FIRST %d ROWS ONLY", limit)
	default:
		return ""
	}
}

// JoinClauses joins non-empty SQL fragments with single spaces.
func JoinClauses(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
