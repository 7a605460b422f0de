package postgres

import (
	"context"
	"fmt"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/query"
)

// qualifiedTable returns the schema-qualified, quoted table reference.
func (c *PostgresConnector) qualifiedTable(ds *model.Datasource) (string, error) {
	if err := query.ValidateIdentifier(ds.TableName); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return c.QuoteIdentifier(c.schemaName) + "." + c.QuoteIdentifier(ds.TableName), nil
}

// buildAggregate renders a query object into a parameterized PostgreSQL
// aggregate SELECT with $N placeholders.
func (c *PostgresConnector) buildAggregate(ds *model.Datasource, obj model.QueryObject) (string, []interface{}, error) {
	table, err := c.qualifiedTable(ds)
	if err != nil {
		return "", nil, err
	}

	selectList, err := query.SelectList(ds, obj, c.QuoteIdentifier)
	if err != nil {
		return "", nil, err
	}
	where, args, err := query.WhereClause(ds, obj, c.QuoteIdentifier, query.DollarPlaceholder)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := query.OrderByClause(obj.OrderBy, c.QuoteIdentifier)
	if err != nil {
		return "", nil, err
	}

	sqlText := query.JoinClauses(
		"SELECT "+selectList,
		"FROM "+table,
		where,
		query.GroupByClause(obj, c.QuoteIdentifier),
		orderBy,
		query.LimitClause(query.LimitOffset, obj.RowLimit),
	)
	return sqlText, args, nil
}

// QueryString renders the statement this query object would execute, with
// bind values inlined for display.
func (c *PostgresConnector) QueryString(_ context.Context, ds *model.Datasource, obj model.QueryObject) (string, error) {
	sqlText, args, err := c.buildAggregate(ds, obj)
	if err != nil {
		return "", err
	}
	return query.InlineSQL(sqlText, args, query.DollarPlaceholder), nil
}

// Query executes the query object and returns the tabular result. Backend
// errors surface in the result's error state.
func (c *PostgresConnector) Query(ctx context.Context, ds *model.Datasource, obj model.QueryObject) (*model.QueryResult, error) {
	sqlText, args, err := c.buildAggregate(ds, obj)
	if err != nil {
		return nil, err
	}
	display := query.InlineSQL(sqlText, args, query.DollarPlaceholder)
	return connector.Run(ctx, c.db, sqlText, display, args), nil
}

// ValuesForColumn returns up to limit distinct values of a column.
func (c *PostgresConnector) ValuesForColumn(ctx context.Context, ds *model.Datasource, column string, limit int) ([]interface{}, error) {
	if err := query.ValidateIdentifier(column); err != nil {
		return nil, fmt.Errorf("invalid column: %w", err)
	}
	if ds.ColumnByName(column) == nil {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	table, err := c.qualifiedTable(ds)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = connector.DefaultValuesLimit
	}

	sqlText := fmt.Sprintf("SELECT DISTINCT %s FROM %s LIMIT %d", c.QuoteIdentifier(column), table, limit)
	cols, rows, err := connector.FetchRows(ctx, c.db, sqlText, nil)
	if err != nil {
		return nil, fmt.Errorf("values for column %q: %w", column, err)
	}
	values := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row[cols[0]])
	}
	return values, nil
}
