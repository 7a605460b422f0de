package mssql

import (
	"context"
	"fmt"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/query"
)

// qualifiedTable returns the schema-qualified, bracketed table reference.
func (c *MSSQLConnector) qualifiedTable(ds *model.Datasource) (string, error) {
	if err := query.ValidateIdentifier(ds.TableName); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return c.QuoteIdentifier(c.schemaName) + "." + c.QuoteIdentifier(ds.TableName), nil
}

// buildAggregate renders a query object into a parameterized SQL Server
// aggregate SELECT with @pN placeholders. Row limits use TOP, which works
// with and without ORDER BY; OFFSET/FETCH requires ORDER BY.
func (c *MSSQLConnector) buildAggregate(ds *model.Datasource, obj model.QueryObject) (string, []interface{}, error) {
	table, err := c.qualifiedTable(ds)
	if err != nil {
		return "", nil, err
	}

	selectList, err := query.SelectList(ds, obj, c.QuoteIdentifier)
	if err != nil {
		return "", nil, err
	}
	where, args, err := query.WhereClause(ds, obj, c.QuoteIdentifier, query.AtPPlaceholder)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := query.OrderByClause(obj.OrderBy, c.QuoteIdentifier)
	if err != nil {
		return "", nil, err
	}

	selectKeyword := "SELECT"
	if obj.RowLimit > 0 {
		selectKeyword = fmt.Sprintf("SELECT TOP %d", obj.RowLimit)
	}

	sqlText := query.JoinClauses(
		selectKeyword+" "+selectList,
		"FROM "+table,
		where,
		query.GroupByClause(obj, c.QuoteIdentifier),
		orderBy,
	)
	return sqlText, args, nil
}

// QueryString renders the statement this query object would execute, with
// bind values inlined for display.
func (c *MSSQLConnector) QueryString(_ context.Context, ds *model.Datasource, obj model.QueryObject) (string, error) {
	sqlText, args, err := c.buildAggregate(ds, obj)
	if err != nil {
		return "", err
	}
	return query.InlineSQL(sqlText, args, query.AtPPlaceholder), nil
}

// Query executes the query object and returns the tabular result. Backend
// errors surface in the result's error state.
func (c *MSSQLConnector) Query(ctx context.Context, ds *model.Datasource, obj model.QueryObject) (*model.QueryResult, error) {
	sqlText, args, err := c.buildAggregate(ds, obj)
	if err != nil {
		return nil, err
	}
	display := query.InlineSQL(sqlText, args, query.AtPPlaceholder)
	return connector.Run(ctx, c.db, sqlText, display, args), nil
}

// ValuesForColumn returns up to limit distinct values of a column.
func (c *MSSQLConnector) ValuesForColumn(ctx context.Context, ds *model.Datasource, column string, limit int) ([]interface{}, error) {
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

	sqlText := fmt.Sprintf("SELECT DISTINCT TOP %d %s FROM %s", limit, c.QuoteIdentifier(column), table)
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
