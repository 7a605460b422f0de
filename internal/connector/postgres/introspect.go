package postgres

import (
	"context"
	"fmt"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/query"
)

// columnRow holds the result of querying information_schema.columns.
type columnRow struct {
	ColumnName string `db:"column_name"`
	DataType   string `db:"data_type"`
	Position   int    `db:"ordinal_position"`
}

// FetchColumns introspects the live columns of a table in the configured
// schema, with capability flags inferred from the reported data types.
func (c *PostgresConnector) FetchColumns(ctx context.Context, tableName string) ([]model.Column, error) {
	if err := query.ValidateIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	const q = `SELECT column_name, data_type, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	var rows []columnRow
	if err := c.db.SelectContext(ctx, &rows, q, c.schemaName, tableName); err != nil {
		return nil, fmt.Errorf("introspect columns for %q: %w", tableName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %q not found in schema %q", tableName, c.schemaName)
	}

	columns := make([]model.Column, 0, len(rows))
	for _, row := range rows {
		col := model.Column{
			Name:     row.ColumnName,
			Type:     row.DataType,
			IsActive: true,
		}
		connector.InferCapabilities(&col)
		columns = append(columns, col)
	}
	return columns, nil
}
