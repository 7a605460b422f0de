package snowflake

import (
	"context"
	"fmt"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/query"
)

// columnRow holds the result of querying INFORMATION_SCHEMA.COLUMNS.
// Snowflake stores unquoted identifiers in uppercase.
type columnRow struct {
	ColumnName string `db:"COLUMN_NAME"`
	DataType   string `db:"DATA_TYPE"`
	Position   int    `db:"ORDINAL_POSITION"`
}

// FetchColumns introspects the live columns of a table in the configured
// schema, with capability flags inferred from the reported data types.
func (c *SnowflakeConnector) FetchColumns(ctx context.Context, tableName string) ([]model.Column, error) {
	if err := query.ValidateIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	const q = `SELECT COLUMN_NAME, DATA_TYPE, ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

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
