package oracle

import (
	"context"
	"fmt"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/query"
)

// columnRow holds the result of querying the Oracle data dictionary.
type columnRow struct {
	ColumnName string `db:"COLUMN_NAME"`
	DataType   string `db:"DATA_TYPE"`
	Position   int    `db:"COLUMN_ID"`
}

// FetchColumns introspects the live columns of a table, with capability
// flags inferred from the reported data types. With a configured schema it
// reads ALL_TAB_COLUMNS filtered by owner; otherwise USER_TAB_COLUMNS for
// the connected user's own tables.
func (c *OracleConnector) FetchColumns(ctx context.Context, tableName string) ([]model.Column, error) {
	if err := query.ValidateIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	var rows []columnRow
	var err error
	if c.schemaName != "" {
		const q = `SELECT COLUMN_NAME, DATA_TYPE, COLUMN_ID
			FROM ALL_TAB_COLUMNS
			WHERE OWNER = :1 AND TABLE_NAME = :2
			ORDER BY COLUMN_ID`
		err = c.db.SelectContext(ctx, &rows, q, c.schemaName, tableName)
	} else {
		const q = `SELECT COLUMN_NAME, DATA_TYPE, COLUMN_ID
			FROM USER_TAB_COLUMNS
			WHERE TABLE_NAME = :1
			ORDER BY COLUMN_ID`
		err = c.db.SelectContext(ctx, &rows, q, tableName)
	}
	if err != nil {
		return nil, fmt.Errorf("introspect columns for %q: %w", tableName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %q not found", tableName)
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
