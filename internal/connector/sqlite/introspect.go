package sqlite

import (
	"context"
	"fmt"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/query"
)

// tableInfoRow holds a row from PRAGMA table_info().
type tableInfoRow struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// FetchColumns introspects the live columns of a table via PRAGMA
// table_info, with capability flags inferred from the declared types.
// SQLite uses type affinity, so the declared type string is kept verbatim
// for the substring classifiers to chew on.
func (c *SQLiteConnector) FetchColumns(ctx context.Context, tableName string) ([]model.Column, error) {
	if err := query.ValidateIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	pragma := fmt.Sprintf("PRAGMA table_info(%s)", c.QuoteIdentifier(tableName))
	var rows []tableInfoRow
	if err := c.db.SelectContext(ctx, &rows, pragma); err != nil {
		return nil, fmt.Errorf("table_info for %q: %w", tableName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %q not found", tableName)
	}

	columns := make([]model.Column, 0, len(rows))
	for _, row := range rows {
		col := model.Column{
			Name:     row.Name,
			Type:     row.Type,
			IsActive: true,
		}
		connector.InferCapabilities(&col)
		columns = append(columns, col)
	}
	return columns, nil
}
