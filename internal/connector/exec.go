package connector

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prismbi/prism/internal/model"
)

// FetchRows executes a statement and scans every row into a column-keyed
// map. []byte cell values are normalized to strings: several drivers return
// text columns as byte slices, which would JSON-encode as base64 and confuse
// the frontend.
func FetchRows(ctx context.Context, db *sqlx.DB, sqlText string, args []interface{}) ([]string, []map[string]interface{}, error) {
	rows, err := db.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, nil, err
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

// Run executes a rendered statement and assembles the query result,
// folding backend errors into the result's error state rather than
// returning them: a failed query is still an answer the explore UI can
// show. The rendered display form of the statement is recorded on the
// result either way.
func Run(ctx context.Context, db *sqlx.DB, sqlText, display string, args []interface{}) *model.QueryResult {
	start := time.Now()
	cols, rows, err := FetchRows(ctx, db, sqlText, args)
	res := &model.QueryResult{
		Status:     model.QueryStatusSuccess,
		Columns:    cols,
		Rows:       rows,
		Query:      display,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if err != nil {
		res.Status = model.QueryStatusFailed
		res.Error = err.Error()
		res.Columns = nil
		res.Rows = nil
	}
	return res
}
