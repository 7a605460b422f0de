package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/prismbi/prism/internal/model"
)

// filterOps whitelists the comparison operators a query filter may use.
// Operators outside this set are rejected before any SQL is assembled.
var filterOps = map[string]string{
	"=": "=", "==": "=", "eq": "=",
	"!=": "<>", "<>": "<>", "ne": "<>",
	">": ">", "gt": ">",
	">=": ">=", "ge": ">=",
	"<": "<", "lt": "<",
	"<=": "<=", "le": "<=",
	"like": "LIKE",
	"in": "IN", "not in": "NOT IN",
	"is null": "IS NULL", "is not null": "IS NOT NULL",
}

// WhereClause renders the query object's filters and time range into a
// parameterized WHERE fragment. Every value travels as a bind parameter;
// only validated identifiers and whitelisted operators reach the SQL text.
// The time range applies to the datasource's main datetime column.
// Returns an empty fragment and no args when nothing filters the query.
func WhereClause(ds *model.Datasource, obj model.QueryObject, quote QuoteFunc, ph PlaceholderFunc) (string, []interface{}, error) {
	var (
		conds []string
		args  []interface{}
	)
	idx := 1

	next := func(val interface{}) string {
		p := ph(idx)
		args = append(args, val)
		idx++
		return p
	}

	for _, f := range obj.Filters {
		if err := ValidateIdentifier(f.Column); err != nil {
			return "", nil, fmt.Errorf("invalid filter column: %w", err)
		}
		col := ds.ColumnByName(f.Column)
		if col == nil {
			return "", nil, fmt.Errorf("unknown filter column %q", f.Column)
		}
		if !col.Filterable {
			return "", nil, fmt.Errorf("column %q is not filterable", f.Column)
		}

		op, ok := filterOps[strings.ToLower(strings.TrimSpace(f.Operator))]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
		}

		quoted := quote(f.Column)
		switch op {
		case "IS NULL", "IS NOT NULL":
			conds = append(conds, quoted+" "+op)

		case "IN", "NOT IN":
			vals, ok := f.Value.([]interface{})
			if !ok || len(vals) == 0 {
				return "", nil, fmt.Errorf("filter %q %s requires a non-empty list value", f.Column, op)
			}
			phs := make([]string, len(vals))
			for i, v := range vals {
				phs[i] = next(v)
			}
			conds = append(conds, quoted+" "+op+" ("+strings.Join(phs, ", ")+")")

		case "LIKE":
			s, ok := f.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("filter %q like requires a string value", f.Column)
			}
			s, err := SanitizeStringValue(s, 0)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, quoted+" LIKE "+next(s))

		default:
			conds = append(conds, quoted+" "+op+" "+next(f.Value))
		}
	}

	if rangeCond, rangeArgs := timeRange(ds, obj, quote, ph, &idx); rangeCond != "" {
		conds = append(conds, rangeCond)
		args = append(args, rangeArgs...)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// timeRange renders the from/to bounds against the main datetime column.
// Bounds are half-open: from is inclusive, to is exclusive, so adjacent
// windows never double-count a row.
func timeRange(ds *model.Datasource, obj model.QueryObject, quote QuoteFunc, ph PlaceholderFunc, idx *int) (string, []interface{}) {
	if obj.From == nil && obj.To == nil {
		return "", nil
	}

	col := quote(ds.MainDttmCol())
	var (
		conds []string
		args  []interface{}
	)

	add := func(cond string, val time.Time) {
		conds = append(conds, cond+ph(*idx))
		args = append(args, val)
		*idx++
	}

	if obj.From != nil {
		add(col+" >= ", *obj.From)
	}
	if obj.To != nil {
		add(col+" < ", *obj.To)
	}
	return strings.Join(conds, " AND "), args
}
