package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueryObject is the uniform query interface passed to connectors. It is
// backend-agnostic; each connector renders it into its own dialect.
type QueryObject struct {
	Groupby  []string      `json:"groupby"`
	Metrics  []string      `json:"metrics"`
	Filters  []QueryFilter `json:"filters"`
	From     *time.Time    `json:"from_dttm,omitempty"`
	To       *time.Time    `json:"to_dttm,omitempty"`
	RowLimit int           `json:"row_limit"`
	OrderBy  []OrderBy     `json:"order_by"`
	Extras   map[string]interface{} `json:"extras,omitempty"`
}

// QueryFilter is a single filter predicate on a filterable column.
type QueryFilter struct {
	Column   string      `json:"col"`
	Operator string      `json:"op"` // =, !=, >, >=, <, <=, in, not in, like
	Value    interface{} `json:"val"`
}

// OrderBy is one ordering directive. On the wire it is the two-element
// [column, ascending] pair the order_by_choices values encode.
type OrderBy struct {
	Column    string
	Ascending bool
}

// MarshalJSON encodes the directive as a [column, ascending] pair.
func (o OrderBy) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{o.Column, o.Ascending})
}

// UnmarshalJSON decodes a [column, ascending] pair.
func (o *OrderBy) UnmarshalJSON(data []byte) error {
	var pair []interface{}
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("order_by entry must be a [column, ascending] pair, got %d elements", len(pair))
	}
	col, ok := pair[0].(string)
	if !ok {
		return fmt.Errorf("order_by column must be a string")
	}
	asc, ok := pair[1].(bool)
	if !ok {
		return fmt.Errorf("order_by direction must be a boolean")
	}
	o.Column = col
	o.Ascending = asc
	return nil
}

// QueryStatus indicates the outcome of a connector query.
type QueryStatus string

const (
	QueryStatusSuccess QueryStatus = "success"
	QueryStatusFailed  QueryStatus = "failed"
)

// QueryResult is the tabular result of executing a query object, plus any
// error state from the backend.
type QueryResult struct {
	Status     QueryStatus              `json:"status"`
	Columns    []string                 `json:"columns"`
	Rows       []map[string]interface{} `json:"rows"`
	Query      string                   `json:"query"` // rendered statement, for display
	Error      string                   `json:"error,omitempty"`
	DurationMs float64                  `json:"duration_ms"`
}
