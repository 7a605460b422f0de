package postgres

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prismbi/prism/internal/model"
)

// newTestConnector creates a PostgresConnector with a known schema name and
// no database connection, suitable for testing query building methods.
func newTestConnector() *PostgresConnector {
	return &PostgresConnector{schemaName: "public"}
}

func testDatasource() *model.Datasource {
	return &model.Datasource{
		ID:        3,
		Type:      "postgres",
		Name:      "sales",
		TableName: "sales",
		Columns: []model.Column{
			{Name: "region", Type: "character varying", Groupby: true, Filterable: true},
			{Name: "amount", Type: "numeric", Sum: true, Avg: true},
			{Name: "sold_at", Type: "timestamp without time zone"},
		},
		Metrics: []model.Metric{
			{MetricName: "revenue", MetricType: "sum", Expression: "SUM(amount)"},
			{MetricName: "cnt", MetricType: "count", Expression: "COUNT(*)"},
		},
		MainDatetimeColumn: "sold_at",
	}
}

func TestBuildAggregate(t *testing.T) {
	c := newTestConnector()
	ds := testDatasource()

	tests := []struct {
		name     string
		obj      model.QueryObject
		wantSQL  string
		wantArgs []interface{}
		wantErr  bool
	}{
		{
			name:    "empty query object",
			obj:     model.QueryObject{},
			wantErr: true,
		},
		{
			name: "metrics only",
			obj:  model.QueryObject{Metrics: []string{"cnt"}},
			wantSQL: `SELECT COUNT(*) AS "cnt" FROM "public"."sales"`,
		},
		{
			name: "grouped with filter order and limit",
			obj: model.QueryObject{
				Groupby:  []string{"region"},
				Metrics:  []string{"revenue"},
				Filters:  []model.QueryFilter{{Column: "region", Operator: "=", Value: "EMEA"}},
				OrderBy:  []model.OrderBy{{Column: "revenue", Ascending: false}},
				RowLimit: 100,
			},
			wantSQL: `SELECT "region", SUM(amount) AS "revenue" FROM "public"."sales" ` +
				`WHERE "region" = $1 GROUP BY "region" ORDER BY "revenue" DESC LIMIT 100`,
			wantArgs: []interface{}{"EMEA"},
		},
		{
			name:    "unknown metric",
			obj:     model.QueryObject{Metrics: []string{"nope"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlText, args, err := c.buildAggregate(ds, tt.obj)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sqlText != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sqlText, tt.wantSQL)
			}
			if tt.wantArgs == nil {
				if len(args) != 0 {
					t.Errorf("args = %v, want none", args)
				}
			} else if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestBuildAggregateTimeRange(t *testing.T) {
	c := newTestConnector()
	ds := testDatasource()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	sqlText, args, err := c.buildAggregate(ds, model.QueryObject{
		Metrics: []string{"cnt"},
		From:    &from,
		To:      &to,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `SELECT COUNT(*) AS "cnt" FROM "public"."sales" WHERE "sold_at" >= $1 AND "sold_at" < $2`
	if sqlText != want {
		t.Errorf("sql = %q, want %q", sqlText, want)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestQueryString(t *testing.T) {
	c := newTestConnector()
	ds := testDatasource()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := c.QueryString(context.Background(), ds, model.QueryObject{
		Metrics: []string{"revenue"},
		Filters: []model.QueryFilter{{Column: "region", Operator: "in", Value: []interface{}{"EMEA", "APAC"}}},
		From:    &from,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "$") {
		t.Errorf("QueryString = %q, placeholders should be inlined", got)
	}
	for _, fragment := range []string{"'EMEA'", "'APAC'", "'2026-01-01 00:00:00'"} {
		if !strings.Contains(got, fragment) {
			t.Errorf("QueryString = %q, missing %q", got, fragment)
		}
	}
}

func TestQualifiedTableUsesSchema(t *testing.T) {
	c := &PostgresConnector{schemaName: "reporting"}
	ds := testDatasource()

	table, err := c.qualifiedTable(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table != `"reporting"."sales"` {
		t.Errorf("qualifiedTable = %q", table)
	}
}
