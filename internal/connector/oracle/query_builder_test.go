package oracle

import (
	"context"
	"strings"
	"testing"

	"github.com/prismbi/prism/internal/model"
)

func testDatasource() *model.Datasource {
	return &model.Datasource{
		ID:        13,
		Type:      "oracle",
		Name:      "invoices",
		TableName: "INVOICES",
		Columns: []model.Column{
			{Name: "STATUS", Type: "VARCHAR2", Groupby: true, Filterable: true},
			{Name: "AMOUNT", Type: "NUMBER", Sum: true},
		},
		Metrics: []model.Metric{
			{MetricName: "total", MetricType: "sum", Expression: "SUM(AMOUNT)"},
		},
	}
}

func TestBuildAggregateUsesFetchFirst(t *testing.T) {
	c := &OracleConnector{}
	ds := testDatasource()

	sqlText, args, err := c.buildAggregate(ds, model.QueryObject{
		Groupby:  []string{"STATUS"},
		Metrics:  []string{"total"},
		Filters:  []model.QueryFilter{{Column: "STATUS", Operator: "=", Value: "OPEN"}},
		OrderBy:  []model.OrderBy{{Column: "total", Ascending: false}},
		RowLimit: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `SELECT "STATUS", SUM(AMOUNT) AS "total" FROM "INVOICES" ` +
		`WHERE "STATUS" = :1 GROUP BY "STATUS" ORDER BY "total" DESC FETCH FIRST 10 ROWS ONLY`
	if sqlText != want {
		t.Errorf("sql = %q, want %q", sqlText, want)
	}
	if len(args) != 1 || args[0] != "OPEN" {
		t.Errorf("args = %v", args)
	}
}

func TestQualifiedTableWithSchema(t *testing.T) {
	c := &OracleConnector{schemaName: "SALES"}
	table, err := c.qualifiedTable(testDatasource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table != `"SALES"."INVOICES"` {
		t.Errorf("qualifiedTable = %q", table)
	}
}

func TestQualifiedTableWithoutSchema(t *testing.T) {
	c := &OracleConnector{}
	table, err := c.qualifiedTable(testDatasource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table != `"INVOICES"` {
		t.Errorf("qualifiedTable = %q", table)
	}
}

func TestQueryStringInlinesValues(t *testing.T) {
	c := &OracleConnector{}
	got, err := c.QueryString(context.Background(), testDatasource(), model.QueryObject{
		Metrics: []string{"total"},
		Filters: []model.QueryFilter{{Column: "STATUS", Operator: "=", Value: "PAID"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, ":1") {
		t.Errorf("QueryString = %q, placeholders should be inlined", got)
	}
	if !strings.Contains(got, "'PAID'") {
		t.Errorf("QueryString = %q, missing inlined literal", got)
	}
}
