package openapi

import (
	"testing"

	"github.com/prismbi/prism/internal/model"
)

// ─── MapDBType Tests ────────────────────────────────────────────────────────

func TestMapDBType_KnownTypes(t *testing.T) {
	tests := []struct {
		dbType     string
		wantType   string
		wantFormat string
	}{
		{"int", "integer", "int32"},
		{"bigint", "integer", "int64"},
		{"serial", "integer", "int32"},
		{"float", "number", "float"},
		{"double precision", "number", "double"},
		{"numeric", "number", "double"},
		{"varchar", "string", ""},
		{"text", "string", ""},
		{"character varying", "string", ""},
		{"date", "string", "date"},
		{"timestamp with time zone", "string", "date-time"},
		{"time", "string", "time"},
		{"boolean", "boolean", ""},
		{"bit", "boolean", ""},
		{"bytea", "string", "byte"},
		{"uuid", "string", "uuid"},
		{"uniqueidentifier", "string", "uuid"},
		{"json", "object", ""},
		{"jsonb", "object", ""},
		{"variant", "object", ""},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			m := MapDBType(tt.dbType)
			if m.Type != tt.wantType {
				t.Errorf("MapDBType(%q).Type = %q, want %q", tt.dbType, m.Type, tt.wantType)
			}
			if m.Format != tt.wantFormat {
				t.Errorf("MapDBType(%q).Format = %q, want %q", tt.dbType, m.Format, tt.wantFormat)
			}
		})
	}
}

func TestMapDBType_DialectVariants(t *testing.T) {
	tests := []struct {
		dbType     string
		wantType   string
		wantFormat string
	}{
		{"timestamp_ntz", "string", "date-time"}, // Snowflake
		{"timestamp_ltz", "string", "date-time"},
		{"datetime2", "string", "date-time"}, // SQL Server
		{"smalldatetime", "string", "date-time"},
		{"bigserial", "integer", "int64"},
		{"varbinary", "string", "byte"},
		{"mediumblob", "string", "byte"}, // MySQL
		{"citext", "string", ""},
		{"interval", "string", ""}, // not an integer despite the substring
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			m := MapDBType(tt.dbType)
			if m.Type != tt.wantType {
				t.Errorf("MapDBType(%q).Type = %q, want %q", tt.dbType, m.Type, tt.wantType)
			}
			if m.Format != tt.wantFormat {
				t.Errorf("MapDBType(%q).Format = %q, want %q", tt.dbType, m.Format, tt.wantFormat)
			}
		})
	}
}

func TestMapDBType_UnknownFallsBackToString(t *testing.T) {
	for _, dbType := range []string{"geometry", "hstore", "custom_enum_type", ""} {
		m := MapDBType(dbType)
		if m.Type != "string" {
			t.Errorf("MapDBType(%q).Type = %q, want string fallback", dbType, m.Type)
		}
	}
}

func TestMapDBType_Normalization(t *testing.T) {
	tests := []struct {
		dbType   string
		wantType string
	}{
		{"VARCHAR", "string"},          // case insensitive
		{"varchar(255)", "string"},     // strip parens
		{"NUMERIC(10,2)", "number"},    // strip parens with args
		{"int unsigned", "integer"},    // strip unsigned
		{"bigint unsigned", "integer"}, // strip unsigned
		{"text[]", "string"},           // strip array brackets
		{"  timestamp  ", "string"},    // trim whitespace
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			if m := MapDBType(tt.dbType); m.Type != tt.wantType {
				t.Errorf("MapDBType(%q).Type = %q, want %q", tt.dbType, m.Type, tt.wantType)
			}
		})
	}
}

// ─── GenerateSpec Tests ─────────────────────────────────────────────────────

func specDatasource() model.Datasource {
	return model.Datasource{
		ID:        7,
		Type:      "postgres",
		Name:      "sales",
		TableName: "orders",
		Columns: []model.Column{
			{Name: "region", Type: "VARCHAR(64)", Groupby: true, Filterable: true},
			{Name: "amount", Type: "NUMERIC(10,2)", Sum: true, Avg: true},
			{Name: "sold_at", Type: "TIMESTAMP"},
		},
		Metrics: []model.Metric{
			{MetricName: "revenue", Expression: "SUM(amount)"},
		},
	}
}

func TestGenerateSpec_ValidDocument(t *testing.T) {
	doc := GenerateSpec([]model.Datasource{specDatasource()}, "http://localhost:8080")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want 3.1.0", doc.OpenAPI)
	}
	if doc.Info == nil || doc.Info.Title != "Prism API" {
		t.Error("expected Prism API title")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Error("expected single server with base URL")
	}
}

func TestGenerateSpec_SecuritySchemes(t *testing.T) {
	doc := GenerateSpec(nil, "http://localhost:8080")

	apiKey, ok := doc.Components.SecuritySchemes["apiKey"]
	if !ok {
		t.Fatal("missing apiKey security scheme")
	}
	if apiKey.Value.Name != "X-API-Key" {
		t.Errorf("apiKey header = %q, want X-API-Key", apiKey.Value.Name)
	}

	bearer, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok {
		t.Fatal("missing bearerAuth security scheme")
	}
	if bearer.Value.Scheme != "bearer" || bearer.Value.BearerFormat != "JWT" {
		t.Error("bearerAuth should be a JWT bearer scheme")
	}
}

func TestGenerateSpec_DatasourcePaths(t *testing.T) {
	doc := GenerateSpec([]model.Datasource{specDatasource()}, "http://localhost:8080")

	base := "/api/v1/datasource/7__postgres"
	wantPaths := []string{
		base + "/data",
		base + "/query",
		base + "/query_str",
		base + "/values/region",
	}
	for _, p := range wantPaths {
		if doc.Paths.Find(p) == nil {
			t.Errorf("missing path %s", p)
		}
	}

	// Only filterable columns get a values path.
	if doc.Paths.Find(base+"/values/amount") != nil {
		t.Error("non-filterable column should not have a values path")
	}
}

func TestGenerateSpec_QueryOperation(t *testing.T) {
	doc := GenerateSpec([]model.Datasource{specDatasource()}, "http://localhost:8080")

	item := doc.Paths.Find("/api/v1/datasource/7__postgres/query")
	if item == nil || item.Post == nil {
		t.Fatal("expected POST query operation")
	}
	if item.Post.OperationID != "query_7__postgres" {
		t.Errorf("operationId = %q", item.Post.OperationID)
	}
	if item.Post.RequestBody == nil || !item.Post.RequestBody.Value.Required {
		t.Error("query operation should require a request body")
	}
	if got := item.Post.Tags; len(got) != 1 || got[0] != "sales" {
		t.Errorf("tags = %v, want [sales]", got)
	}
}

func TestGenerateSpec_SharedSchemas(t *testing.T) {
	doc := GenerateSpec([]model.Datasource{specDatasource()}, "http://localhost:8080")

	for _, name := range []string{"ErrorResponse", "QueryObject", "QueryResult", "DatasourceData"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("missing shared schema %s", name)
		}
	}
}

func TestGenerateSpec_RowSchemaFromColumns(t *testing.T) {
	doc := GenerateSpec([]model.Datasource{specDatasource()}, "http://localhost:8080")

	row, ok := doc.Components.Schemas["PostgresSalesRow"]
	if !ok {
		t.Fatal("missing row schema PostgresSalesRow")
	}
	props := row.Value.Properties
	if props["region"] == nil || !props["region"].Value.Type.Is("string") {
		t.Error("region should map to string")
	}
	if props["amount"] == nil || !props["amount"].Value.Type.Is("number") {
		t.Error("amount should map to number")
	}
	if props["sold_at"] == nil || props["sold_at"].Value.Format != "date-time" {
		t.Error("sold_at should map to date-time")
	}
}

func TestGenerateSpec_EmptyCatalog(t *testing.T) {
	doc := GenerateSpec(nil, "http://localhost:8080")
	if doc.Paths == nil {
		t.Fatal("Paths should be initialized")
	}
	if n := doc.Paths.Len(); n != 0 {
		t.Errorf("expected no paths, got %d", n)
	}
}

// ─── Name Helpers ───────────────────────────────────────────────────────────

func TestSanitizeSchemaName(t *testing.T) {
	tests := []struct {
		dsType, name, want string
	}{
		{"postgres", "sales", "PostgresSales"},
		{"mysql", "web-traffic", "MysqlWeb_traffic"},
		{"mssql", "orders.2024", "MssqlOrders_2024"},
	}
	for _, tt := range tests {
		if got := sanitizeSchemaName(tt.dsType, tt.name); got != tt.want {
			t.Errorf("sanitizeSchemaName(%q, %q) = %q, want %q", tt.dsType, tt.name, got, tt.want)
		}
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"":       "",
		"a":      "A",
		"sales":  "Sales",
		"Sales":  "Sales",
		"7sales": "7sales",
	}
	for in, want := range tests {
		if got := capitalize(in); got != want {
			t.Errorf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}
