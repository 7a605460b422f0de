package model

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func testDatasource() *Datasource {
	return &Datasource{
		ID:                  7,
		Type:                "postgres",
		Name:                "flights",
		FilterSelectEnabled: true,
		Columns: []Column{
			{Name: "origin", Type: "VARCHAR(64)", Groupby: true, Filterable: true},
			{Name: "delay", Type: "DOUBLE PRECISION", Sum: true, Avg: true},
			{Name: "carrier", Type: "VARCHAR(8)", Groupby: true, Filterable: true},
			{Name: "arrived_at", Type: "TIMESTAMP"},
		},
		Metrics: []Metric{
			{MetricName: "cnt", VerboseName: "Flight Count", MetricType: "count", Expression: "COUNT(*)", D3Format: ",d"},
			{MetricName: "avg_delay", MetricType: "avg", Expression: "AVG(delay)"},
			{MetricName: "sum_delay", VerboseName: "Total Delay", MetricType: "sum", Expression: "SUM(delay)", D3Format: ".2f"},
		},
	}
}

// ---------------------------------------------------------------------------
// Column classifier tests
// ---------------------------------------------------------------------------

func TestColumnClassifiers(t *testing.T) {
	tests := []struct {
		typ      string
		isNum    bool
		isTime   bool
		isString bool
	}{
		{"INT", true, false, false},
		{"BIGINT", true, false, false},
		{"MEDIUMINT", true, false, false}, // substring match, not exact
		{"bigint", true, false, false},    // case-insensitive
		{"DOUBLE PRECISION", true, false, false},
		{"FLOAT8", true, false, false},
		{"REAL", true, false, false},
		{"NUMERIC(10,2)", true, false, false},
		{"LONG", true, false, false},
		{"DATE", false, true, false},
		{"DATETIME", false, true, false},
		{"TIMESTAMP", false, true, false}, // contains TIME
		{"time without time zone", false, true, false},
		{"VARCHAR(255)", false, false, true},
		{"CHAR(1)", false, false, true},
		{"NVARCHAR(64)", false, false, true},
		{"STRING", false, false, true},
		{"CHAR_DATE", false, true, true}, // overlap is accepted, not a bug
		{"BLOB", false, false, false},
		{"", false, false, false},
	}

	for _, tt := range tests {
		c := Column{Name: "c", Type: tt.typ}
		if got := c.IsNum(); got != tt.isNum {
			t.Errorf("Column{Type: %q}.IsNum() = %v, want %v", tt.typ, got, tt.isNum)
		}
		if got := c.IsTime(); got != tt.isTime {
			t.Errorf("Column{Type: %q}.IsTime() = %v, want %v", tt.typ, got, tt.isTime)
		}
		if got := c.IsString(); got != tt.isString {
			t.Errorf("Column{Type: %q}.IsString() = %v, want %v", tt.typ, got, tt.isString)
		}
	}
}

// ---------------------------------------------------------------------------
// Datasource derived view tests
// ---------------------------------------------------------------------------

func TestUID(t *testing.T) {
	a := Datasource{ID: 3, Type: "postgres"}
	b := Datasource{ID: 3, Type: "mysql"}

	if a.UID() != "3__postgres" {
		t.Errorf("UID() = %q, want %q", a.UID(), "3__postgres")
	}
	if a.UID() == b.UID() {
		t.Errorf("same id with different types must produce distinct UIDs, both %q", a.UID())
	}
}

func TestColumnNamesSorted(t *testing.T) {
	ds := testDatasource()

	want := []string{"arrived_at", "carrier", "delay", "origin"}
	if got := ds.ColumnNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("ColumnNames() = %v, want %v", got, want)
	}

	want = []string{"carrier", "origin"}
	if got := ds.GroupbyColumnNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("GroupbyColumnNames() = %v, want %v", got, want)
	}
	if got := ds.FilterableColumnNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("FilterableColumnNames() = %v, want %v", got, want)
	}
}

func TestMetricsComboSortedByLabel(t *testing.T) {
	ds := testDatasource()

	// Labels: "Flight Count", "avg_delay" (no verbose name), "Total Delay".
	want := []Choice{
		{"cnt", "Flight Count"},
		{"sum_delay", "Total Delay"},
		{"avg_delay", "avg_delay"},
	}
	if got := ds.MetricsCombo(); !reflect.DeepEqual(got, want) {
		t.Errorf("MetricsCombo() = %v, want %v", got, want)
	}
}

func TestMetricsComboStableTies(t *testing.T) {
	ds := &Datasource{Metrics: []Metric{
		{MetricName: "b", VerboseName: "Same"},
		{MetricName: "a", VerboseName: "Same"},
	}}

	got := ds.MetricsCombo()
	if got[0][0] != "b" || got[1][0] != "a" {
		t.Errorf("ties must keep input order, got %v", got)
	}
}

func TestColumnFormats(t *testing.T) {
	ds := testDatasource()

	want := map[string]string{"cnt": ",d", "sum_delay": ".2f"}
	if got := ds.ColumnFormats(); !reflect.DeepEqual(got, want) {
		t.Errorf("ColumnFormats() = %v, want %v", got, want)
	}
}

func TestExploreURL(t *testing.T) {
	ds := testDatasource()
	if got := ds.ExploreURL(); got != "/prism/explore/postgres/7/" {
		t.Errorf("ExploreURL() = %q, want synthesized path", got)
	}

	ds.DefaultEndpoint = "/dashboards/42"
	if got := ds.ExploreURL(); got != "/dashboards/42" {
		t.Errorf("ExploreURL() = %q, want default endpoint verbatim", got)
	}
}

func TestMainDttmCol(t *testing.T) {
	ds := &Datasource{}
	if got := ds.MainDttmCol(); got != "timestamp" {
		t.Errorf("MainDttmCol() = %q, want fallback %q", got, "timestamp")
	}
	ds.MainDatetimeColumn = "arrived_at"
	if got := ds.MainDttmCol(); got != "arrived_at" {
		t.Errorf("MainDttmCol() = %q, want %q", got, "arrived_at")
	}
}

func TestOrderByChoices(t *testing.T) {
	ds := testDatasource()
	choices := ds.OrderByChoices()

	if len(choices) != 2*len(ds.Columns) {
		t.Fatalf("got %d order-by choices, want %d", len(choices), 2*len(ds.Columns))
	}

	// Entries alternate ascending/descending per column, columns sorted.
	if choices[0].Label() != "arrived_at [asc]" || choices[1].Label() != "arrived_at [desc]" {
		t.Errorf("first pair = %v, %v", choices[0], choices[1])
	}

	// Each value is a JSON-encoded [name, bool] pair.
	for i, ch := range choices {
		var pair []interface{}
		if err := json.Unmarshal([]byte(ch.Value()), &pair); err != nil {
			t.Fatalf("choice %d value %q is not valid JSON: %v", i, ch.Value(), err)
		}
		if len(pair) != 2 {
			t.Fatalf("choice %d value %q has %d elements, want 2", i, ch.Value(), len(pair))
		}
		if _, ok := pair[0].(string); !ok {
			t.Errorf("choice %d first element is not a string: %v", i, pair[0])
		}
		asc, ok := pair[1].(bool)
		if !ok {
			t.Errorf("choice %d second element is not a bool: %v", i, pair[1])
		}
		if asc != (i%2 == 0) {
			t.Errorf("choice %d ascending = %v, want alternation starting ascending", i, asc)
		}
	}
}

func TestDataSnapshotKeys(t *testing.T) {
	ds := testDatasource()

	b, err := json.Marshal(ds.Data())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	// The key set is a wire-format contract with the frontend.
	want := []string{
		"all_cols", "column_formats", "edit_url", "filter_select",
		"filterable_cols", "gb_cols", "id", "metrics_combo", "name",
		"order_by_choices", "type",
	}
	for _, k := range want {
		if _, ok := m[k]; !ok {
			t.Errorf("snapshot missing key %q", k)
		}
	}
	if len(m) != len(want) {
		t.Errorf("snapshot has %d keys, want %d", len(m), len(want))
	}
}

func TestDataSnapshotContent(t *testing.T) {
	ds := testDatasource()
	data := ds.Data()

	if data.ID != 7 || data.Type != "postgres" || data.Name != "flights" {
		t.Errorf("snapshot identity fields wrong: %+v", data)
	}
	if !data.FilterSelect {
		t.Error("filter_select should carry FilterSelectEnabled")
	}
	if data.EditURL != "/postgresdatasource/edit/7" {
		t.Errorf("edit_url = %q", data.EditURL)
	}
	if len(data.AllCols) != 4 {
		t.Errorf("all_cols has %d entries, want 4", len(data.AllCols))
	}
	for _, ch := range data.AllCols {
		if ch.Value() != ch.Label() {
			t.Errorf("choicified entry %v should have value == label", ch)
		}
	}
}

// ---------------------------------------------------------------------------
// Choice and query exchange types
// ---------------------------------------------------------------------------

func TestChoiceMarshalsAsPair(t *testing.T) {
	b, err := json.Marshal(Choice{"v", "label"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(b) != `["v","label"]` {
		t.Errorf("Choice marshals to %s, want two-element array", b)
	}
}

func TestOrderByRoundTrip(t *testing.T) {
	ob := OrderBy{Column: "delay", Ascending: false}
	b, err := json.Marshal(ob)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(b) != `["delay",false]` {
		t.Errorf("OrderBy marshals to %s", b)
	}

	var back OrderBy
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if back != ob {
		t.Errorf("round trip = %+v, want %+v", back, ob)
	}
}

func TestOrderByRejectsMalformed(t *testing.T) {
	for _, in := range []string{`["a"]`, `["a",1]`, `[1,true]`, `"a"`} {
		var ob OrderBy
		if err := json.Unmarshal([]byte(in), &ob); err == nil {
			t.Errorf("Unmarshal(%s) should fail", in)
		}
	}
}

// ---------------------------------------------------------------------------
// Audit stamping
// ---------------------------------------------------------------------------

func TestAuditStamping(t *testing.T) {
	var records = []Auditable{&Datasource{}, &Column{}, &Metric{}}

	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)

	for _, rec := range records {
		rec.StampCreated("alice@example.com", created)
		rec.StampUpdated("bob@example.com", updated)
	}

	ds := records[0].(*Datasource)
	if ds.CreatedAt != created || ds.CreatedBy != "alice@example.com" {
		t.Errorf("created stamp = %v %q", ds.CreatedAt, ds.CreatedBy)
	}
	if ds.UpdatedAt != updated || ds.UpdatedBy != "bob@example.com" {
		t.Errorf("updated stamp = %v %q", ds.UpdatedAt, ds.UpdatedBy)
	}
}

func TestExportFieldsDeclared(t *testing.T) {
	for _, rec := range []Exportable{&Datasource{}, &Column{}, &Metric{}} {
		if len(rec.ExportFields()) == 0 {
			t.Errorf("%T declares no export fields", rec)
		}
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	pc := DefaultPoolConfig()
	if pc.MaxOpenConns != 25 || pc.MaxIdleConns != 5 {
		t.Errorf("unexpected defaults: %+v", pc)
	}
}

func TestAPIKeyIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, false},
		{"future expiry", &future, false},
		{"past expiry", &past, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := APIKey{ExpiresAt: tt.expiresAt}
			if got := key.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired = %v, want %v", got, tt.want)
			}
		})
	}
}
