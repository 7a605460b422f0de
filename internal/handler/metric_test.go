package handler

import (
	"context"
	"net/http"
	"testing"
)

// ---------------------------------------------------------------------------
// Metric sub-resource
// ---------------------------------------------------------------------------

func TestMetricAdd(t *testing.T) {
	env := newTestEnv(t)
	ds := env.seedSQLiteDatasource(t)

	body := map[string]interface{}{
		"metric_name":  "max_duration",
		"verbose_name": "Max Duration",
		"metric_type":  "max",
		"expression":   "MAX(duration)",
	}
	rr := env.do(t, "POST", "/api/v1/datasource/"+ds.UID()+"/metric", toJSON(t, body))
	assertStatus(t, rr, http.StatusCreated)

	stored, err := env.store.GetDatasourceByUID(context.Background(), ds.UID())
	if err != nil {
		t.Fatalf("reload datasource: %v", err)
	}
	m := stored.MetricByName("max_duration")
	if m == nil {
		t.Fatal("metric not persisted")
	}
	if m.Expression != "MAX(duration)" || m.Label() != "Max Duration" {
		t.Errorf("stored metric = %+v", m)
	}
	if len(stored.Metrics) != 4 {
		t.Errorf("got %d metrics, want 4", len(stored.Metrics))
	}
}

func TestMetricAdd_Validation(t *testing.T) {
	env := newTestEnv(t)
	ds := env.seedSQLiteDatasource(t)

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing name", map[string]interface{}{"expression": "COUNT(*)"}, http.StatusBadRequest},
		{"missing expression", map[string]interface{}{"metric_name": "x"}, http.StatusBadRequest},
		{"duplicate name", map[string]interface{}{"metric_name": "cnt", "expression": "COUNT(*)"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/v1/datasource/"+ds.UID()+"/metric", toJSON(t, tt.body))
			assertStatus(t, rr, tt.want)
		})
	}
}

func TestMetricUpdate(t *testing.T) {
	env := newTestEnv(t)
	ds := env.seedSQLiteDatasource(t)

	body := map[string]interface{}{
		"verbose_name":  "Event Count",
		"is_restricted": true,
	}
	rr := env.do(t, "PUT", "/api/v1/datasource/"+ds.UID()+"/metric/cnt", toJSON(t, body))
	assertStatus(t, rr, http.StatusOK)

	stored, err := env.store.GetDatasourceByUID(context.Background(), ds.UID())
	if err != nil {
		t.Fatalf("reload datasource: %v", err)
	}
	m := stored.MetricByName("cnt")
	if m == nil {
		t.Fatal("metric disappeared")
	}
	if m.Label() != "Event Count" || !m.IsRestricted {
		t.Errorf("updated metric = %+v", m)
	}
	// Untouched fields survive.
	if m.Expression != "COUNT(*)" {
		t.Errorf("expression changed to %q", m.Expression)
	}
}

func TestMetricUpdate_RenameConflict(t *testing.T) {
	env := newTestEnv(t)
	ds := env.seedSQLiteDatasource(t)

	body := map[string]interface{}{"metric_name": "total_duration"}
	rr := env.do(t, "PUT", "/api/v1/datasource/"+ds.UID()+"/metric/cnt", toJSON(t, body))
	assertStatus(t, rr, http.StatusConflict)

	rr = env.do(t, "PUT", "/api/v1/datasource/"+ds.UID()+"/metric/nope", toJSON(t, body))
	assertStatus(t, rr, http.StatusNotFound)
}

func TestMetricDelete(t *testing.T) {
	env := newTestEnv(t)
	ds := env.seedSQLiteDatasource(t)

	rr := env.do(t, "DELETE", "/api/v1/datasource/"+ds.UID()+"/metric/secret_avg", nil)
	assertStatus(t, rr, http.StatusOK)

	stored, err := env.store.GetDatasourceByUID(context.Background(), ds.UID())
	if err != nil {
		t.Fatalf("reload datasource: %v", err)
	}
	if stored.MetricByName("secret_avg") != nil {
		t.Error("metric still present after delete")
	}
	if len(stored.Metrics) != 2 {
		t.Errorf("got %d metrics, want 2", len(stored.Metrics))
	}

	rr = env.do(t, "DELETE", "/api/v1/datasource/"+ds.UID()+"/metric/secret_avg", nil)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Column sub-resource
// ---------------------------------------------------------------------------

func TestColumnUpdate(t *testing.T) {
	env := newTestEnv(t)
	ds := env.seedSQLiteDatasource(t)

	body := map[string]interface{}{
		"verbose_name": "Channel",
		"groupby":      false,
	}
	rr := env.do(t, "PUT", "/api/v1/datasource/"+ds.UID()+"/column/channel", toJSON(t, body))
	assertStatus(t, rr, http.StatusOK)

	stored, err := env.store.GetDatasourceByUID(context.Background(), ds.UID())
	if err != nil {
		t.Fatalf("reload datasource: %v", err)
	}
	col := stored.ColumnByName("channel")
	if col == nil {
		t.Fatal("column disappeared")
	}
	if col.VerboseName != "Channel" {
		t.Errorf("verbose_name = %q", col.VerboseName)
	}
	if col.Groupby {
		t.Error("explicit groupby=false not applied")
	}
	// Flags absent from the payload keep their stored value.
	if !col.Filterable {
		t.Error("filterable reset by partial column update")
	}
	// Physical identity is not editable through this endpoint.
	if col.Name != "channel" || col.Type != "VARCHAR(32)" {
		t.Errorf("column identity changed: %+v", col)
	}
}

func TestColumnUpdate_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ds := env.seedSQLiteDatasource(t)

	rr := env.do(t, "PUT", "/api/v1/datasource/"+ds.UID()+"/column/nope",
		toJSON(t, map[string]interface{}{"groupby": true}))
	assertStatus(t, rr, http.StatusNotFound)
}
