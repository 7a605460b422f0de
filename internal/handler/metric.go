package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prismbi/prism/internal/model"
)

// Metric and column sub-resources. Columns are owned by introspection, so
// only their display metadata and capability flags are editable; metrics are
// fully managed here.

// AddMetric defines a new metric on a datasource.
// POST /api/v1/datasource/{uid}/metric
func (h *DatasourceHandler) AddMetric(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}

	var m model.Metric
	if err := readJSON(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if m.MetricName == "" {
		writeError(w, http.StatusBadRequest, "Metric name is required")
		return
	}
	if m.Expression == "" {
		writeError(w, http.StatusBadRequest, "Metric expression is required")
		return
	}
	if ds.MetricByName(m.MetricName) != nil {
		writeError(w, http.StatusConflict, "Metric already exists: "+m.MetricName)
		return
	}

	ds.Metrics = append(ds.Metrics, m)
	if err := h.store.UpdateDatasource(r.Context(), ds); err != nil {
		status, msg := classifyDBError(err, "Failed to add metric")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"datasource": ds.UID(),
		"metric":     ds.MetricByName(m.MetricName),
	})
}

// UpdateMetric modifies an existing metric in place. The metric name in the
// URL is authoritative; the payload cannot rename a metric to an existing one.
// PUT /api/v1/datasource/{uid}/metric/{metricName}
func (h *DatasourceHandler) UpdateMetric(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}

	name := chi.URLParam(r, "metricName")
	existing := ds.MetricByName(name)
	if existing == nil {
		writeError(w, http.StatusNotFound, "Metric not found: "+name)
		return
	}

	var updates struct {
		model.Metric
		IsRestricted *bool `json:"is_restricted"`
	}
	if err := readJSON(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if updates.MetricName != "" && updates.MetricName != name {
		if ds.MetricByName(updates.MetricName) != nil {
			writeError(w, http.StatusConflict, "Metric already exists: "+updates.MetricName)
			return
		}
		existing.MetricName = updates.MetricName
	}
	if updates.VerboseName != "" {
		existing.VerboseName = updates.VerboseName
	}
	if updates.MetricType != "" {
		existing.MetricType = updates.MetricType
	}
	if updates.Expression != "" {
		existing.Expression = updates.Expression
	}
	if updates.Description != "" {
		existing.Description = updates.Description
	}
	if updates.D3Format != "" {
		existing.D3Format = updates.D3Format
	}
	if updates.IsRestricted != nil {
		existing.IsRestricted = *updates.IsRestricted
	}

	if err := h.store.UpdateDatasource(r.Context(), ds); err != nil {
		status, msg := classifyDBError(err, "Failed to update metric")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasource": ds.UID(),
		"metric":     existing,
	})
}

// DeleteMetric removes a metric from a datasource.
// DELETE /api/v1/datasource/{uid}/metric/{metricName}
func (h *DatasourceHandler) DeleteMetric(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}

	name := chi.URLParam(r, "metricName")
	idx := -1
	for i := range ds.Metrics {
		if ds.Metrics[i].MetricName == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Metric not found: "+name)
		return
	}

	ds.Metrics = append(ds.Metrics[:idx], ds.Metrics[idx+1:]...)
	if err := h.store.UpdateDatasource(r.Context(), ds); err != nil {
		status, msg := classifyDBError(err, "Failed to delete metric")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Metric '" + name + "' deleted",
	})
}

// columnUpdate is the editable subset of a column. The physical name and
// type always come from introspection and cannot be changed here; pointer
// flags distinguish "absent" from "explicitly false".
type columnUpdate struct {
	VerboseName   *string `json:"verbose_name"`
	Description   *string `json:"description"`
	IsActive      *bool   `json:"is_active"`
	Groupby       *bool   `json:"groupby"`
	CountDistinct *bool   `json:"count_distinct"`
	Sum           *bool   `json:"sum"`
	Avg           *bool   `json:"avg"`
	Max           *bool   `json:"max"`
	Min           *bool   `json:"min"`
	Filterable    *bool   `json:"filterable"`
}

// UpdateColumn overrides display metadata and capability flags on one column.
// PUT /api/v1/datasource/{uid}/column/{columnName}
func (h *DatasourceHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}

	name := chi.URLParam(r, "columnName")
	col := ds.ColumnByName(name)
	if col == nil {
		writeError(w, http.StatusNotFound, "Column not found: "+name)
		return
	}

	var updates columnUpdate
	if err := readJSON(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if updates.VerboseName != nil {
		col.VerboseName = *updates.VerboseName
	}
	if updates.Description != nil {
		col.Description = *updates.Description
	}
	if updates.IsActive != nil {
		col.IsActive = *updates.IsActive
	}
	if updates.Groupby != nil {
		col.Groupby = *updates.Groupby
	}
	if updates.CountDistinct != nil {
		col.CountDistinct = *updates.CountDistinct
	}
	if updates.Sum != nil {
		col.Sum = *updates.Sum
	}
	if updates.Avg != nil {
		col.Avg = *updates.Avg
	}
	if updates.Max != nil {
		col.Max = *updates.Max
	}
	if updates.Min != nil {
		col.Min = *updates.Min
	}
	if updates.Filterable != nil {
		col.Filterable = *updates.Filterable
	}

	if err := h.store.UpdateDatasource(r.Context(), ds); err != nil {
		status, msg := classifyDBError(err, "Failed to update column")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasource": ds.UID(),
		"column":     col,
	})
}
