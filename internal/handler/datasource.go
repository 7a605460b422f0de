package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/contract"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/server/middleware"
	"github.com/prismbi/prism/internal/service"
)

// DatasourceHandler serves the datasource catalog and the query surface:
// CRUD over datasource records, the frontend metadata snapshot, query
// execution and rendering, filter value enumeration, and column refresh.
type DatasourceHandler struct {
	store    *config.Store
	registry *connector.Registry
}

// NewDatasourceHandler creates a new DatasourceHandler.
func NewDatasourceHandler(store *config.Store, registry *connector.Registry) *DatasourceHandler {
	return &DatasourceHandler{
		store:    store,
		registry: registry,
	}
}

// ---------------------------------------------------------------------------
// Access control
// ---------------------------------------------------------------------------

// authorize checks whether the request's principal may perform verb on the
// given datasource component. Admin principals pass unconditionally; API key
// principals are evaluated against their role's access rules. The resolved
// role is returned so callers can apply restricted-metric checks.
func (h *DatasourceHandler) authorize(r *http.Request, datasourceUID, component string, verb int) (*model.Role, bool) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		return nil, false
	}
	if principal.IsAdmin {
		return nil, true
	}

	role, err := h.store.GetRole(r.Context(), principal.RoleID)
	if err != nil {
		return nil, false
	}
	return role, service.Allowed(role, datasourceUID, component, verb)
}

// canSeeRestricted reports whether the principal may reference restricted
// metrics on the datasource. Admins always can; API keys need an access rule
// with allow_restricted on a matching datasource.
func canSeeRestricted(principal *middleware.Principal, role *model.Role, datasourceUID string) bool {
	if principal != nil && principal.IsAdmin {
		return true
	}
	return service.AllowsRestricted(role, datasourceUID)
}

// checkRestrictedMetrics returns the first restricted metric in the query
// the principal may not use, or "" if the query is clean.
func checkRestrictedMetrics(ds *model.Datasource, obj model.QueryObject, allowed bool) string {
	if allowed {
		return ""
	}
	for _, name := range obj.Metrics {
		if m := ds.MetricByName(name); m != nil && m.IsRestricted {
			return name
		}
	}
	return ""
}

// loadDatasource resolves the {uid} URL parameter to a stored datasource.
// Writes the error response itself and returns nil when resolution fails.
func (h *DatasourceHandler) loadDatasource(w http.ResponseWriter, r *http.Request) *model.Datasource {
	uid := chi.URLParam(r, "uid")
	ds, err := h.store.GetDatasourceByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Datasource not found: "+uid)
			return nil
		}
		writeError(w, http.StatusBadRequest, "Invalid datasource uid: "+err.Error())
		return nil
	}
	return ds
}

// connection returns the live connector for the datasource, reconnecting from
// stored config when the registry has no entry (e.g. after a restart).
func (h *DatasourceHandler) connection(w http.ResponseWriter, r *http.Request, ds *model.Datasource) connector.Connector {
	conn, err := h.registry.Get(ds.UID())
	if err == nil {
		return conn
	}
	if err := h.registry.Connect(ds); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Datasource connection failed: "+err.Error())
		return nil
	}
	conn, _ = h.registry.Get(ds.UID())
	return conn
}

// ---------------------------------------------------------------------------
// Catalog CRUD
// ---------------------------------------------------------------------------

// List returns all registered datasources without their column and metric
// detail. GET /api/v1/datasource
func (h *DatasourceHandler) List(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	datasources, err := h.store.ListDatasources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list datasources: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(datasources))
	for i := range datasources {
		resources = append(resources, datasourceToMap(&datasources[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count:  len(resources),
			TookMs: float64(time.Since(start).Microseconds()) / 1000.0,
		},
	})
}

// Create registers a new datasource, connects it, and introspects its
// columns when none were supplied. POST /api/v1/datasource
func (h *DatasourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var ds model.Datasource
	if err := readJSON(r, &ds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if ds.Name == "" {
		writeError(w, http.StatusBadRequest, "Datasource name is required")
		return
	}
	if ds.Type == "" {
		writeError(w, http.StatusBadRequest, "Datasource type is required")
		return
	}
	if ds.DSN == "" {
		writeError(w, http.StatusBadRequest, "DSN is required")
		return
	}
	if ds.TableName == "" {
		writeError(w, http.StatusBadRequest, "Table name is required")
		return
	}

	if existing, err := h.store.GetDatasourceByName(r.Context(), ds.Type, ds.Name); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "Datasource already exists: "+ds.Name)
		return
	}

	ds.DSN = connector.SanitizeDSN(ds.Type, ds.DSN)

	if err := h.store.CreateDatasource(r.Context(), &ds); err != nil {
		status, msg := classifyDBError(err, "Failed to create datasource")
		writeError(w, status, msg)
		return
	}

	// Permission strings embed the assigned ID, so they can only be
	// finalized after the insert.
	ds.Perm = connector.DatasourcePermission(&ds)
	if err := h.store.UpdateDatasource(r.Context(), &ds); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store permission: "+err.Error())
		return
	}

	if err := h.registry.Connect(&ds); err != nil {
		// Record is persisted but the backing store is unreachable. Report
		// it without failing the create so the DSN can be fixed later.
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"datasource":         datasourceToMap(&ds),
			"connection_warning": "Datasource saved but connection failed: " + err.Error(),
		})
		return
	}

	if len(ds.Columns) == 0 {
		if err := h.introspectColumns(r, &ds); err != nil {
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"datasource":            datasourceToMap(&ds),
				"introspection_warning": "Datasource saved but column introspection failed: " + err.Error(),
			})
			return
		}
	} else {
		// Columns were supplied explicitly; snapshot them as the baseline
		// for drift detection.
		_, _ = h.store.SaveSnapshot(r.Context(), ds.UID(), ds.Columns)
	}

	writeJSON(w, http.StatusCreated, datasourceDetail(&ds))
}

// introspectColumns fetches live columns for the datasource's table, stores
// them, and records the drift baseline snapshot.
func (h *DatasourceHandler) introspectColumns(r *http.Request, ds *model.Datasource) error {
	conn, err := h.registry.Get(ds.UID())
	if err != nil {
		return err
	}
	cols, err := conn.FetchColumns(r.Context(), ds.TableName)
	if err != nil {
		return err
	}
	if err := h.store.ReplaceColumns(r.Context(), ds, cols); err != nil {
		return err
	}
	_, err = h.store.SaveSnapshot(r.Context(), ds.UID(), cols)
	return err
}

// Get returns a single datasource with full column and metric detail.
// GET /api/v1/datasource/{uid}
func (h *DatasourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	writeJSON(w, http.StatusOK, datasourceDetail(ds))
}

// datasourceUpdate is the PUT payload. Flag and offset fields are pointers
// so an absent field is distinguishable from an explicit false/zero; the
// shallower fields shadow the embedded ones during decoding.
type datasourceUpdate struct {
	model.Datasource
	IsFeatured          *bool `json:"is_featured"`
	FilterSelectEnabled *bool `json:"filter_select_enabled"`
	Offset              *int  `json:"offset"`
}

// Update modifies an existing datasource. Fields absent from the payload are
// left untouched; columns and metrics are replaced wholesale when present.
// PUT /api/v1/datasource/{uid}
func (h *DatasourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.loadDatasource(w, r)
	if existing == nil {
		return
	}

	var updates datasourceUpdate
	if err := readJSON(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if updates.Name != "" {
		existing.Name = updates.Name
	}
	if updates.Description != "" {
		existing.Description = updates.Description
	}
	if updates.DefaultEndpoint != "" {
		existing.DefaultEndpoint = updates.DefaultEndpoint
	}
	if updates.DSN != "" {
		existing.DSN = connector.SanitizeDSN(existing.Type, updates.DSN)
	}
	if updates.PrivateKeyPath != "" {
		existing.PrivateKeyPath = updates.PrivateKeyPath
	}
	if updates.Schema != "" {
		existing.Schema = updates.Schema
	}
	if updates.TableName != "" {
		existing.TableName = updates.TableName
	}
	if updates.MainDatetimeColumn != "" {
		existing.MainDatetimeColumn = updates.MainDatetimeColumn
	}
	if updates.Params != "" {
		existing.Params = updates.Params
	}
	if updates.CacheTimeout != nil {
		existing.CacheTimeout = updates.CacheTimeout
	}
	if updates.IsFeatured != nil {
		existing.IsFeatured = *updates.IsFeatured
	}
	if updates.FilterSelectEnabled != nil {
		existing.FilterSelectEnabled = *updates.FilterSelectEnabled
	}
	if updates.Offset != nil {
		existing.Offset = *updates.Offset
	}
	if updates.Columns != nil {
		existing.Columns = updates.Columns
	}
	if updates.Metrics != nil {
		existing.Metrics = updates.Metrics
	}
	existing.Perm = connector.DatasourcePermission(existing)

	if err := h.store.UpdateDatasource(r.Context(), existing); err != nil {
		status, msg := classifyDBError(err, "Failed to update datasource")
		writeError(w, status, msg)
		return
	}

	// Reconnect so DSN or pool changes take effect immediately.
	if err := h.registry.Connect(existing); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"datasource":         datasourceToMap(existing),
			"connection_warning": "Datasource updated but reconnection failed: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, datasourceDetail(existing))
}

// Delete removes a datasource, its drift snapshot, and its live connection.
// DELETE /api/v1/datasource/{uid}
func (h *DatasourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}

	if err := h.store.DeleteDatasource(r.Context(), ds.ID, ds.Type); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete datasource: "+err.Error())
		return
	}
	_ = h.store.DeleteSnapshot(r.Context(), ds.UID())
	_ = h.registry.Disconnect(ds.UID())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Datasource '" + ds.UID() + "' deleted",
	})
}

// TestConnection pings the datasource's backing store.
// GET /api/v1/datasource/{uid}/test
func (h *DatasourceHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	conn := h.connection(w, r, ds)
	if conn == nil {
		return
	}

	if err := conn.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Ping failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Connection successful",
	})
}

// ---------------------------------------------------------------------------
// Explore surface
// ---------------------------------------------------------------------------

// Data returns the frontend metadata snapshot for a datasource: column
// choices, metric combos, order-by choices, and display formats.
// GET /api/v1/datasource/{uid}/data
func (h *DatasourceHandler) Data(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	if _, ok := h.authorize(r, ds.UID(), "metadata", model.VerbGet); !ok {
		writeError(w, http.StatusForbidden, "Access denied to datasource metadata")
		return
	}
	writeJSON(w, http.StatusOK, ds.Data())
}

// Query executes a query object against the datasource and returns tabular
// results. POST /api/v1/datasource/{uid}/query
func (h *DatasourceHandler) Query(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	role, ok := h.authorize(r, ds.UID(), "query", model.VerbPost)
	if !ok {
		writeError(w, http.StatusForbidden, "Access denied to datasource query")
		return
	}

	var obj model.QueryObject
	if err := readJSON(r, &obj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query object: "+err.Error())
		return
	}

	allowed := canSeeRestricted(middleware.GetPrincipal(r.Context()), role, ds.UID())
	if name := checkRestrictedMetrics(ds, obj, allowed); name != "" {
		writeError(w, http.StatusForbidden, "Access denied to restricted metric: "+name)
		return
	}

	conn := h.connection(w, r, ds)
	if conn == nil {
		return
	}

	result, err := conn.Query(r.Context(), ds, obj)
	if err != nil {
		if errors.Is(err, connector.ErrNotImplemented) {
			writeError(w, http.StatusNotImplemented, "Datasource type does not support query execution")
			return
		}
		writeError(w, http.StatusBadRequest, "Query failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// QueryString renders the SQL a query object would execute, without running
// it, so users can see what happens behind the scene.
// POST /api/v1/datasource/{uid}/query_str
func (h *DatasourceHandler) QueryString(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	role, ok := h.authorize(r, ds.UID(), "query", model.VerbGet)
	if !ok {
		writeError(w, http.StatusForbidden, "Access denied to datasource query")
		return
	}

	var obj model.QueryObject
	if err := readJSON(r, &obj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query object: "+err.Error())
		return
	}

	allowed := canSeeRestricted(middleware.GetPrincipal(r.Context()), role, ds.UID())
	if name := checkRestrictedMetrics(ds, obj, allowed); name != "" {
		writeError(w, http.StatusForbidden, "Access denied to restricted metric: "+name)
		return
	}

	conn := h.connection(w, r, ds)
	if conn == nil {
		return
	}

	sql, err := conn.QueryString(r.Context(), ds, obj)
	if err != nil {
		if errors.Is(err, connector.ErrNotImplemented) {
			writeError(w, http.StatusNotImplemented, "Datasource type does not support query rendering")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to render query: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query": sql,
	})
}

// Values returns distinct values of a filterable column for the filter
// dropdowns. GET /api/v1/datasource/{uid}/values/{column}
func (h *DatasourceHandler) Values(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	if _, ok := h.authorize(r, ds.UID(), "values", model.VerbGet); !ok {
		writeError(w, http.StatusForbidden, "Access denied to datasource values")
		return
	}

	if !ds.FilterSelectEnabled {
		writeError(w, http.StatusBadRequest, "Filter value selection is not enabled for this datasource")
		return
	}

	columnName := chi.URLParam(r, "column")
	col := ds.ColumnByName(columnName)
	if col == nil {
		writeError(w, http.StatusNotFound, "Column not found: "+columnName)
		return
	}
	if !col.Filterable {
		writeError(w, http.StatusBadRequest, "Column is not filterable: "+columnName)
		return
	}

	limit := clampInt(queryInt(r, "limit", connector.DefaultValuesLimit), 1, connector.DefaultValuesLimit)

	conn := h.connection(w, r, ds)
	if conn == nil {
		return
	}

	values, err := conn.ValuesForColumn(r.Context(), ds, columnName, limit)
	if err != nil {
		if errors.Is(err, connector.ErrNotImplemented) {
			writeError(w, http.StatusNotImplemented, "Datasource type does not support value enumeration")
			return
		}
		status, msg := classifyDBError(err, "Failed to fetch values")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"column": columnName,
		"values": values,
		"count":  len(values),
	})
}

// ---------------------------------------------------------------------------
// Column refresh and drift
// ---------------------------------------------------------------------------

// Refresh re-introspects the datasource's live columns, reports drift
// against the stored baseline, replaces the stored columns, and advances
// the baseline. Metrics survive the refresh unchanged.
// POST /api/v1/datasource/{uid}/refresh
func (h *DatasourceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	conn := h.connection(w, r, ds)
	if conn == nil {
		return
	}

	live, err := conn.FetchColumns(r.Context(), ds.TableName)
	if err != nil {
		status, msg := classifyDBError(err, "Failed to introspect columns")
		writeError(w, status, msg)
		return
	}

	// Diff against the last snapshot, falling back to the stored columns
	// when no baseline exists yet.
	baseline := ds.Columns
	if snap, err := h.store.GetSnapshot(r.Context(), ds.UID()); err == nil {
		baseline = snap.Columns
	}
	report := contract.DiffColumns(ds.UID(), baseline, live)

	if err := h.store.ReplaceColumns(r.Context(), ds, live); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store columns: "+err.Error())
		return
	}
	if _, err := h.store.SaveSnapshot(r.Context(), ds.UID(), live); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save snapshot: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasource": ds.UID(),
		"columns":    live,
		"drift":      report,
	})
}

// Drift reports column drift between the stored baseline and the live table
// without modifying anything. GET /api/v1/datasource/{uid}/drift
func (h *DatasourceHandler) Drift(w http.ResponseWriter, r *http.Request) {
	ds := h.loadDatasource(w, r)
	if ds == nil {
		return
	}
	conn := h.connection(w, r, ds)
	if conn == nil {
		return
	}

	live, err := conn.FetchColumns(r.Context(), ds.TableName)
	if err != nil {
		status, msg := classifyDBError(err, "Failed to introspect columns")
		writeError(w, status, msg)
		return
	}

	baseline := ds.Columns
	if snap, err := h.store.GetSnapshot(r.Context(), ds.UID()); err == nil {
		baseline = snap.Columns
	}

	writeJSON(w, http.StatusOK, contract.DiffColumns(ds.UID(), baseline, live))
}

// ---------------------------------------------------------------------------
// Serialization helpers
// ---------------------------------------------------------------------------

// datasourceToMap is the list-view shape: no DSN, no column/metric detail.
func datasourceToMap(ds *model.Datasource) map[string]interface{} {
	m := map[string]interface{}{
		"id":                    ds.ID,
		"uid":                   ds.UID(),
		"type":                  ds.Type,
		"name":                  ds.Name,
		"description":           ds.Description,
		"schema":                ds.Schema,
		"table_name":            ds.TableName,
		"is_featured":           ds.IsFeatured,
		"filter_select_enabled": ds.FilterSelectEnabled,
		"main_dttm_col":         ds.MainDttmCol(),
		"perm":                  ds.Perm,
		"explore_url":           ds.ExploreURL(),
		"edit_url":              ds.EditURL(),
		"column_count":          len(ds.Columns),
		"metric_count":          len(ds.Metrics),
		"created_at":            ds.CreatedAt,
		"updated_at":            ds.UpdatedAt,
	}
	if ds.PrivateKeyPath != "" {
		m["private_key_path"] = ds.PrivateKeyPath
	}
	return m
}

// datasourceDetail is the single-record shape: list fields plus the owned
// column and metric collections.
func datasourceDetail(ds *model.Datasource) map[string]interface{} {
	m := datasourceToMap(ds)
	m["columns"] = ds.Columns
	m["metrics"] = ds.Metrics
	m["default_endpoint"] = ds.DefaultEndpoint
	m["offset"] = ds.Offset
	m["params"] = ds.Params
	if ds.CacheTimeout != nil {
		m["cache_timeout"] = *ds.CacheTimeout
	}
	return m
}
