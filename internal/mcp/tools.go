package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/contract"
	"github.com/prismbi/prism/internal/model"
)

// registerTools registers all Prism MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("prism_list_datasources",
			mcp.WithDescription(
				"List all datasources registered in Prism. Returns each datasource's "+
					"UID, name, backend type, table name, and available metric names. "+
					"Use this first to discover what data exists before querying.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListDatasources,
	)

	srv.AddTool(
		mcp.NewTool("prism_describe_datasource",
			mcp.WithDescription(
				"Get the full definition of a datasource: its columns with their "+
					"types and capability flags (groupable, filterable, aggregatable), "+
					"its metrics with their SQL expressions, and its datetime column. "+
					"Use this to understand what a prism_query against it can contain.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("uid",
				mcp.Required(),
				mcp.Description("Datasource UID in the form \"{id}__{type}\", e.g. \"3__postgres\""),
			),
		),
		s.handleDescribeDatasource,
	)

	// ----- Query tools -----

	srv.AddTool(
		mcp.NewTool("prism_query",
			mcp.WithDescription(
				"Run an aggregate query against a datasource. The query is expressed "+
					"as dimensions and metrics, not SQL:\n"+
					"  - groupby: column names to group by (must be groupable columns)\n"+
					"  - metrics: metric names defined on the datasource\n"+
					"  - filters: predicates on filterable columns, e.g. "+
					"[{\"col\": \"country\", \"op\": \"=\", \"val\": \"US\"}]\n"+
					"  - from_dttm / to_dttm: bound the datasource's datetime column "+
					"(RFC 3339 or \"2006-01-02\")\n"+
					"  - order_by: [column, ascending] pairs, e.g. [[\"revenue\", false]]\n"+
					"Returns rows as JSON along with the rendered SQL.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("uid",
				mcp.Required(),
				mcp.Description("Datasource UID"),
			),
			mcp.WithArray("groupby",
				mcp.Description("Column names to group by"),
				mcp.WithStringItems(),
			),
			mcp.WithArray("metrics",
				mcp.Description("Metric names to compute"),
				mcp.WithStringItems(),
			),
			mcp.WithArray("filters",
				mcp.Description("Filter objects with col, op, and val keys. "+
					"Operators: =, !=, >, >=, <, <=, in, not in, like"),
			),
			mcp.WithString("from_dttm",
				mcp.Description("Inclusive lower bound on the datetime column"),
			),
			mcp.WithString("to_dttm",
				mcp.Description("Exclusive upper bound on the datetime column"),
			),
			mcp.WithArray("order_by",
				mcp.Description("Ordering as [column, ascending] pairs"),
			),
			mcp.WithNumber("row_limit",
				mcp.Description("Maximum number of rows to return (default 100, max 10000)"),
			),
		),
		s.handleQuery,
	)

	srv.AddTool(
		mcp.NewTool("prism_render_sql",
			mcp.WithDescription(
				"Render the SQL a query would execute against a datasource, without "+
					"running it. Takes the same parameters as prism_query. Useful for "+
					"showing users what happens behind the scene, or for debugging "+
					"why a query returns unexpected results.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("uid",
				mcp.Required(),
				mcp.Description("Datasource UID"),
			),
			mcp.WithArray("groupby",
				mcp.Description("Column names to group by"),
				mcp.WithStringItems(),
			),
			mcp.WithArray("metrics",
				mcp.Description("Metric names to compute"),
				mcp.WithStringItems(),
			),
			mcp.WithArray("filters",
				mcp.Description("Filter objects with col, op, and val keys"),
			),
			mcp.WithString("from_dttm",
				mcp.Description("Inclusive lower bound on the datetime column"),
			),
			mcp.WithString("to_dttm",
				mcp.Description("Exclusive upper bound on the datetime column"),
			),
			mcp.WithArray("order_by",
				mcp.Description("Ordering as [column, ascending] pairs"),
			),
			mcp.WithNumber("row_limit",
				mcp.Description("Row limit to render into the statement"),
			),
		),
		s.handleRenderSQL,
	)

	srv.AddTool(
		mcp.NewTool("prism_column_values",
			mcp.WithDescription(
				"Fetch the distinct values of a filterable column, for building "+
					"filter predicates. Only works on datasources with filter value "+
					"selection enabled, and only for columns flagged filterable.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("uid",
				mcp.Required(),
				mcp.Description("Datasource UID"),
			),
			mcp.WithString("column",
				mcp.Required(),
				mcp.Description("Name of the filterable column"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of distinct values to return (default 200, max 10000)"),
			),
		),
		s.handleColumnValues,
	)

	// ----- Schema drift tools -----

	srv.AddTool(
		mcp.NewTool("prism_check_drift",
			mcp.WithDescription(
				"Compare a datasource's stored columns against the live schema of "+
					"its backing table and report drift. Added columns are additive; "+
					"removed columns and type changes are breaking. Read-only: the "+
					"stored columns are not modified.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("uid",
				mcp.Required(),
				mcp.Description("Datasource UID"),
			),
		),
		s.handleCheckDrift,
	)

	srv.AddTool(
		mcp.NewTool("prism_refresh_columns",
			mcp.WithDescription(
				"Re-introspect a datasource's backing table and replace its stored "+
					"columns with the live schema. Metrics are preserved. Returns the "+
					"drift detected against the previous baseline. Use prism_check_drift "+
					"first if you only want to inspect the difference.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("uid",
				mcp.Required(),
				mcp.Description("Datasource UID"),
			),
		),
		s.handleRefreshColumns,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

// handleListDatasources returns the datasource catalog.
func (s *MCPServer) handleListDatasources(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	datasources, err := s.store.ListDatasources(ctx)
	if err != nil {
		return toolError("Failed to list datasources: %v", err)
	}

	type datasourceInfo struct {
		UID          string   `json:"uid"`
		Name         string   `json:"name"`
		Type         string   `json:"type"`
		TableName    string   `json:"table_name"`
		Description  string   `json:"description,omitempty"`
		FilterSelect bool     `json:"filter_select_enabled"`
		Metrics      []string `json:"metrics"`
	}

	items := make([]datasourceInfo, len(datasources))
	for i := range datasources {
		ds := &datasources[i]
		metrics := make([]string, len(ds.Metrics))
		for j, m := range ds.Metrics {
			metrics[j] = m.MetricName
		}
		items[i] = datasourceInfo{
			UID:          ds.UID(),
			Name:         ds.Name,
			Type:         ds.Type,
			TableName:    ds.TableName,
			Description:  ds.Description,
			FilterSelect: ds.FilterSelectEnabled,
			Metrics:      metrics,
		}
	}

	return successJSON(items)
}

// handleDescribeDatasource returns the full definition of one datasource.
func (s *MCPServer) handleDescribeDatasource(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	ds, errResult := s.loadDatasource(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	type columnInfo struct {
		Name       string `json:"name"`
		Type       string `json:"type"`
		Groupby    bool   `json:"groupby"`
		Filterable bool   `json:"filterable"`
		IsDttm     bool   `json:"is_dttm"`
	}
	type metricInfo struct {
		Name        string `json:"name"`
		Label       string `json:"label"`
		Type        string `json:"type"`
		Expression  string `json:"expression"`
		Restricted  bool   `json:"is_restricted"`
		Description string `json:"description,omitempty"`
	}

	cols := make([]columnInfo, len(ds.Columns))
	for i, c := range ds.Columns {
		cols[i] = columnInfo{
			Name:       c.Name,
			Type:       c.Type,
			Groupby:    c.Groupby,
			Filterable: c.Filterable,
			IsDttm:     c.IsTime(),
		}
	}
	metrics := make([]metricInfo, len(ds.Metrics))
	for i, m := range ds.Metrics {
		metrics[i] = metricInfo{
			Name:        m.MetricName,
			Label:       m.Label(),
			Type:        m.MetricType,
			Expression:  m.Expression,
			Restricted:  m.IsRestricted,
			Description: m.Description,
		}
	}

	return successJSON(map[string]interface{}{
		"uid":                   ds.UID(),
		"name":                  ds.Name,
		"type":                  ds.Type,
		"table_name":            ds.TableName,
		"description":           ds.Description,
		"main_dttm_col":         ds.MainDttmCol(),
		"filter_select_enabled": ds.FilterSelectEnabled,
		"offset":                ds.Offset,
		"columns":               cols,
		"metrics":               metrics,
	})
}

// handleQuery executes an aggregate query against a datasource.
func (s *MCPServer) handleQuery(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	ds, errResult := s.loadDatasource(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	obj, err := buildQueryObject(request)
	if err != nil {
		return toolError("Invalid query: %v", err)
	}

	conn, errResult := s.connection(ds)
	if errResult != nil {
		return errResult, nil
	}

	result, err := conn.Query(ctx, ds, obj)
	if err != nil {
		return toolError("Query failed: %v\n\nUse prism_describe_datasource to see "+
			"the valid groupby columns and metric names for %q.", err, ds.UID())
	}

	return successJSON(result)
}

// handleRenderSQL renders the SQL for a query without executing it.
func (s *MCPServer) handleRenderSQL(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	ds, errResult := s.loadDatasource(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	obj, err := buildQueryObject(request)
	if err != nil {
		return toolError("Invalid query: %v", err)
	}

	conn, errResult := s.connection(ds)
	if errResult != nil {
		return errResult, nil
	}

	sqlText, err := conn.QueryString(ctx, ds, obj)
	if err != nil {
		return toolError("Failed to render SQL: %v", err)
	}

	return successJSON(map[string]interface{}{
		"datasource": ds.UID(),
		"query":      sqlText,
	})
}

// handleColumnValues fetches distinct values of a filterable column.
func (s *MCPServer) handleColumnValues(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	ds, errResult := s.loadDatasource(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	columnName, err := requireString(request, "column")
	if err != nil {
		return toolError("%v", err)
	}
	limit := clamp(optionalInt(request, "limit", 200), 1, connector.DefaultValuesLimit)

	if !ds.FilterSelectEnabled {
		return toolError("Filter value selection is not enabled for datasource %q.", ds.UID())
	}
	col := ds.ColumnByName(columnName)
	if col == nil {
		return toolError("Column %q not found on datasource %q. Columns: %v",
			columnName, ds.UID(), ds.ColumnNames())
	}
	if !col.Filterable {
		return toolError("Column %q is not filterable. Filterable columns: %v",
			columnName, ds.FilterableColumnNames())
	}

	conn, errResult := s.connection(ds)
	if errResult != nil {
		return errResult, nil
	}

	values, err := conn.ValuesForColumn(ctx, ds, columnName, limit)
	if err != nil {
		return toolError("Failed to fetch values: %v", err)
	}

	return successJSON(map[string]interface{}{
		"column": columnName,
		"values": values,
		"count":  len(values),
	})
}

// handleCheckDrift reports schema drift without modifying stored columns.
func (s *MCPServer) handleCheckDrift(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	ds, errResult := s.loadDatasource(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	conn, errResult := s.connection(ds)
	if errResult != nil {
		return errResult, nil
	}

	live, err := conn.FetchColumns(ctx, ds.TableName)
	if err != nil {
		return toolError("Failed to introspect table %q: %v", ds.TableName, err)
	}

	baseline := ds.Columns
	if snap, err := s.store.GetSnapshot(ctx, ds.UID()); err == nil {
		baseline = snap.Columns
	}

	report := contract.DiffColumns(ds.UID(), baseline, live)
	return successJSON(report)
}

// handleRefreshColumns re-introspects the table and replaces stored columns.
func (s *MCPServer) handleRefreshColumns(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	ds, errResult := s.loadDatasource(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	conn, errResult := s.connection(ds)
	if errResult != nil {
		return errResult, nil
	}

	live, err := conn.FetchColumns(ctx, ds.TableName)
	if err != nil {
		return toolError("Failed to introspect table %q: %v", ds.TableName, err)
	}

	baseline := ds.Columns
	if snap, err := s.store.GetSnapshot(ctx, ds.UID()); err == nil {
		baseline = snap.Columns
	}
	report := contract.DiffColumns(ds.UID(), baseline, live)

	if err := s.store.ReplaceColumns(ctx, ds, live); err != nil {
		return toolError("Failed to store columns: %v", err)
	}
	if _, err := s.store.SaveSnapshot(ctx, ds.UID(), live); err != nil {
		return toolError("Failed to save snapshot: %v", err)
	}

	return successJSON(map[string]interface{}{
		"datasource":   ds.UID(),
		"column_count": len(live),
		"drift":        report,
	})
}

// =========================================================================
// Shared lookup and parsing helpers
// =========================================================================

// loadDatasource resolves the "uid" argument to a stored datasource. The
// second return value is a non-nil tool error result on failure.
func (s *MCPServer) loadDatasource(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*model.Datasource, *mcp.CallToolResult) {

	uid, err := requireString(request, "uid")
	if err != nil {
		result, _ := toolError("%v. Connected datasources: %v", err, s.registry.List())
		return nil, result
	}
	if _, _, err := model.ParseUID(uid); err != nil {
		result, _ := toolError("Invalid datasource UID %q: expected \"{id}__{type}\", e.g. \"3__postgres\"", uid)
		return nil, result
	}

	ds, err := s.store.GetDatasourceByUID(ctx, uid)
	if err != nil {
		result, _ := toolError("Datasource %q not found. Use prism_list_datasources to see the catalog.", uid)
		return nil, result
	}
	return ds, nil
}

// connection returns the live connection for a datasource, reconnecting
// when the registry has no entry (e.g. after a restart).
func (s *MCPServer) connection(ds *model.Datasource) (connector.Connector, *mcp.CallToolResult) {
	conn, err := s.registry.Get(ds.UID())
	if err == nil {
		return conn, nil
	}
	if err := s.registry.Connect(ds); err != nil {
		result, _ := toolError("Datasource %q is not reachable: %v", ds.UID(), err)
		return nil, result
	}
	conn, err = s.registry.Get(ds.UID())
	if err != nil {
		result, _ := toolError("Datasource %q is not connected: %v", ds.UID(), err)
		return nil, result
	}
	return conn, nil
}

// buildQueryObject assembles a query object from tool arguments.
func buildQueryObject(request mcp.CallToolRequest) (model.QueryObject, error) {
	obj := model.QueryObject{
		Groupby:  optionalStringSlice(request, "groupby"),
		Metrics:  optionalStringSlice(request, "metrics"),
		RowLimit: clamp(optionalInt(request, "row_limit", 100), 1, 10000),
	}

	for i, raw := range anySliceArg(request, "filters") {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return obj, fmt.Errorf("filters[%d] must be an object with col, op, and val keys", i)
		}
		col, _ := m["col"].(string)
		op, _ := m["op"].(string)
		if col == "" || op == "" {
			return obj, fmt.Errorf("filters[%d] is missing col or op", i)
		}
		obj.Filters = append(obj.Filters, model.QueryFilter{
			Column:   col,
			Operator: op,
			Value:    m["val"],
		})
	}

	for i, raw := range anySliceArg(request, "order_by") {
		pair, ok := raw.([]interface{})
		if !ok || len(pair) != 2 {
			return obj, fmt.Errorf("order_by[%d] must be a [column, ascending] pair", i)
		}
		col, colOK := pair[0].(string)
		asc, ascOK := pair[1].(bool)
		if !colOK || !ascOK {
			return obj, fmt.Errorf("order_by[%d] must pair a column name with a boolean", i)
		}
		obj.OrderBy = append(obj.OrderBy, model.OrderBy{Column: col, Ascending: asc})
	}

	from, err := parseTimeArg(request, "from_dttm")
	if err != nil {
		return obj, err
	}
	obj.From = from

	to, err := parseTimeArg(request, "to_dttm")
	if err != nil {
		return obj, err
	}
	obj.To = to

	return obj, nil
}

// parseTimeArg reads an optional timestamp argument, accepting RFC 3339 or
// plain dates.
func parseTimeArg(request mcp.CallToolRequest, key string) (*time.Time, error) {
	raw := optionalString(request, key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("%s %q is not a recognized timestamp (use RFC 3339 or \"2006-01-02\")", key, raw)
}
