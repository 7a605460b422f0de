package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
)

// newToolServer builds an MCPServer over an in-memory store, without
// starting a transport, so tool handlers can be invoked directly.
func newToolServer(t *testing.T) *MCPServer {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := connector.NewRegistry()
	t.Cleanup(registry.CloseAll)

	return &MCPServer{
		registry: registry,
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func seedDescribeDatasource(t *testing.T, s *MCPServer) *model.Datasource {
	t.Helper()

	ds := &model.Datasource{
		Type:                "sqlite",
		Name:                "events",
		DSN:                 "events.db",
		TableName:           "events",
		FilterSelectEnabled: true,
		Columns: []model.Column{
			{Name: "channel", Type: "VARCHAR(32)", IsActive: true, Groupby: true, Filterable: true},
			{Name: "occurred_at", Type: "DATETIME", IsActive: true, Filterable: true},
		},
		Metrics: []model.Metric{
			{MetricName: "cnt", MetricType: "count", Expression: "COUNT(*)"},
			{MetricName: "secret_avg", VerboseName: "Secret Avg", MetricType: "avg", Expression: "AVG(duration)", IsRestricted: true},
		},
	}
	if err := s.store.CreateDatasource(context.Background(), ds); err != nil {
		t.Fatalf("seed datasource: %v", err)
	}
	return ds
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestDescribeDatasourceTool(t *testing.T) {
	s := newToolServer(t)
	ds := seedDescribeDatasource(t, s)

	result, err := s.handleDescribeDatasource(context.Background(),
		toolRequest(map[string]interface{}{"uid": ds.UID()}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}

	var resp struct {
		UID     string `json:"uid"`
		Columns []struct {
			Name   string `json:"name"`
			IsDttm bool   `json:"is_dttm"`
		} `json:"columns"`
		Metrics []struct {
			Name       string `json:"name"`
			Label      string `json:"label"`
			Restricted bool   `json:"is_restricted"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}

	if resp.UID != ds.UID() {
		t.Errorf("uid = %q, want %q", resp.UID, ds.UID())
	}

	// The temporal flag comes from the type classifier.
	dttm := map[string]bool{}
	for _, c := range resp.Columns {
		dttm[c.Name] = c.IsDttm
	}
	if !dttm["occurred_at"] {
		t.Error("occurred_at should report is_dttm")
	}
	if dttm["channel"] {
		t.Error("channel should not report is_dttm")
	}

	if len(resp.Metrics) != 2 {
		t.Fatalf("got %d metrics, want 2", len(resp.Metrics))
	}
	for _, m := range resp.Metrics {
		if m.Name == "secret_avg" && (!m.Restricted || m.Label != "Secret Avg") {
			t.Errorf("restricted metric shape: %+v", m)
		}
	}
}

func TestDescribeDatasourceTool_UnknownUID(t *testing.T) {
	s := newToolServer(t)

	result, err := s.handleDescribeDatasource(context.Background(),
		toolRequest(map[string]interface{}{"uid": "99__sqlite"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown datasource")
	}
}
