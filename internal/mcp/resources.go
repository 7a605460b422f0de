package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/prismbi/prism/internal/model"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// prism://datasources — the datasource catalog
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"prism://datasources",
			"Datasource Catalog",
			mcp.WithResourceDescription(
				"List of all datasources registered in Prism, "+
					"including their backend type, table, and metric names.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleDatasourcesResource,
	)

	// -------------------------------------------------------------------
	// prism://datasource/{uid} — explore metadata for one datasource
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"prism://datasource/{uid}",
			"Datasource Metadata",
			mcp.WithTemplateDescription(
				"The explore metadata snapshot for a datasource: groupable and "+
					"filterable columns, metric choices, column formats, and "+
					"ordering choices.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleDatasourceResource,
	)
}

// handleDatasourcesResource returns a JSON list of all registered datasources.
func (s *MCPServer) handleDatasourcesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	datasources, err := s.store.ListDatasources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}

	type datasourceInfo struct {
		UID       string   `json:"uid"`
		Name      string   `json:"name"`
		Type      string   `json:"type"`
		TableName string   `json:"table_name"`
		Metrics   []string `json:"metrics"`
	}

	items := make([]datasourceInfo, len(datasources))
	for i := range datasources {
		ds := &datasources[i]
		metrics := make([]string, len(ds.Metrics))
		for j, m := range ds.Metrics {
			metrics[j] = m.MetricName
		}
		items[i] = datasourceInfo{
			UID:       ds.UID(),
			Name:      ds.Name,
			Type:      ds.Type,
			TableName: ds.TableName,
			Metrics:   metrics,
		}
	}

	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal datasources: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "prism://datasources",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// handleDatasourceResource returns the explore metadata for one datasource.
func (s *MCPServer) handleDatasourceResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	// Extract the UID from "prism://datasource/{uid}".
	uri := request.Params.URI
	uid := strings.TrimPrefix(uri, "prism://datasource/")
	if uid == "" || uid == uri {
		return nil, fmt.Errorf("invalid datasource URI %q: expected prism://datasource/{uid}", uri)
	}
	if _, _, err := model.ParseUID(uid); err != nil {
		return nil, fmt.Errorf("invalid datasource UID %q: %w", uid, err)
	}

	ds, err := s.store.GetDatasourceByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("datasource %q not found: %w", uid, err)
	}

	b, err := json.MarshalIndent(ds.Data(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal datasource metadata: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
