package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Argument extraction. Tool arguments arrive as loosely-typed JSON; these
// helpers normalize them before they are shaped into a query object.

// requireString extracts a required string argument, with an error message
// the model can act on.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

func optionalString(request mcp.CallToolRequest, key string) string {
	return request.GetString(key, "")
}

func optionalInt(request mcp.CallToolRequest, key string, defaultVal int) int {
	return request.GetInt(key, defaultVal)
}

func optionalStringSlice(request mcp.CallToolRequest, key string) []string {
	return request.GetStringSlice(key, nil)
}

// anySliceArg extracts a heterogeneous-array argument (filters, order_by
// pairs). Absent or non-array values come back nil and are treated as
// "no clauses".
func anySliceArg(request mcp.CallToolRequest, key string) []interface{} {
	args := request.GetArguments()
	if args == nil {
		return nil
	}
	slice, _ := args[key].([]interface{})
	return slice
}

// successJSON renders a catalog or query payload as indented JSON in a text
// result. Indentation costs tokens but keeps column lists and result rows
// readable for the model.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session. Infrastructure failures return a Go error instead.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// clamp constrains val to [min, max]. Row and value limits from tool
// arguments are clamped rather than rejected.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
