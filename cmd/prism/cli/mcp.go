package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	pmcp "github.com/prismbi/prism/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes datasource
operations as tools for AI agents like Claude. Supports stdio (default) and
HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with Claude Desktop or other MCP clients.

In HTTP mode, the server listens on the specified port for streamable HTTP
connections.`,
		Example: `  prism mcp                             # stdio mode (for Claude Desktop)
  prism mcp --transport http --port 3001  # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("init config store: %w", err)
	}
	defer store.Close()

	registry := newRegistry()
	defer registry.CloseAll()

	// Connect all registered datasources up front so the tools can reach them.
	datasources, err := store.ListDatasources(context.Background())
	if err != nil {
		logger.Warn("failed to load datasources", "error", err)
	}
	for i := range datasources {
		ds := &datasources[i]
		if err := registry.Connect(ds); err != nil {
			logger.Error("failed to connect datasource", "datasource", ds.UID(), "error", err)
		} else {
			logger.Info("connected datasource", "datasource", ds.UID(), "table", ds.TableName)
		}
	}

	mcpSrv := pmcp.NewMCPServer(registry, store, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		addr := fmt.Sprintf(":%d", port)
		logger.Info("starting MCP HTTP server", "addr", addr)
		return mcpSrv.ServeHTTP(addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
