package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		outputFile string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "openapi [uid]",
		Short: "Generate OpenAPI specification",
		Long: `Generate an OpenAPI 3.1 specification for one or all registered datasources.
The spec covers each datasource's metadata, query, and values endpoints with
schemas derived from its columns.`,
		Example: `  prism openapi                        # combined spec for all datasources
  prism openapi 3__postgres            # spec for a single datasource
  prism openapi -o spec.json           # write to file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := ""
			if len(args) > 0 {
				uid = args[0]
			}
			return runOpenAPI(uid, baseURL, outputFile)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Base URL to embed in the spec")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}

func runOpenAPI(uid, baseURL, outputFile string) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	var datasources []model.Datasource
	if uid != "" {
		ds, err := store.GetDatasourceByUID(ctx, uid)
		if err != nil {
			return fmt.Errorf("look up datasource %q: %w", uid, err)
		}
		datasources = []model.Datasource{*ds}
	} else {
		datasources, err = store.ListDatasources(ctx)
		if err != nil {
			return fmt.Errorf("list datasources: %w", err)
		}
	}

	doc := openapi.GenerateSpec(datasources, baseURL)

	jsonBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, jsonBytes, 0644); err != nil {
			return fmt.Errorf("write spec: %w", err)
		}
		fmt.Printf("Wrote OpenAPI spec for %d datasource(s) to %s\n", len(datasources), outputFile)
		return nil
	}

	fmt.Println(string(jsonBytes))
	return nil
}
