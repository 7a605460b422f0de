package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prismbi/prism/internal/model"
)

// GenerateSpec generates an OpenAPI 3.1 spec for the Prism query surface,
// covering every registered datasource. Each datasource contributes its own
// tag plus typed paths under /api/v1/datasource/{uid}.
func GenerateSpec(datasources []model.Datasource, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Prism API",
			Description: "Query and metadata API for all datasources managed by Prism.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	// Initialize components
	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	// Add security schemes
	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Security = openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}

	doc.Paths = openapi3.NewPaths()

	// Shared schemas used by every datasource's paths.
	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["QueryObject"] = queryObjectSchema()
	doc.Components.Schemas["QueryResult"] = queryResultSchema()
	doc.Components.Schemas["DatasourceData"] = dataSnapshotSchema()

	for i := range datasources {
		addDatasourcePaths(doc, &datasources[i])
	}

	return doc
}

// addDatasourcePaths generates the explore-surface paths for one datasource.
func addDatasourcePaths(doc *openapi3.T, ds *model.Datasource) {
	uid := ds.UID()
	basePath := fmt.Sprintf("/api/v1/datasource/%s", uid)
	tag := ds.Name

	// Register a row schema built from the datasource's columns so clients
	// see the shape of ungrouped query results.
	schemaName := sanitizeSchemaName(ds.Type, ds.Name)
	doc.Components.Schemas[schemaName+"Row"] = columnsToRowSchema(ds.Columns)

	doc.Paths.Set(basePath+"/data", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     fmt.Sprintf("Get %s metadata snapshot", ds.Name),
			Description: "Column choices, metric combos, order-by choices, and display formats for the explore view.",
			OperationID: fmt.Sprintf("data_%s", uid),
			Responses: newResponses(
				"200", "Datasource metadata snapshot",
				refSchema("#/components/schemas/DatasourceData"),
			),
		},
	})

	doc.Paths.Set(basePath+"/query", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     fmt.Sprintf("Query %s", ds.Name),
			Description: fmt.Sprintf("Execute an aggregate query against %s and return tabular results.", ds.Name),
			OperationID: fmt.Sprintf("query_%s", uid),
			RequestBody: queryObjectBody(),
			Responses: newResponses(
				"200", "Query results",
				refSchema("#/components/schemas/QueryResult"),
			),
		},
	})

	doc.Paths.Set(basePath+"/query_str", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     fmt.Sprintf("Render %s query", ds.Name),
			Description: "Render the SQL a query object would execute without running it.",
			OperationID: fmt.Sprintf("query_str_%s", uid),
			RequestBody: queryObjectBody(),
			Responses: newResponses(
				"200", "Rendered SQL statement",
				&openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"query": &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
					},
				}},
			),
		},
	})

	// One values path per filterable column, so the column names and types
	// are visible in the spec.
	for _, col := range ds.Columns {
		if !col.Filterable {
			continue
		}
		valuesPath := fmt.Sprintf("%s/values/%s", basePath, col.Name)
		doc.Paths.Set(valuesPath, &openapi3.PathItem{
			Get: &openapi3.Operation{
				Tags:        []string{tag},
				Summary:     fmt.Sprintf("Distinct values of %s.%s", ds.Name, col.Name),
				Description: "Distinct column values for populating filter dropdowns.",
				OperationID: fmt.Sprintf("values_%s_%s", uid, col.Name),
				Parameters:  valuesQueryParameters(),
				Responses: newResponses(
					"200", "Distinct values",
					valuesResponseSchema(col.Type),
				),
			},
		})
	}
}

// columnsToRowSchema generates an object schema describing one result row.
func columnsToRowSchema(columns []model.Column) *openapi3.SchemaRef {
	properties := openapi3.Schemas{}
	for _, col := range columns {
		m := MapDBType(col.Type)
		schema := columnTypeSchema(m)
		if col.Description != "" {
			schema.Description = col.Description
		}
		properties[col.Name] = &openapi3.SchemaRef{Value: schema}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: properties,
		},
	}
}

// columnTypeSchema converts a type mapping into an OpenAPI schema.
func columnTypeSchema(m TypeMapping) *openapi3.Schema {
	s := &openapi3.Schema{
		Type: &openapi3.Types{m.Type},
	}
	if m.Format != "" {
		s.Format = m.Format
	}
	// For array types, add items schema
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	return s
}

// queryObjectSchema describes the backend-agnostic query object.
func queryObjectSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"groupby": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				}},
				"metrics": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				}},
				"filters": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"col": &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
							"op":  &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
							"val": &openapi3.SchemaRef{Value: &openapi3.Schema{}},
						},
					}},
				}},
				"from_dttm": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"string"}, Format: "date-time",
				}},
				"to_dttm": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"string"}, Format: "date-time",
				}},
				"row_limit": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"integer"}, Format: "int32",
				}},
				"order_by": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: &openapi3.Schema{
						Type:        &openapi3.Types{"array"},
						Description: "[column, ascending] pair",
						Items:       &openapi3.SchemaRef{Value: &openapi3.Schema{}},
					}},
				}},
			},
		},
	}
}

// queryResultSchema describes the tabular query result envelope.
func queryResultSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"string"},
					Enum: []interface{}{"success", "failed"},
				}},
				"columns": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				}},
				"rows": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
				}},
				"query":       &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				"error":       &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				"duration_ms": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "double"}},
			},
		},
	}
}

// dataSnapshotSchema describes the frontend metadata snapshot.
func dataSnapshotSchema() *openapi3.SchemaRef {
	choicePair := &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type: &openapi3.Types{"array"},
		Items: &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:        &openapi3.Types{"array"},
			Description: "[value, label] pair",
			Items:       &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
		}},
	}}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"all_cols":         choicePair,
				"column_formats":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
				"edit_url":         &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				"filter_select":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
				"filterable_cols":  choicePair,
				"gb_cols":          choicePair,
				"id":               &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
				"metrics_combo":    choicePair,
				"name":             &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				"order_by_choices": choicePair,
				"type":             &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
			},
		},
	}
}

// errorResponseSchema is the standard error envelope.
func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}

// valuesResponseSchema describes the Values endpoint payload for a column of
// the given database type.
func valuesResponseSchema(dbType string) *openapi3.SchemaRef {
	m := MapDBType(dbType)
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"column": &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				"values": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: columnTypeSchema(m)},
				}},
				"count": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			},
		},
	}
}

// valuesQueryParameters returns query parameters for the Values endpoint.
func valuesQueryParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of distinct values to return.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
	}
}

// queryObjectBody is the shared request body for query endpoints.
func queryObjectBody() *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(refSchema("#/components/schemas/QueryObject")),
		},
	}
}

// refSchema returns a SchemaRef pointing at a component schema.
func refSchema(ref string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: ref}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	// Success response
	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errDesc := "Error"
	responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &errDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(refSchema("#/components/schemas/ErrorResponse")),
		},
	})

	return responses
}

// sanitizeSchemaName generates a component schema name from a datasource's
// type and name, stripping characters OpenAPI identifiers disallow.
func sanitizeSchemaName(dsType, name string) string {
	clean := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
				b.WriteRune(r)
			} else {
				b.WriteRune('_')
			}
		}
		return b.String()
	}
	return capitalize(clean(dsType)) + capitalize(clean(name))
}

// capitalize upper-cases the first letter of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
