package handler

import (
	"net/http"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/openapi"
)

// OpenAPIHandler serves the generated OpenAPI 3.1 spec describing the query
// surface of every registered datasource.
type OpenAPIHandler struct {
	store *config.Store
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(store *config.Store) *OpenAPIHandler {
	return &OpenAPIHandler{store: store}
}

// ServeSpec returns the OpenAPI spec covering all datasources.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	datasources, err := h.store.ListDatasources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list datasources: "+err.Error())
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := scheme + "://" + r.Host

	writeJSON(w, http.StatusOK, openapi.GenerateSpec(datasources, baseURL))
}
