// Package swagger serves the OpenAPI description of the warden API.
package swagger

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/warden/pkg/httputil"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openapiSpec []byte

var swaggerUI = template.Must(template.New("swagger").Parse(swaggerUITemplate))

// Handlers serves the OpenAPI document as YAML and JSON, and a Swagger UI page
type Handlers struct {
	prefix   string
	specJSON []byte
}

// NewHandlers converts the embedded document to JSON once. Routes are mounted under prefix.
func NewHandlers(prefix string) (*Handlers, error) {
	var doc interface{}
	if err := yaml.Unmarshal(openapiSpec, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse openapi.yaml: %w", err)
	}
	specJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert openapi.yaml to JSON: %w", err)
	}
	return &Handlers{prefix: prefix, specJSON: specJSON}, nil
}

// RegisterRoutes registers the documentation routes with the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(h.prefix+"/openapi.yaml", h.serveOpenAPISpec).Methods("GET")
	router.HandleFunc(h.prefix+"/openapi.json", h.serveOpenAPISpecJSON).Methods("GET")
	router.HandleFunc(h.prefix, h.serveSwaggerUI).Methods("GET")
}

func (h *Handlers) serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(openapiSpec)
}

func (h *Handlers) serveOpenAPISpecJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.specJSON)
}

func (h *Handlers) serveSwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := swaggerUI.Execute(w, map[string]string{"SpecURL": h.prefix + "/openapi.yaml"}); err != nil {
		httputil.WriteError(w, nil, err)
	}
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Warden API</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    url: "{{.SpecURL}}",
    dom_id: '#swagger-ui',
    deepLinking: true,
    withCredentials: true
  });
};
</script>
</body>
</html>`
