package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// Parameter documents one request parameter.
type Parameter struct {
	Name        string
	In          string // "query" or "path"
	Description string
	Schema      map[string]interface{}
}

// Operation is one GET endpoint. Path uses echo syntax (":id").
type Operation struct {
	ID          string
	Summary     string
	Description string
	Path        string
	Tag         string
	Parameters  []string
}

// Generator builds an OpenAPI 3.0 document from registered operations.
type Generator struct {
	title   string
	version string
	baseURL string
	ops     []Operation
	params  map[string]Parameter
}

// NewGenerator creates a new OpenAPI document generator.
func NewGenerator(title, version, baseURL string) *Generator {
	return &Generator{title: title, version: version, baseURL: baseURL, params: make(map[string]Parameter)}
}

// DefineParameter registers a parameter that operations refer to by name.
func (g *Generator) DefineParameter(p Parameter) {
	if p.In == "" {
		p.In = "query"
	}
	if p.Schema == nil {
		p.Schema = map[string]interface{}{"type": "string"}
	}
	g.params[p.Name] = p
}

// AddOperation registers a GET operation.
func (g *Generator) AddOperation(op Operation) {
	g.ops = append(g.ops, op)
}

// OpenAPIPath converts echo path parameters to OpenAPI templates.
func OpenAPIPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

func pathParams(path string) []string {
	var out []string
	for _, p := range strings.Split(path, "/") {
		if strings.HasPrefix(p, ":") {
			out = append(out, p[1:])
		}
	}
	return out
}

// Document builds the OpenAPI 3.0 document as a map.
func (g *Generator) Document() map[string]interface{} {
	paths := make(map[string]interface{})
	tags := make(map[string]bool)

	for _, op := range g.ops {
		params := make([]map[string]interface{}, 0, len(op.Parameters)+1)
		inPath := make(map[string]bool)
		for _, name := range pathParams(op.Path) {
			inPath[name] = true
			p := g.lookup(name)
			params = append(params, map[string]interface{}{
				"name":        name,
				"in":          "path",
				"required":    true,
				"description": p.Description,
				"schema":      p.Schema,
			})
		}
		for _, name := range op.Parameters {
			if inPath[name] {
				continue
			}
			p := g.lookup(name)
			params = append(params, map[string]interface{}{
				"name":        name,
				"in":          p.In,
				"description": p.Description,
				"schema":      p.Schema,
			})
		}

		get := map[string]interface{}{
			"summary":     op.Summary,
			"description": op.Description,
			"operationId": op.ID,
			"parameters":  params,
			"security":    []map[string][]string{{"bearerAuth": {}}},
			"responses":   buildResponses(),
		}
		if op.Tag != "" {
			get["tags"] = []string{op.Tag}
			tags[op.Tag] = true
		}
		paths[OpenAPIPath(op.Path)] = map[string]interface{}{"get": get}
	}

	tagList := make([]map[string]string, 0, len(tags))
	for t := range tags {
		tagList = append(tagList, map[string]string{"name": t})
	}
	sort.Slice(tagList, func(i, j int) bool { return tagList[i]["name"] < tagList[j]["name"] })

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"tags":  tagList,
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]string{"type": "string"},
					},
				},
			},
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}

func (g *Generator) lookup(name string) Parameter {
	if p, ok := g.params[name]; ok {
		return p
	}
	return Parameter{Name: name, In: "query", Schema: map[string]interface{}{"type": "string"}}
}

func buildResponses() map[string]interface{} {
	errResp := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"description": desc,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"$ref": "#/components/schemas/Error"},
				},
			},
		}
	}
	return map[string]interface{}{
		"200": map[string]interface{}{
			"description": "Report payload",
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"type": "object"},
				},
			},
		},
		"400": errResp("Invalid parameter"),
		"401": errResp("Missing or invalid token"),
		"403": errResp("Administrative access required"),
		"500": errResp("Report generation failed"),
	}
}

// RegisterRoutes serves the document at /openapi.json under apiGroup.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.Document())
	})
}
