// Package docs holds the swagger registration generated by swag init.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "List runs",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Start a pipeline run",
                "responses": {
                    "202": {"description": "Run accepted"}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/runs/{id}/errors": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run errors",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/reports/quality": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Data quality report",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/reports/summary": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Pipeline summary statistics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/rollups/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rollups"],
                "summary": "Read one rollup",
                "parameters": [
                    {"type": "string", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Orders Pipeline API",
	Description:      "Batch ETL pipeline for transactional order records",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
