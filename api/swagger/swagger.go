// Package swagger registers the OpenAPI description served at /swagger in
// non-production environments.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/reports/generate": {
            "post": {
                "tags": ["reports"],
                "summary": "Generate a report on demand",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports/export": {
            "post": {
                "tags": ["reports"],
                "summary": "Queue an asynchronous report export",
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/reports/export/{id}": {
            "get": {
                "tags": ["reports"],
                "summary": "Poll export job status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/scheduled-reports": {
            "get": {
                "tags": ["scheduled-reports"],
                "summary": "List scheduled reports",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["scheduled-reports"],
                "summary": "Create a scheduled report",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/scheduled-reports/{id}": {
            "get": {
                "tags": ["scheduled-reports"],
                "summary": "Get one scheduled report",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "patch": {
                "tags": ["scheduled-reports"],
                "summary": "Update a scheduled report",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["scheduled-reports"],
                "summary": "Delete a scheduled report",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/scheduled-reports/{id}/runs": {
            "get": {
                "tags": ["scheduled-reports"],
                "summary": "List recent runs for a schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/scheduler/tick": {
            "post": {
                "tags": ["scheduler"],
                "summary": "Execute all due scheduled reports",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "FinLink Reports API",
	Description:      "Report aggregation and scheduled report delivery for finance applications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
