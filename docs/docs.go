// Package docs registers the OpenAPI document served at /swagger/doc.json.
// Regenerate with: swag init -g main.go
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
        "/api/v1/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check",
                "responses": {
                    "200": {"description": "Service is healthy", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "503": {"description": "A dependency is unavailable", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/register": {
            "post": {
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "Register",
                "parameters": [{"description": "Registration data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "User registered", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Phone already registered", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/login": {
            "post": {
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "Login",
                "parameters": [{"description": "Login credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.LoginRequest"}}],
                "responses": {
                    "200": {"description": "Login successful", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "Logout",
                "responses": {"200": {"description": "Logged out", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            }
        },
        "/api/v1/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "Identity", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "List messages",
                "parameters": [
                    {"type": "integer", "description": "Page size (max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Messages", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Schedule message",
                "parameters": [{"description": "Message data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreateMessageRequest"}}],
                "responses": {
                    "201": {"description": "Message accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/messages/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Messages"],
                "summary": "Export messages",
                "responses": {"200": {"description": "Workbook", "schema": {"type": "file"}}}
            }
        },
        "/api/v1/internal/messages/{message_id}/status": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Internal"],
                "summary": "Report delivery status",
                "parameters": [
                    {"type": "string", "description": "Worker API key", "name": "X-API-Key", "in": "header", "required": true},
                    {"type": "string", "description": "Message ID", "name": "message_id", "in": "path", "required": true},
                    {"description": "Outcome", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ReportStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "Status recorded", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Message not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Status conflict", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorDetail"}
            }
        },
        "dto.ErrorDetail": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "details": {}}
        },
        "dto.RegisterRequest": {
            "type": "object",
            "required": ["first_name", "phone", "password"],
            "properties": {
                "first_name": {"type": "string", "example": "Maria"},
                "last_name": {"type": "string", "example": "Silva"},
                "phone": {"type": "string", "example": "11999990000"},
                "password": {"type": "string", "example": "secret123"}
            }
        },
        "dto.LoginRequest": {
            "type": "object",
            "required": ["phone", "password"],
            "properties": {
                "phone": {"type": "string", "example": "11999990000"},
                "password": {"type": "string", "example": "secret123"}
            }
        },
        "dto.CreateMessageRequest": {
            "type": "object",
            "required": ["recipient_phone", "message", "event_date", "reminder_days"],
            "properties": {
                "recipient_phone": {"type": "string", "example": "11988887777"},
                "message": {"type": "string", "example": "Happy birthday!"},
                "event_date": {"type": "string", "example": "2025-12-25"},
                "reminder_days": {"type": "integer", "example": 5}
            }
        },
        "dto.ReportStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["Sent", "Failed"]}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Future Messages API",
	Description:      "Schedules text messages for delivery ahead of an event date.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
