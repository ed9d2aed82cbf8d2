// Package docs registers the OpenAPI description served at /swagger.
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
        "/tournaments": {
            "get": {"tags": ["tournaments"], "summary": "List tournaments", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["tournaments"], "summary": "Create a tournament", "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "409": {"description": "Name already taken"}, "422": {"description": "Validation failed"}}}
        },
        "/tournaments/{tournamentID}": {
            "get": {"tags": ["tournaments"], "summary": "Tournament with participants and bracket", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["tournaments"], "summary": "Update a pending tournament", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/tournaments/{tournamentID}/activate": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["tournaments"], "summary": "Close registration and build the bracket", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Fewer than two participants"}, "409": {"description": "Tournament is not pending"}}}
        },
        "/tournaments/{tournamentID}/status": {
            "get": {"tags": ["tournaments"], "summary": "Tournament status and winner", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/tournaments/{tournamentID}/bracket": {
            "get": {"tags": ["tournaments"], "summary": "Bracket grouped by round", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/tournaments/{tournamentID}/logo": {
            "put": {"security": [{"BearerAuth": []}], "consumes": ["multipart/form-data"], "tags": ["tournaments"], "summary": "Upload a tournament logo", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}, {"type": "file", "name": "logo", "in": "formData", "required": true}], "responses": {"200": {"description": "OK"}, "503": {"description": "Storage not configured"}}}
        },
        "/tournaments/{tournamentID}/participants": {
            "get": {"tags": ["participants"], "summary": "Participants in registration order", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}, {"type": "string", "name": "status", "in": "query"}], "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["participants"], "summary": "Join a pending tournament as the current user", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "Already registered, full or not pending"}}}
        },
        "/tournaments/{tournamentID}/participants/me": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["participants"], "summary": "Leave a pending tournament", "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/matches/{matchID}/result": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["matches"], "summary": "Report the score of a scheduled match", "parameters": [{"type": "integer", "name": "matchID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Already resolved or not playable"}, "422": {"description": "Draw or negative score"}}}
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
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Pong Tournaments API",
	Description:      "Single-elimination Pong tournaments: registration, brackets and results.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
