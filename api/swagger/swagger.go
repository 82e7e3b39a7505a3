package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ArkMesh API",
        "description": "Crowdsourced heritage reconstruction: contribution intake, run lifecycle and ARK resolution",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Meshes", "description": "Monument mesh catalogue"},
        {"name": "Contributions", "description": "Photo contribution intake and curation"},
        {"name": "Contributors", "description": "Contributor registry"},
        {"name": "Runs", "description": "Reconstruction run lifecycle"},
        {"name": "ARK", "description": "Archival identifier resolution"},
        {"name": "Auth", "description": "Operator authentication"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/ark/{ark}": {
            "get": {
                "tags": ["ARK"],
                "summary": "Resolve an ARK to its bound record",
                "parameters": [
                    {"name": "ark", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown ARK"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate an operator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/meshes": {
            "get": {
                "tags": ["Meshes"],
                "summary": "List publicly visible meshes",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/meshes/{id}": {
            "get": {
                "tags": ["Meshes"],
                "summary": "Get mesh by ID or verbose ID",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/meshes/{id}/runs": {
            "get": {
                "tags": ["Runs"],
                "summary": "List runs for a mesh",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/meshes/{id}/contributions": {
            "post": {
                "tags": ["Contributions"],
                "summary": "Submit a photo contribution",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "contributor_id", "in": "formData", "required": true, "type": "string"},
                    {"name": "images", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Intake closed or contributor banned"}
                }
            }
        },
        "/api/v1/contributions/{id}": {
            "get": {
                "tags": ["Contributions"],
                "summary": "Get contribution detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/contributors": {
            "post": {
                "tags": ["Contributors"],
                "summary": "Register a contributor",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterContributorRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/api/v1/contributors/{id}": {
            "get": {
                "tags": ["Contributors"],
                "summary": "Get contributor",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Get run detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/{id}/citation": {
            "get": {
                "tags": ["Runs"],
                "summary": "Download the citation record for an archived run",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF citation"},
                    "409": {"description": "Run is not archived"}
                }
            }
        },
        "/api/v1/admin/meshes": {
            "get": {
                "tags": ["Meshes"],
                "summary": "List meshes with filters",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "completed", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Meshes"],
                "summary": "Register a mesh",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateMeshRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate name at location"}
                }
            }
        },
        "/api/v1/admin/meshes/{id}/runs": {
            "post": {
                "tags": ["Runs"],
                "summary": "Start a reconstruction run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/StartRunRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run already in flight or too few usable images"}
                }
            }
        },
        "/api/v1/admin/images/{id}/label": {
            "put": {
                "tags": ["Contributions"],
                "summary": "Label a contributed image",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LabelImageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/ark/{ark}": {
            "put": {
                "tags": ["ARK"],
                "summary": "Correct the URL and metadata bound to an ARK",
                "parameters": [
                    {"name": "ark", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBindingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateMeshRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "country": {"type": "string"},
                "state": {"type": "string"},
                "district": {"type": "string"},
                "center_image": {"type": "string"},
                "rota_x": {"type": "integer"},
                "rota_y": {"type": "integer"},
                "rota_z": {"type": "integer"}
            },
            "required": ["name", "country", "state", "district"]
        },
        "RegisterContributorRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"}
            },
            "required": ["name", "email"]
        },
        "StartRunRequest": {
            "type": "object",
            "properties": {
                "rota_x": {"type": "integer"},
                "rota_y": {"type": "integer"},
                "rota_z": {"type": "integer"}
            }
        },
        "LabelImageRequest": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "remark": {"type": "string"}
            },
            "required": ["label"]
        },
        "UpdateBindingRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "metadata": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
