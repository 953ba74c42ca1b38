// Package docs holds the OpenAPI document served at /docs. Regenerate it with
// `swag init -g cmd/imaged/docs.go -o internal/httpapi/docs` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "imaged maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/generate": {
            "post": {
                "description": "Omitted fields take their defaults (image_size 1024, denoising_steps 50, cfg_scale 5.0, seed 42).\nThe first call after an idle period loads the model first. Send Accept: image/png to get the bytes directly.",
                "consumes": ["application/json"],
                "produces": ["application/json", "image/png"],
                "tags": ["generate"],
                "summary": "Generate an image",
                "parameters": [
                    {
                        "description": "Generation parameters",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.GenerationRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/idle-timeout": {
            "get": {
                "produces": ["application/json"],
                "tags": ["lifecycle"],
                "summary": "Current idle timeout",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.IdleTimeoutResponse"}}
                }
            },
            "put": {
                "description": "Applies process-wide from the next reclamation tick. Negative disables reclamation.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lifecycle"],
                "summary": "Change the idle timeout",
                "parameters": [
                    {
                        "description": "New timeout",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.IdleTimeoutRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.IdleTimeoutResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/images": {
            "get": {
                "description": "Newest first.",
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "List generated images",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ImagesResponse"}}
                }
            }
        },
        "/api/images/{filename}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Describe a generated image",
                "parameters": [
                    {"type": "string", "description": "Image file name", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ImageInfo"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/outputs/{filename}": {
            "get": {
                "produces": ["image/png"],
                "tags": ["images"],
                "summary": "Download a generated image",
                "parameters": [
                    {"type": "string", "description": "Image file name", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Slot state, idle countdown, in-flight claims and lifetime counters.",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Lifecycle status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "detail": {"type": "string", "example": "invalid JSON body"},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "duration_ms": {"type": "integer", "example": 5400},
                "filename": {"type": "string", "example": "output_1700000000_1a2b3c4d.png"},
                "image": {"type": "string", "example": "/outputs/output_1700000000_1a2b3c4d.png"},
                "seed": {"type": "integer", "example": 42},
                "status": {"type": "string", "example": "success"}
            }
        },
        "types.GenerationRequest": {
            "type": "object",
            "properties": {
                "cfg_scale": {"type": "number", "example": 5},
                "denoising_steps": {"type": "integer", "example": 50},
                "image_size": {"type": "integer", "example": 1024},
                "negative_prompt": {"type": "string", "example": "blurry"},
                "prompt": {"type": "string", "example": "a cat sitting on a windowsill"},
                "seed": {"type": "integer", "example": 42}
            }
        },
        "types.IdleTimeoutRequest": {
            "type": "object",
            "properties": {
                "seconds": {"type": "integer", "example": 300}
            }
        },
        "types.IdleTimeoutResponse": {
            "type": "object",
            "properties": {
                "seconds": {"type": "integer", "example": 300}
            }
        },
        "types.ImageInfo": {
            "type": "object",
            "properties": {
                "created_unix": {"type": "integer", "example": 1700000000},
                "filename": {"type": "string", "example": "output_1700000000_1a2b3c4d.png"},
                "request": {"$ref": "#/definitions/types.GenerationRequest"},
                "size_bytes": {"type": "integer", "example": 1048576},
                "url": {"type": "string", "example": "/outputs/output_1700000000_1a2b3c4d.png"}
            }
        },
        "types.ImagesResponse": {
            "type": "object",
            "properties": {
                "images": {"type": "array", "items": {"$ref": "#/definitions/types.ImageInfo"}}
            }
        },
        "types.ModelSource": {
            "type": "object",
            "properties": {
                "encoder": {"type": "string"},
                "model": {"type": "string"},
                "vae": {"type": "string"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "generation_failures_total": {"type": "integer", "example": 1},
                "generations_total": {"type": "integer", "example": 40},
                "idle_remaining_seconds": {"type": "integer", "example": 120},
                "idle_timeout_seconds": {"type": "integer", "example": 300},
                "inflight": {"type": "integer", "example": 1},
                "last_error": {"type": "string"},
                "last_used_unix": {"type": "integer", "example": 1700000300},
                "load_failures_total": {"type": "integer", "example": 0},
                "loaded": {"type": "boolean", "example": true},
                "loaded_at_unix": {"type": "integer", "example": 1700000000},
                "loads_total": {"type": "integer", "example": 3},
                "max_concurrent_compute": {"type": "integer", "example": 1},
                "reclaims_total": {"type": "integer", "example": 2},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "source": {"$ref": "#/definitions/types.ModelSource"},
                "state": {"type": "string", "example": "ready"},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "imaged API",
	Description:      "Text-to-image generation over a lazily loaded, idle-reclaimed model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
