package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Resident Survey API",
        "description": "Survey submission backend: sessions, email verification, comment moderation and public statistics",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Survey", "description": "Session lifecycle and identity checks"},
        {"name": "Verification", "description": "Email one-time codes"},
        {"name": "Comments", "description": "Published comments and likes"},
        {"name": "Stats", "description": "Public aggregates"},
        {"name": "Admin", "description": "Operator endpoints (JWT protected)"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
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
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/survey/sessions": {
            "post": {
                "tags": ["Survey"],
                "summary": "Create or resume a survey session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/survey/questions": {
            "get": {
                "tags": ["Survey"],
                "summary": "List the survey questions in display order",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/survey/check-unique": {
            "post": {
                "tags": ["Survey"],
                "summary": "Check identity values against completed submissions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IdentityQuery"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/survey/check-unfinished": {
            "post": {
                "tags": ["Survey"],
                "summary": "Find an unfinished session for the given identity values",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IdentityQuery"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/survey/base": {
            "post": {
                "tags": ["Survey"],
                "summary": "Submit the identity and consent step",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BaseStepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Survey already submitted"}
                }
            }
        },
        "/survey/details": {
            "post": {
                "tags": ["Survey"],
                "summary": "Submit the final step and complete the survey",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DetailsStepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Session not found"},
                    "409": {"description": "Duplicate completed submission"}
                }
            }
        },
        "/survey/send-code": {
            "post": {
                "tags": ["Verification"],
                "summary": "Issue a verification code by email",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendCodeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Code sent"},
                    "429": {"description": "Resend interval not elapsed"},
                    "502": {"description": "Mail delivery failed"}
                }
            }
        },
        "/survey/verify-code": {
            "post": {
                "tags": ["Verification"],
                "summary": "Verify a previously issued code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyCodeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Verified"},
                    "400": {"description": "Invalid code"},
                    "410": {"description": "Code expired"}
                }
            }
        },
        "/survey/resend-allowance": {
            "get": {
                "tags": ["Verification"],
                "summary": "Check whether a new code may be requested",
                "parameters": [
                    {"name": "email", "in": "query", "required": true, "type": "string"},
                    {"name": "session_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/survey/comments": {
            "get": {
                "tags": ["Comments"],
                "summary": "List published comments ordered by likes",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/survey/comments/{answerId}/like": {
            "post": {
                "tags": ["Comments"],
                "summary": "Like a published comment",
                "parameters": [
                    {"name": "answerId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Comment is not published"},
                    "404": {"description": "Comment not found"}
                }
            }
        },
        "/stats/summary": {
            "get": {
                "tags": ["Stats"],
                "summary": "Aggregate answer distributions over completed submissions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/answers/{id}/moderation": {
            "patch": {
                "tags": ["Admin"],
                "summary": "Override the moderation flag on an answer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ModerationOverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid token"},
                    "404": {"description": "Answer not found"}
                }
            }
        },
        "/admin/export/responses.csv": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export all completed submissions as CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV payload"},
                    "401": {"description": "Missing or invalid token"}
                }
            }
        },
        "/admin/consents/{filename}": {
            "get": {
                "tags": ["Admin"],
                "summary": "Download a stored consent-proof blob",
                "security": [{"BearerAuth": []}],
                "produces": ["image/png"],
                "parameters": [
                    {"name": "filename", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PNG payload"},
                    "401": {"description": "Missing or invalid token"},
                    "404": {"description": "Consent blob not found"}
                }
            }
        }
    },
    "definitions": {
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"}
            }
        },
        "IdentityQuery": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "cadastral": {"type": "string"}
            }
        },
        "AnswerInput": {
            "type": "object",
            "properties": {
                "question_id": {"type": "integer"},
                "value": {"type": "string"}
            },
            "required": ["question_id"]
        },
        "BaseStepRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "answers": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AnswerInput"}
                },
                "consent": {"type": "boolean"},
                "screenshot": {"type": "string"}
            },
            "required": ["session_id", "answers", "consent"]
        },
        "DetailsStepRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "answers": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AnswerInput"}
                }
            },
            "required": ["session_id", "answers"]
        },
        "SendCodeRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "session_id": {"type": "string"}
            },
            "required": ["email", "session_id"]
        },
        "VerifyCodeRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "code": {"type": "string"},
                "session_id": {"type": "string"}
            },
            "required": ["email", "code", "session_id"]
        },
        "ModerationOverrideRequest": {
            "type": "object",
            "properties": {
                "moderated": {"type": "boolean"}
            },
            "required": ["moderated"]
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
                "pagination": {"type": "object"},
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
