package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Competency API",
        "description": "Rubric versioning and competency grading service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Token issuance"},
        {"name": "Templates", "description": "Mutable rubric templates"},
        {"name": "Snapshots", "description": "Immutable rubric versions"},
        {"name": "Cohorts", "description": "Classes, rosters and snapshot binding"},
        {"name": "Evaluations", "description": "Answer recording, grading and finalization"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/templates": {
            "get": {
                "tags": ["Templates"],
                "summary": "List rubric templates",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Templates"],
                "summary": "Create a rubric template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/templates/{id}": {
            "get": {
                "tags": ["Templates"],
                "summary": "Get one template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Templates"],
                "summary": "Delete a template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/templates/{id}/structure": {
            "get": {
                "tags": ["Templates"],
                "summary": "Get capabilities, criteria and thresholds",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Templates"],
                "summary": "Replace the whole structure and regenerate thresholds",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportStructureRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/templates/{id}/capabilities": {
            "post": {
                "tags": ["Templates"],
                "summary": "Add a capability",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCapabilityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/capabilities/{id}/criteria": {
            "post": {
                "tags": ["Templates"],
                "summary": "Add a criterion to a capability",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCriterionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Snapshot structure is immutable"}
                }
            }
        },
        "/templates/{id}/thresholds": {
            "post": {
                "tags": ["Templates"],
                "summary": "Regenerate the threshold table from criterion counts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No critical criteria"}
                }
            }
        },
        "/templates/{id}/coverage-gaps": {
            "get": {
                "tags": ["Templates"],
                "summary": "List capabilities without a critical criterion",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/thresholds/preview": {
            "get": {
                "tags": ["Templates"],
                "summary": "Preview a threshold table for arbitrary counts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "critical", "in": "query", "required": true, "type": "integer"},
                    {"name": "desirable", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No critical criteria"}
                }
            }
        },
        "/templates/{id}/snapshots": {
            "get": {
                "tags": ["Snapshots"],
                "summary": "List snapshots cut from a template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Snapshots"],
                "summary": "Cut an immutable snapshot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Empty structure"}
                }
            }
        },
        "/snapshots/{id}": {
            "get": {
                "tags": ["Snapshots"],
                "summary": "Get a snapshot's frozen structure",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Snapshots"],
                "summary": "Delete an unused snapshot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/cohorts": {
            "get": {
                "tags": ["Cohorts"],
                "summary": "List cohorts visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Cohorts"],
                "summary": "Create a cohort",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveCohortRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cohorts/{id}": {
            "get": {
                "tags": ["Cohorts"],
                "summary": "Get one cohort with teachers and roster size",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Cohorts"],
                "summary": "Rename a cohort and replace its teachers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveCohortRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Cohorts"],
                "summary": "Delete a cohort",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/cohorts/{id}/snapshot": {
            "put": {
                "tags": ["Cohorts"],
                "summary": "Cut and bind a fresh snapshot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RebindSnapshotRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cohorts/{id}/students": {
            "get": {
                "tags": ["Cohorts"],
                "summary": "List the cohort roster",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Cohorts"],
                "summary": "Enroll one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cohorts/{id}/students/import": {
            "post": {
                "tags": ["Cohorts"],
                "summary": "Enroll a batch of students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportRosterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evaluations": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Record one evaluation answer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordEvaluationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "408": {"description": "Timed out, retry"},
                    "422": {"description": "Criterion mismatch"}
                }
            }
        },
        "/students/{id}/level": {
            "get": {
                "tags": ["Evaluations"],
                "summary": "Calculate a student's achieved level",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "snapshot_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/finalize": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Freeze a student's level against a snapshot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SnapshotReference"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No evaluations recorded"}
                }
            }
        },
        "/students/{id}/reopen": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Reopen a finalized pair",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SnapshotReference"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "422": {"description": "No evaluations recorded"}
                }
            }
        },
        "/cohorts/{id}/finalize": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Finalize every evaluated student of a cohort against a snapshot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SnapshotReference"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Cohort bound to a different snapshot"}
                }
            }
        },
        "/cohorts/{id}/report": {
            "get": {
                "tags": ["Evaluations"],
                "summary": "Cohort grading report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
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
        "CreateTemplateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "short_code": {"type": "string"}
            },
            "required": ["name", "short_code"]
        },
        "AddCapabilityRequest": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "kind": {"type": "string", "enum": ["TECHNICAL", "SOCIO_EMOTIONAL"]}
            },
            "required": ["description", "kind"]
        },
        "AddCriterionRequest": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "weight": {"type": "string", "enum": ["CRITICAL", "DESIRABLE"]}
            },
            "required": ["description", "weight"]
        },
        "ImportStructureRequest": {
            "type": "object",
            "properties": {
                "capabilities": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ImportCapability"}
                }
            },
            "required": ["capabilities"]
        },
        "ImportCapability": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "kind": {"type": "string", "enum": ["TECHNICAL", "SOCIO_EMOTIONAL"]},
                "criteria": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AddCriterionRequest"}
                }
            }
        },
        "SaveCohortRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "term_label": {"type": "string"},
                "teacher_ids": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["name", "term_label", "teacher_ids"]
        },
        "RebindSnapshotRequest": {
            "type": "object",
            "properties": {
                "template_id": {"type": "string"}
            },
            "required": ["template_id"]
        },
        "EnrollStudentRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "registration": {"type": "string"}
            },
            "required": ["full_name", "registration"]
        },
        "ImportRosterRequest": {
            "type": "object",
            "properties": {
                "students": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/EnrollStudentRequest"}
                }
            },
            "required": ["students"]
        },
        "RecordEvaluationRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "snapshot_id": {"type": "string"},
                "criterion_id": {"type": "string"},
                "satisfied": {"type": "boolean"},
                "note": {"type": "string"}
            },
            "required": ["student_id", "snapshot_id", "criterion_id"]
        },
        "SnapshotReference": {
            "type": "object",
            "properties": {
                "snapshot_id": {"type": "string"}
            },
            "required": ["snapshot_id"]
        },
        "LevelResult": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "student_name": {"type": "string"},
                "snapshot_id": {"type": "string"},
                "achieved_level": {"type": "integer"},
                "critical_met": {"type": "integer"},
                "desirable_met": {"type": "integer"},
                "total_critical": {"type": "integer"},
                "total_desirable": {"type": "integer"},
                "percent_complete": {"type": "number"},
                "finalized": {"type": "boolean"}
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
