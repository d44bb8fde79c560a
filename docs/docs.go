// Package docs は swag 形式の API ドキュメント。
// ハンドラの godoc 注釈を変えたら `swag init -g main.go` で再生成する。
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/requests": {
            "get":  {"tags": ["requests"], "summary": "貸出申請一覧", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["requests"], "summary": "貸出申請", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "404": {"description": "BOOK_NOT_FOUND"}, "409": {"description": "DUPLICATE_REQUEST"}}}
        },
        "/requests/{key}": {
            "get": {"tags": ["requests"], "summary": "貸出申請取得", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "REQUEST_NOT_FOUND"}}},
            "put": {"tags": ["requests"], "summary": "申請ステータス更新（admin）", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "INVALID_ARGUMENT"}, "404": {"description": "REQUEST_NOT_FOUND"}}}
        },
        "/issues": {
            "get":  {"tags": ["issues"], "summary": "貸出一覧", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["issues"], "summary": "貸出登録（admin）", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "404": {"description": "COPY_NOT_FOUND"}, "409": {"description": "COPY_UNAVAILABLE"}}}
        },
        "/issues/{key}": {
            "get": {"tags": ["issues"], "summary": "貸出取得", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "ISSUE_NOT_FOUND"}}}
        },
        "/issues/{key}/return": {
            "post": {"tags": ["issues"], "summary": "返却（admin）", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "ISSUE_NOT_FOUND"}, "409": {"description": "ALREADY_RETURNED"}}}
        },
        "/exports/issues.csv": {
            "get": {"tags": ["issues"], "summary": "貸出履歴 CSV（admin）", "produces": ["text/csv"], "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "encoding", "in": "query", "enum": ["utf8", "utf8bom", "sjis"]}], "responses": {"200": {"description": "OK"}}}
        },
        "/copies/{id}/status": {
            "patch": {"tags": ["copies"], "summary": "蔵書ステータス変更（admin）", "security": [{"BearerAuth": []}], "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "COPY_NOT_FOUND"}, "409": {"description": "INVALID_TRANSITION"}}}
        },
        "/publishers": {
            "get":  {"tags": ["catalog"], "summary": "出版社一覧", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["catalog"], "summary": "出版社登録（admin）", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "CONFLICT"}}}
        },
        "/authors": {
            "get":  {"tags": ["catalog"], "summary": "著者一覧", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["catalog"], "summary": "著者登録（admin）", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/books": {
            "get":  {"tags": ["catalog"], "summary": "書籍一覧", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["catalog"], "summary": "書籍登録（admin）", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "400": {"description": "INVALID_ARGUMENT"}, "409": {"description": "CONFLICT"}}}
        },
        "/books/{id}": {
            "get": {"tags": ["catalog"], "summary": "書籍取得", "security": [{"BearerAuth": []}], "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "NOT_FOUND"}}}
        },
        "/copies": {
            "get":  {"tags": ["catalog"], "summary": "蔵書一覧", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["catalog"], "summary": "蔵書登録（admin）", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "404": {"description": "NOT_FOUND"}}}
        },
        "/copies/{id}": {
            "get": {"tags": ["catalog"], "summary": "蔵書取得", "security": [{"BearerAuth": []}], "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "NOT_FOUND"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "LIBRA circulation API",
	Description:      "蔵書の貸出申請・貸出・返却・延滞罰金を扱う API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
