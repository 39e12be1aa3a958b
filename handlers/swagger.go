package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>rubberband Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the public endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "rubberband", "version": "v0.1.0" },
  "paths": {
    "/add": {
      "post": {
        "summary": "Index a document for a site",
        "parameters": [
          {"name":"secret","in":"query","required":true,"schema":{"type":"string"}},
          {"name":"path","in":"query","required":true,"schema":{"type":"string"}},
          {"name":"format","in":"query","required":true,"schema":{"type":"string","enum":["plaintext","markdown","html"]}},
          {"name":"hash","in":"query","schema":{"type":"string"}},
          {"name":"modified","in":"query","schema":{"type":"string"}}
        ],
        "requestBody": { "content": { "text/plain": { "schema": {"type":"string"} } } },
        "responses": { "200": { "description": "stored or deduplicated" }, "400": { "description": "validation failed" }, "401": { "description": "unknown secret" } }
      }
    },
    "/remove": {
      "post": {
        "summary": "Unindex a path, or the whole site when path is omitted",
        "parameters": [
          {"name":"secret","in":"query","required":true,"schema":{"type":"string"}},
          {"name":"path","in":"query","schema":{"type":"string"}}
        ],
        "responses": { "200": { "description": "removed" }, "401": { "description": "unknown secret" } }
      }
    },
    "/{slug}": {
      "get": {
        "summary": "Search one site's index",
        "parameters": [
          {"name":"slug","in":"path","required":true,"schema":{"type":"string"}},
          {"name":"q","in":"query","schema":{"type":"string"}},
          {"name":"sort","in":"query","schema":{"type":"string","enum":["datetime","matches"]}},
          {"name":"order","in":"query","schema":{"type":"string","enum":["asc","desc"]}}
        ],
        "responses": { "200": { "description": "page list" }, "404": { "description": "unknown site" } }
      }
    },
    "/search": {
      "get": {
        "summary": "Context-driven search (CORS consumers and platform users)",
        "parameters": [
          {"name":"site","in":"query","schema":{"type":"string"}},
          {"name":"q","in":"query","schema":{"type":"string"}}
        ],
        "responses": { "200": { "description": "results" }, "404": { "description": "unknown site" } }
      }
    },
    "/api/v1/sites": {
      "post": { "summary": "Register a site", "responses": { "201": { "description": "site with write secret" } } },
      "get": { "summary": "List the caller's sites", "responses": { "200": { "description": "site list" } } }
    },
    "/auth/login": {
      "post": {
        "summary": "Exchange a verified id_token for service tokens",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"id_token":{"type":"string"}}}}}},
        "responses": { "200": { "description": "tokens returned" }, "401": { "description": "invalid id token" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
