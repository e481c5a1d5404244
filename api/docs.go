// Package api embeds the OpenAPI document served by the HTTP server.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3 description of the users API
//
//go:embed openapi.json
var OpenAPI []byte
