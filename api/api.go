// Package api holds the OpenAPI document served under /swagger.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
