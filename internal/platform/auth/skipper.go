package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass practitioner authentication entirely.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/api/patient/login": true,
	"/api/nutrition":     true,
}

// AuthSkipper returns true for requests that must not go through
// practitioner authentication: public endpoints and the patient portal,
// which carries its own session tokens.
func AuthSkipper(c echo.Context) bool {
	path := c.Path()
	if path == "" {
		path = c.Request().URL.Path
	}
	return IsPublicPath(path) || strings.HasPrefix(path, "/api/patient/")
}

// IsPublicPath reports whether the given path is a public endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
