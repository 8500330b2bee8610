package http

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// QueryDuration reads a Go duration query parameter ("90s", "2m") or returns def.
func QueryDuration(c echo.Context, name string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}
