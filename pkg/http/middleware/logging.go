package middleware

import (
	"time"

	applogger "ExecGuard/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs each request at debug level and client errors at warn.
func RequestLogging(log *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeOf(c)),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency", time.Since(start)),
				applogger.String("remote", c.RealIP()),
			}
			if err != nil {
				fields = append(fields, applogger.Error(err))
			}
			if c.Response().Status >= 400 && c.Response().Status < 500 {
				log.Warn("http request rejected", fields...)
			} else {
				log.Debug("http request", fields...)
			}
			return err
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}
