package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/metric"

	"github.com/storacha/cloud-mirror/pkg/telemetry"
)

// LoggerMiddleware logs one line per request.
func LoggerMiddleware() echo.MiddlewareFunc {
	return middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format:           "[${time_rfc3339}] ${status} ${method} ${uri} ${latency_human}\n",
		CustomTimeFormat: time.RFC3339,
	})
}

// RecoverMiddleware recovers panics in handlers into a 500 response.
func RecoverMiddleware() echo.MiddlewareFunc {
	return middleware.Recover()
}

// MetricsMiddleware records the HTTP server metrics declared in
// pkg/telemetry/metrics.go for every request.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqSize := c.Request().ContentLength

			err := next(c)

			attrs := metric.WithAttributes(
				telemetry.StringAttr("method", c.Request().Method),
				telemetry.StringAttr("route", c.Path()),
				telemetry.StringAttr("status", strconv.Itoa(c.Response().Status)),
			)

			ctx := c.Request().Context()
			telemetry.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			telemetry.HTTPRequestsTotal.Add(ctx, 1, attrs)
			if reqSize > 0 {
				telemetry.HTTPRequestSize.Record(ctx, float64(reqSize), attrs)
			}
			if size := c.Response().Size; size > 0 {
				telemetry.HTTPResponseSize.Record(ctx, float64(size), attrs)
			}
			return err
		}
	}
}
