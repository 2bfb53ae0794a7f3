// Package middleware provides Echo middleware for the relay: CORS headers,
// request logging, metrics, hop-by-hop stripping, body and rate limits.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"cors-relay/internal/metrics"
)

// RequestLogger returns an Echo middleware that writes one log entry per
// relayed request. Only the path is logged; query strings of relayed URLs may
// carry tokens. Server-side failures are logged at warn level together with
// the handler error.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()
			status := responseStatus(c, err)

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("route", metrics.NormalizeRoute(c.Path())),
				slog.Int("status", status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				slog.String("remote_ip", c.RealIP()),
				slog.String("origin", req.Header.Get(echo.HeaderOrigin)),
				slog.Int64("bytes_in", req.ContentLength),
				slog.Int64("bytes_out", res.Size),
			}

			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelWarn
			}
			if err != nil {
				attrs = append(attrs, slog.String("err", err.Error()))
			}

			logger.LogAttrs(req.Context(), level, "request", attrs...)
			return err
		}
	}
}
