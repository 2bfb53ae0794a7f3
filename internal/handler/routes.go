package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cors-relay/internal/config"
	"cors-relay/internal/metrics"
)

// routedMethods are the methods echo's Any registers. Requests with any
// other method never match a route.
var routedMethods = map[string]bool{
	echo.CONNECT:  true,
	echo.DELETE:   true,
	echo.GET:      true,
	echo.HEAD:     true,
	echo.OPTIONS:  true,
	echo.PATCH:    true,
	echo.POST:     true,
	echo.PROPFIND: true,
	echo.PUT:      true,
	echo.TRACE:    true,
	echo.REPORT:   true,
}

// RegisterRoutes wires all route handlers onto the Echo instance. Operator
// routes are dot-free, so they never shadow a relay target.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, relay *RelayHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/relay/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any("/*", relay.Handle)
	e.Use(relayUnroutedMethods(relay))
}

// relayUnroutedMethods hands requests whose method the router does not know
// (PURGE, MKCOL, LINK, ...) to the relay handler instead of the router's 405.
func relayUnroutedMethods(relay *RelayHandler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !routedMethods[c.Request().Method] {
				return relay.Handle(c)
			}
			return next(c)
		}
	}
}
