package middleware

import (
	"github.com/labstack/echo/v4"
)

const (
	allowOrigin  = "*"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"

	// defaultAllowHeaders is sent when the request names no headers of its own.
	defaultAllowHeaders = "Accept, Authorization, Cache-Control, Content-Type, DNT, If-Modified-Since, Keep-Alive, Origin, User-Agent, X-Requested-With, Token, x-access-token"
)

// CORSHeaders returns an Echo middleware that marks every response as
// readable from any origin. The headers are set before the handler runs, so
// responses produced by later middleware (body limit, rate limit, panics)
// carry them too.
//
// Access-Control-Allow-Headers echoes the request's own
// Access-Control-Allow-Headers value when present.
func CORSHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowHeaders := c.Request().Header.Get(echo.HeaderAccessControlAllowHeaders)
			if allowHeaders == "" {
				allowHeaders = defaultAllowHeaders
			}

			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, allowOrigin)
			h.Set(echo.HeaderAccessControlAllowMethods, allowMethods)
			h.Set(echo.HeaderAccessControlAllowHeaders, allowHeaders)

			return next(c)
		}
	}
}
