package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// BodyLimit returns Echo's body limit middleware capped at maxBytes. Larger
// bodies are answered with 413 instead of being relayed.
func BodyLimit(maxBytes int64) echo.MiddlewareFunc {
	return echomw.BodyLimit(fmt.Sprintf("%dB", maxBytes))
}
