package web

import (
	"strconv"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// SecurityHeadersMiddleware adds security headers to responses. Decrypted
// content passes through some of them, so nothing may be cached.
func SecurityHeadersMiddleware(c rweb.Context) error {
	c.Response().SetHeader("X-Content-Type-Options", "nosniff")
	c.Response().SetHeader("X-Frame-Options", "DENY")
	c.Response().SetHeader("Referrer-Policy", "no-referrer")
	c.Response().SetHeader("Cache-Control", "no-store")
	c.Response().SetHeader("Content-Security-Policy", "default-src 'none'")
	return c.Next()
}

// LoggingMiddleware logs method, path and duration. Bodies carry passwords
// and are never logged.
func LoggingMiddleware(c rweb.Context) error {
	start := time.Now()
	err := c.Next()
	logger.Debug("Request completed",
		"method", c.Request().Method(),
		"path", c.Request().Path(),
		"duration_ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10),
	)
	return err
}
