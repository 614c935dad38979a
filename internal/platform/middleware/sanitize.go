package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxHeaderValueSize = 8192

var (
	sqlPattern    = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1)`)
	scriptPattern = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize rejects requests carrying path traversal, null bytes, header
// injection or script payloads in the query string. Query values that look
// like SQL injection are only logged; every query goes through bound
// parameters anyway.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			raw := req.URL.RawPath
			if raw == "" {
				raw = path
			}

			if hasTraversal(path) || hasTraversal(raw) {
				return rejected("path traversal detected")
			}
			if hasNullByte(path) || hasNullByte(raw) {
				return rejected("null byte in path")
			}

			for name, values := range req.Header {
				for _, v := range values {
					if len(v) > maxHeaderValueSize {
						return rejected("header too large: " + name)
					}
					if strings.ContainsAny(v, "\r\n") {
						return rejected("header injection detected: " + name)
					}
				}
			}

			for key, values := range req.URL.Query() {
				for _, v := range values {
					if hasNullByte(key) || hasNullByte(v) {
						return rejected("null byte in query parameter " + key)
					}
					if scriptPattern.MatchString(key) || scriptPattern.MatchString(v) {
						return rejected("script content in query parameter " + key)
					}
					if sqlPattern.MatchString(v) {
						logger.Warn().
							Str("param", key).
							Str("path", path).
							Str("remote_ip", c.RealIP()).
							Msg("suspicious query parameter")
					}
				}
			}

			return next(c)
		}
	}
}

func hasTraversal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(s, "..") || strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}

func rejected(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
