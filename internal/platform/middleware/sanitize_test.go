package middleware

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_Rejects(t *testing.T) {
	cases := map[string]string{
		"traversal":        "/api/v1/visits/../admin",
		"encoded":          "/api/v1/visits/%2e%2e/admin",
		"null byte query":  "/api/v1/patients?q=ravi%00",
		"script in query":  "/api/v1/patients?q=%3Cscript%3Ealert(1)",
		"javascript query": "/api/v1/patients?q=javascript:alert(1)",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newCtx(http.MethodGet, target)
			err := Sanitize(zerolog.Nop())(ok)(c)

			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, http.StatusBadRequest, he.Code)
		})
	}
}

func TestSanitize_HeaderChecks(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/api/v1/patients")
	c.Request().Header.Set("X-Note", string(bytes.Repeat([]byte("a"), maxHeaderValueSize+1)))
	assert.Error(t, Sanitize(zerolog.Nop())(ok)(c))

	c, _ = newCtx(http.MethodGet, "/api/v1/patients")
	c.Request().Header["X-Note"] = []string{"a\r\nSet-Cookie: x=1"}
	assert.Error(t, Sanitize(zerolog.Nop())(ok)(c))
}

func TestSanitize_LogsSQLPatternButPasses(t *testing.T) {
	var buf bytes.Buffer
	c, rec := newCtx(http.MethodGet, "/api/v1/patients?q=%27%20OR%201%3D1")

	require.NoError(t, Sanitize(zerolog.New(&buf))(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "suspicious query parameter")
}

func TestSanitize_PassesOrdinaryRequests(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/api/v1/patients/duplicates?name=Ravi+Kumar&phone=98765+43210")
	require.NoError(t, Sanitize(zerolog.Nop())(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
