package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	cases := map[string]int64{
		"1M":     1 << 20,
		"64K":    64 << 10,
		"64KB":   64 << 10,
		"1G":     1 << 30,
		"2048":   2048,
		"":       1 << 20,
		"lots":   1 << 20,
		"-5K":    1 << 20,
		" 512k ": 512 << 10,
		"10mb":   10 << 20,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLimit(in), in)
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", bytes.NewReader(make([]byte, 2048)))
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := BodyLimit("1K")(func(echo.Context) error {
		called = true
		return nil
	})(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusRequestEntityTooLarge, he.Code)
	assert.False(t, called)
}

func TestBodyLimit_RejectsWhileReading(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", bytes.NewReader(make([]byte, 2048)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	err := BodyLimit("1K")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusRequestEntityTooLarge, he.Code)
}

func TestBodyLimit_AllowsSmallBodies(t *testing.T) {
	e := echo.New()
	body := []byte(`{"name":"Ravi Kumar"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", bytes.NewReader(body))
	c := e.NewContext(req, httptest.NewRecorder())

	var got []byte
	err := BodyLimit("1K")(func(c echo.Context) error {
		var err error
		got, err = io.ReadAll(c.Request().Body)
		return err
	})(c)

	require.NoError(t, err)
	assert.Equal(t, body, got)
}
