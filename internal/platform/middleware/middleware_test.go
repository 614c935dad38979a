package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCtx(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(method, target, nil), rec), rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	var seen string
	err := RequestID()(func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return ok(c)
	})(c)

	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_PreservesExisting(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, "desk-7-0001")
	require.NoError(t, RequestID()(ok)(c))
	assert.Equal(t, "desk-7-0001", c.Get("request_id"))
	assert.Equal(t, "desk-7-0001", rec.Header().Get(RequestIDHeader))
}

func TestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	c, _ := newCtx(http.MethodGet, "/api/v1/visits/x")
	err := Logger(logger)(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "visit x: not found")
	})(c)
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"status":404`)

	buf.Reset()
	c, _ = newCtx(http.MethodGet, "/health")
	require.NoError(t, Logger(logger)(ok)(c))
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newCtx(http.MethodGet, "/panic")
	err := Recovery(zerolog.New(&buf))(func(echo.Context) error { panic("bed table corrupted") })(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Contains(t, buf.String(), "bed table corrupted")
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/ok")
	require.NoError(t, Recovery(zerolog.Nop())(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2}))
	e.GET("/", ok)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		e.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestLimiter_Refills(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	l.now = func() time.Time { return now }

	allowed, _ := l.take("k")
	assert.True(t, allowed)
	allowed, wait := l.take("k")
	assert.False(t, allowed)
	assert.Equal(t, 1, wait)

	now = now.Add(time.Second)
	allowed, _ = l.take("k")
	assert.True(t, allowed)
}

func TestRequestTimeout(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/api/v1/visits")
	err := RequestTimeout(10 * time.Millisecond)(func(c echo.Context) error {
		<-c.Request().Context().Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusGatewayTimeout, he.Code)

	c, _ = newCtx(http.MethodGet, "/ws")
	require.NoError(t, RequestTimeout(time.Nanosecond)(func(c echo.Context) error {
		_, has := c.Request().Context().Deadline()
		assert.False(t, has)
		return nil
	})(c))
}

func TestRequestTimeout_FastHandler(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/api/v1/visits")
	require.NoError(t, RequestTimeout(time.Second)(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSplitAuditPath(t *testing.T) {
	id := "6f1c2a4e-9a51-4d7b-9f3c-0b4f1f6d2e11"
	tests := []struct {
		path, entity, id, command string
	}{
		{"/api/v1/patients", "patients", "", ""},
		{"/api/v1/visits/" + id, "visits", id, ""},
		{"/api/v1/visits/" + id + "/check-in", "visits", id, "check-in"},
		{"/api/v1/queues/Cardiology/call-next", "queues", "", "Cardiology/call-next"},
		{"/api/v1/", "unknown", "", ""},
	}
	for _, tt := range tests {
		entity, gotID, cmd := splitAuditPath(tt.path)
		assert.Equal(t, tt.entity, entity, tt.path)
		assert.Equal(t, tt.id, gotID, tt.path)
		assert.Equal(t, tt.command, cmd, tt.path)
	}
}

func TestAuditAction(t *testing.T) {
	assert.Equal(t, "read", auditAction(http.MethodGet, ""))
	assert.Equal(t, "create", auditAction(http.MethodPost, ""))
	assert.Equal(t, "check-in", auditAction(http.MethodPost, "check-in"))
	assert.Equal(t, "update", auditAction(http.MethodPatch, "status"))
	assert.Equal(t, "delete", auditAction(http.MethodDelete, ""))
}

func TestAudit_RecordsEntry(t *testing.T) {
	id := "6f1c2a4e-9a51-4d7b-9f3c-0b4f1f6d2e11"
	c, _ := newCtx(http.MethodPost, "/api/v1/visits/"+id+"/close")
	c.Set("request_id", "req-1")

	var got []AuditEntry
	rec := AuditRecorderFunc(func(e AuditEntry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, Audit(zerolog.Nop(), rec)(ok)(c))

	require.Len(t, got, 1)
	assert.Equal(t, "visits", got[0].Entity)
	assert.Equal(t, id, got[0].EntityID)
	assert.Equal(t, "close", got[0].Action)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Equal(t, http.StatusOK, got[0].StatusCode)
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/health")
	called := false
	rec := AuditRecorderFunc(func(AuditEntry) error { called = true; return nil })
	require.NoError(t, Audit(zerolog.Nop(), rec)(ok)(c))
	assert.False(t, called)
}

func TestSecurityHeaders(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	require.NoError(t, SecurityHeaders()(ok)(c))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
