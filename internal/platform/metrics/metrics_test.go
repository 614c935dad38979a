package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	c := New()
	e := echo.New()
	e.Use(c.Middleware())
	e.GET("/visits/:id", func(ctx echo.Context) error { return ctx.NoContent(http.StatusOK) })
	e.GET("/boom", func(ctx echo.Context) error { return echo.NewHTTPError(http.StatusConflict, "x") })

	for _, path := range []string{"/visits/1", "/visits/2", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/visits/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/boom", "409")))
}

func TestDomainCounters(t *testing.T) {
	c := New()
	c.VisitTransition("booked", "checked-in")
	c.VisitTransition("booked", "checked-in")
	c.Notification("queue-token", nil)
	c.Notification("queue-token", errors.New("gateway down"))
	c.BedCount("General", "available", 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("booked", "checked-in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("queue-token", "failed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.beds.WithLabelValues("General", "available")))
}

func TestHandler_Exposition(t *testing.T) {
	c := New()
	c.VisitTransition("paid", "closed")

	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	require.NoError(t, c.Handler()(ctx))
	assert.Contains(t, rec.Body.String(), `his_visit_transitions_total{from="paid",to="closed"} 1`)
}
