package visit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *echo.Echo) {
	f := newFixture(t, defaultSettings)
	return NewHandler(f.wf), f, echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_BookVisit(t *testing.T) {
	h, f, e := newTestHandler(t)
	p := f.patient(t, "Ravi Kumar", "9876543210")

	body := `{"patient_id":"` + p.ID.String() + `","department":"Cardiology","priority":"urgent"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/visits", body), rec)
	require.NoError(t, h.BookVisit(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `W/"1"`, rec.Header().Get("ETag"))

	var v Visit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, StatusBooked, v.Status)
	assert.Equal(t, PriorityUrgent, v.Priority)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/api/v1/visits", body), rec)
	err := h.BookVisit(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusConflict, he.Code)
}

func TestHandler_CheckInWithIfMatch(t *testing.T) {
	h, f, e := newTestHandler(t)
	p := f.patient(t, "Meena Iyer", "9000000001")
	v, err := f.wf.Book(f.ctx, BookRequest{PatientID: p.ID, Department: "ENT"})
	require.NoError(t, err)

	call := func(version string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("If-Match", version)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(v.ID.String())
		return rec, h.CheckIn(c)
	}

	rec, err := call(`W/"1"`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `W/"2"`, rec.Header().Get("ETag"))

	_, err = call(`W/"1"`)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusConflict, he.Code)

	_, err = call("abc")
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestHandler_SaveConsultationValidation(t *testing.T) {
	h, f, e := newTestHandler(t)
	v := f.inConsultation(t, f.patient(t, "Sunil Das", "9000000002"), "ENT", nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"notes":"no diagnosis"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	err := h.SaveConsultation(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/", `{"diagnosis":"Otitis media"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	require.NoError(t, h.SaveConsultation(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_NextStep(t *testing.T) {
	h, f, e := newTestHandler(t)
	v, err := f.wf.Book(f.ctx, BookRequest{PatientID: f.patient(t, "Anil Shah", "9000000003").ID, Department: "ENT"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	require.NoError(t, h.NextStep(c))
	assert.JSONEq(t, `{"next_step":"Check-in Patient"}`, rec.Body.String())
}

func TestHandler_GetVisit_NotFound(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	err := h.GetVisit(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestHandler_CallNext(t *testing.T) {
	h, f, e := newTestHandler(t)
	v := f.queued(t, f.patient(t, "Kavya N", "9000000004"), "General Medicine", nil, "")

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{}`), rec)
	c.SetParamNames("department")
	c.SetParamValues("general medicine")
	require.NoError(t, h.CallNext(c))

	var got Visit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, StatusCalled, got.Status)
}

func withRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "u-1", "tester", roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func TestHandler_RoleGates(t *testing.T) {
	h, f, _ := newTestHandler(t)
	p := f.patient(t, "Farah Ali", "9000000005")
	body := `{"patient_id":"` + p.ID.String() + `","department":"ENT"}`

	serve := func(role string) int {
		e := echo.New()
		h.RegisterRoutes(e.Group("/api/v1", withRoles(role)))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/visits", body))
		return rec.Code
	}
	assert.Equal(t, http.StatusForbidden, serve(auth.RoleNurse))
	assert.Equal(t, http.StatusCreated, serve(auth.RoleFrontDesk))
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler(t)
	h.RegisterRoutes(e.Group("/api/v1"))

	routes := make(map[string]bool)
	for _, r := range e.Routes() {
		routes[r.Method+":"+r.Path] = true
	}
	expected := []string{
		"POST:/api/v1/visits",
		"GET:/api/v1/visits",
		"GET:/api/v1/visits/:id",
		"POST:/api/v1/visits/:id/check-in",
		"POST:/api/v1/visits/:id/vitals-pending",
		"POST:/api/v1/visits/:id/vitals",
		"POST:/api/v1/visits/:id/queue",
		"POST:/api/v1/queues/:department/call-next",
		"POST:/api/v1/visits/:id/consultation/start",
		"POST:/api/v1/visits/:id/consultation",
		"POST:/api/v1/lab-requests",
		"PATCH:/api/v1/lab-requests/:id/status",
		"POST:/api/v1/visits/:id/dispense",
		"POST:/api/v1/visits/:id/close",
		"POST:/api/v1/visits/:id/cancel",
		"GET:/api/v1/visits/:id/next-step",
		"GET:/api/v1/visits/:id/queue-position",
		"GET:/api/v1/visits/:id/report",
		"GET:/api/v1/visits/:id/bill",
		"GET:/api/v1/visits/:id/history",
	}
	for _, path := range expected {
		assert.True(t, routes[path], "missing route %s", path)
	}
}
