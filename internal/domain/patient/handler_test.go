package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func postPatient(t *testing.T, h *Handler, e *echo.Echo, body, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients"+query, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.RegisterPatient(e.NewContext(req, rec)))
	return rec
}

func TestHandler_RegisterPatient(t *testing.T) {
	h, e := newTestHandler()

	rec := postPatient(t, h, e, `{"name":"Asha Rao","phone":"9876543210","gender":"female"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	var p Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "MRN-000001", p.MRN)
}

func TestHandler_RegisterPatient_Duplicate(t *testing.T) {
	h, e := newTestHandler()
	postPatient(t, h, e, `{"name":"Asha Rao","phone":"9876543210"}`, "")

	rec := postPatient(t, h, e, `{"name":"Asha R","phone":"98765-43210"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp duplicateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Candidates, 1)

	rec = postPatient(t, h, e, `{"name":"Asha R","phone":"98765-43210"}`, "?force=true")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_RegisterPatient_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(`{"phone":"1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.RegisterPatient(e.NewContext(req, httptest.NewRecorder()))

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestHandler_CheckDuplicates(t *testing.T) {
	h, e := newTestHandler()
	postPatient(t, h, e, `{"name":"Asha Rao","phone":"9876543210"}`, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/duplicates?name=Asha+Rao&phone=9876543210", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.CheckDuplicates(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "MRN-000001")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients/duplicates", nil)
	assert.Error(t, h.CheckDuplicates(e.NewContext(req, httptest.NewRecorder())))
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	var he *echo.HTTPError
	require.ErrorAs(t, h.GetPatient(c), &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestHandler_DeletePatient(t *testing.T) {
	h, e := newTestHandler()
	p := &Patient{Name: "Asha Rao", Phone: "9876543210"}
	require.NoError(t, h.svc.Register(context.Background(), p, false))

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	require.NoError(t, h.DeletePatient(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler()
	postPatient(t, h, e, `{"name":"Asha Rao","phone":"9876543210"}`, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?q=asha", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListPatients(e.NewContext(req, rec)))
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	routes := make(map[string]bool)
	for _, r := range e.Routes() {
		routes[r.Method+":"+r.Path] = true
	}
	for _, want := range []string{
		"POST:/api/v1/patients",
		"GET:/api/v1/patients",
		"GET:/api/v1/patients/duplicates",
		"GET:/api/v1/patients/:id",
		"DELETE:/api/v1/patients/:id",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}
