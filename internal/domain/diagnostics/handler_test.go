package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_CreateTest(t *testing.T) {
	h, e := NewHandler(newTestService()), echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lab-tests", strings.NewReader(`{"code":"lft","name":"Liver Function","price":600}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.CreateTest(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"LFT"`)

	rec = httptest.NewRecorder()
	require.NoError(t, h.ListTests(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	assert.Contains(t, rec.Body.String(), "Liver Function")
}

func TestHandler_ListRequests(t *testing.T) {
	svc := newTestService()
	h, e := NewHandler(svc), echo.New()
	lt := seedTest(t, svc)
	visitID := uuid.New()
	_, err := svc.Order(context.Background(), visitID, uuid.New(), lt.ID, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lab-requests?visit_id="+visitID.String(), nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListRequests(e.NewContext(req, rec)))
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/lab-requests", nil)
	assert.Error(t, h.ListRequests(e.NewContext(req, httptest.NewRecorder())))
}

func TestHandler_GetRequest_NotFound(t *testing.T) {
	h, e := NewHandler(newTestService()), echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	var he *echo.HTTPError
	require.ErrorAs(t, h.GetRequest(c), &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}
