package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/config"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/visit"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "development",
		LogLevel:               "error",
		StoreDriver:            config.StoreMemory,
		DefaultTenant:          "main",
		CORSOrigins:            []string{"*"},
		RateLimitRPS:           1000,
		RateLimitBurst:         1000,
		RequestTimeout:         5 * time.Second,
		BodyLimit:              "64K",
		DefaultConsultationFee: 500,
		IPDOtherCharges:        500,
		AvgConsultMinutes:      10,
	}
}

type testServer struct {
	t *testing.T
	h http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	e := newServer(testConfig(), zerolog.Nop(), memoryStores(), nil)
	return &testServer{t: t, h: e}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, version, decode(t, rec)["version"])

	rec = s.do(http.MethodGet, "/health/db", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestVisitFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/patients", `{"name":"Ravi Kumar","phone":"98765 43210","gender":"male"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	patientID := decode(t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/doctors", `{"name":"Dr Anand Rao","department":"Cardiology","consultation_fee":500}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doctorID := decode(t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/visits",
		`{"patient_id":"`+patientID+`","department":"Cardiology","doctor_id":"`+doctorID+`","type":"walk-in"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, `W/"1"`, rec.Header().Get("ETag"))
	visitID := decode(t, rec)["id"].(string)
	base := "/api/v1/visits/" + visitID

	rec = s.do(http.MethodGet, base+"/next-step", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, visit.StepCheckIn, decode(t, rec)["next_step"])

	rec = s.do(http.MethodPost, base+"/check-in", "", "If-Match", `W/"1"`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, base+"/vitals", `{"pulse":72,"blood_pressure":"120/80"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, base+"/queue", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["queue_token"].(string)
	assert.True(t, strings.HasPrefix(token, "CA-"), token)

	rec = s.do(http.MethodGet, base+"/next-step", "")
	assert.Equal(t, visit.StepGoToConsultation, decode(t, rec)["next_step"])

	rec = s.do(http.MethodGet, base+"/queue-position", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "his_visit_transitions_total")
	assert.Contains(t, rec.Body.String(), "his_http_requests_total")
}

func TestStaleIfMatchIsRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/patients", `{"name":"Meena Iyer","phone":"9000000001"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	patientID := decode(t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/visits", `{"patient_id":"`+patientID+`","department":"ENT"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	visitID := decode(t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/visits/"+visitID+"/check-in", "", "If-Match", `W/"7"`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRoleGatesApplyThroughDevAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/wards", `{"name":"General"}`, "X-User-Roles", "nurse")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/wards", `{"name":"General"}`, "X-User-Roles", "admin")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/notifications/stats", "", "X-User-Roles", "frontdesk")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRoutesMounted(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), memoryStores(), nil)
	paths := make(map[string]bool)
	for _, r := range e.Routes() {
		paths[r.Method+":"+r.Path] = true
	}
	for _, want := range []string{
		"GET:/health",
		"GET:/health/db",
		"GET:/metrics",
		"GET:/ws",
		"POST:/api/v1/patients",
		"GET:/api/v1/patients/duplicates",
		"POST:/api/v1/visits",
		"POST:/api/v1/queues/:department/call-next",
		"POST:/api/v1/invoices/:id/pay",
		"POST:/api/v1/admissions/:id/discharge",
		"GET:/api/v1/wards/census",
		"POST:/api/v1/lab-tests",
		"POST:/api/v1/inventory",
	} {
		assert.True(t, paths[want], "missing route %s", want)
	}
}

func TestQueueTokenSMSFollowsConfig(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		cfg := testConfig()
		cfg.SMSEnabled = enabled
		s := &testServer{t: t, h: newServer(cfg, zerolog.Nop(), memoryStores(), nil)}

		rec := s.do(http.MethodPost, "/api/v1/patients", `{"name":"Asha Devi","phone":"9111111111"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		patientID := decode(t, rec)["id"].(string)
		rec = s.do(http.MethodPost, "/api/v1/visits", `{"patient_id":"`+patientID+`","department":"Orthopedics"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		base := "/api/v1/visits/" + decode(t, rec)["id"].(string)

		require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/check-in", "").Code)
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, base+"/vitals", `{"pulse":80}`).Code)
		require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/queue", "").Code)

		rec = s.do(http.MethodGet, "/api/v1/notifications/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var stats map[string]int
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		if enabled {
			assert.Equal(t, 1, stats["sent"])
		} else {
			assert.Empty(t, stats)
		}
	}
}

func TestOversizedAndSuspiciousRequestsAreRejected(t *testing.T) {
	s := newTestServer(t)

	big := `{"name":"` + strings.Repeat("x", 70<<10) + `","phone":"9222222222"}`
	rec := s.do(http.MethodPost, "/api/v1/patients", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/patients?q=%3Cscript%3E", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
