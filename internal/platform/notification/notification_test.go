package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()
	body, err := e.Render(TemplateQueueToken, map[string]string{
		"patient_name": "Ravi", "department": "Cardiology", "token": "CA-SH-001", "wait_minutes": "0",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear Ravi, your token for Cardiology is CA-SH-001. Estimated wait 0 min.", body)

	body, err = e.Render(TemplateLabResult, map[string]string{"patient_name": "Ravi"})
	require.NoError(t, err)
	assert.Contains(t, body, "{{test_name}}")

	_, err = e.Render("nope", nil)
	assert.Error(t, err)
}

func TestTemplateEngine_Register(t *testing.T) {
	e := NewTemplateEngine()
	e.Register(Template{ID: "custom", Body: "Hi {{name}}"})
	body, err := e.Render("custom", map[string]string{"name": "Meera"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Meera", body)
}

func TestManager_NotifyAndRetry(t *testing.T) {
	sms := &MockSMSSender{ShouldFail: true}
	m := NewManager(sms, NewTemplateEngine())
	ctx := context.Background()

	n, err := m.Notify(ctx, TemplateVisitBill, "9876543210", map[string]string{"patient_name": "Ravi"})
	require.Error(t, err)
	require.NotNil(t, n)
	assert.Equal(t, StatusFailed, n.Status)
	assert.Equal(t, 1, n.Attempts)

	sms.ShouldFail = false
	n, err = m.Retry(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, n.Status)
	assert.Equal(t, 2, n.Attempts)
	assert.NotNil(t, n.SentAt)
	assert.Len(t, sms.Calls(), 2)

	_, err = m.Retry(ctx, n.ID)
	assert.Error(t, err, "sent notifications cannot be retried")

	_, err = m.Retry(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, map[string]int{StatusSent: 1}, m.Stats(ctx))
}

func TestManager_NotifyValidation(t *testing.T) {
	m := NewManager(&MockSMSSender{}, NewTemplateEngine())
	_, err := m.Notify(context.Background(), TemplateQueueToken, "", nil)
	assert.Error(t, err)
	_, err = m.Notify(context.Background(), "unknown", "123", nil)
	assert.Error(t, err)
}

func TestManager_ListByRecipient(t *testing.T) {
	m := NewManager(&MockSMSSender{}, NewTemplateEngine())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := m.Notify(ctx, TemplateQueueToken, "111", nil)
		require.NoError(t, err)
	}
	_, err := m.Notify(ctx, TemplateQueueToken, "222", nil)
	require.NoError(t, err)

	assert.Len(t, m.ListByRecipient(ctx, "111", 0), 3)
	assert.Len(t, m.ListByRecipient(ctx, "111", 2), 2)
	assert.Empty(t, m.ListByRecipient(ctx, "333", 10))
}

func TestManager_ConcurrentNotify(t *testing.T) {
	sms := &MockSMSSender{}
	m := NewManager(sms, NewTemplateEngine())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Notify(context.Background(), TemplatePatientCalled, "555", nil)
		}()
	}
	wg.Wait()
	assert.Len(t, sms.Calls(), 20)
	assert.Equal(t, 20, m.Stats(context.Background())[StatusSent])
}

func TestHandler_ListAndRetry(t *testing.T) {
	sms := &MockSMSSender{ShouldFail: true}
	m := NewManager(sms, NewTemplateEngine())
	n, _ := m.Notify(context.Background(), TemplateQueueToken, "999", nil)

	e := echo.New()
	h := NewHandler(m)
	h.RegisterRoutes(e.Group(""))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications?recipient=999", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sms.ShouldFail = false
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/"+n.ID+"/retry", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, StatusSent, got.Status)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/"+n.ID+"/retry", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
