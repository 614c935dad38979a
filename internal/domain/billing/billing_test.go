package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/sequence"
)

func newTestService() *Service {
	store := memstore.New()
	svc := NewService(NewInvoiceRepoMem(store), sequence.NewMemory(store))
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return svc
}

func issue(t *testing.T, svc *Service, visitID uuid.UUID, billType string, amount float64) *Invoice {
	t.Helper()
	inv := &Invoice{VisitID: &visitID, PatientID: uuid.New(), BillType: billType, Amount: amount}
	require.NoError(t, svc.Issue(context.Background(), inv))
	return inv
}

func TestIssue_NumbersAndStatus(t *testing.T) {
	svc := newTestService()
	visitID := uuid.New()

	a := issue(t, svc, visitID, BillConsultation, 500)
	b := issue(t, svc, visitID, BillLab, 350)
	assert.Equal(t, "INV-20260314-0001", a.Number)
	assert.Equal(t, "INV-20260314-0002", b.Number)
	assert.Equal(t, StatusPending, a.Status)
}

func TestIssue_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	visitID, admissionID := uuid.New(), uuid.New()

	assert.ErrorIs(t, svc.Issue(ctx, &Invoice{VisitID: &visitID, BillType: "Tax", Amount: 1}), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Issue(ctx, &Invoice{VisitID: &visitID, BillType: BillLab, Amount: -1}), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Issue(ctx, &Invoice{BillType: BillLab, Amount: 1}), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Issue(ctx, &Invoice{VisitID: &visitID, AdmissionID: &admissionID, BillType: BillLab}), apperr.ErrValidation)
}

func TestPay_OnlyOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := issue(t, svc, uuid.New(), BillPharmacy, 120)

	_, err := svc.Pay(ctx, inv.ID, "Cheque")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	paid, err := svc.Pay(ctx, inv.ID, MethodCard)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, MethodCard, paid.PaymentMethod)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, 120.0, paid.Amount)

	_, err = svc.Pay(ctx, inv.ID, MethodCash)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.Pay(ctx, uuid.New(), MethodCash)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSummary_Monotonic(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	visitID := uuid.New()

	a := issue(t, svc, visitID, BillConsultation, 500)
	issue(t, svc, visitID, BillLab, 350)
	issue(t, svc, uuid.New(), BillLab, 999)

	s, err := svc.Summary(ctx, visitID)
	require.NoError(t, err)
	assert.Equal(t, 850.0, s.Total)
	assert.Zero(t, s.Paid)
	assert.Equal(t, 850.0, s.Outstanding)

	_, err = svc.Pay(ctx, a.ID, MethodCash)
	require.NoError(t, err)

	after, err := svc.Summary(ctx, visitID)
	require.NoError(t, err)
	assert.Equal(t, s.Total, after.Total)
	assert.Equal(t, 500.0, after.Paid)
	assert.Equal(t, 350.0, after.Outstanding)

	pending, err := svc.HasPending(ctx, visitID)
	require.NoError(t, err)
	assert.True(t, pending)
}

type payerFunc func(ctx context.Context, id uuid.UUID, method string) (*Invoice, error)

func (f payerFunc) ProcessPayment(ctx context.Context, id uuid.UUID, method string) (*Invoice, error) {
	return f(ctx, id, method)
}

func TestHandler_PayInvoice(t *testing.T) {
	svc := newTestService()
	inv := issue(t, svc, uuid.New(), BillConsultation, 500)
	h := NewHandler(svc, payerFunc(svc.Pay))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment_method":"Cash"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())
	require.NoError(t, h.PayInvoice(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"paid"`)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment_method":"Cash"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c = e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())
	var he *echo.HTTPError
	require.ErrorAs(t, h.PayInvoice(c), &he)
	assert.Equal(t, http.StatusConflict, he.Code)
}

func TestHandler_ListInvoices(t *testing.T) {
	svc := newTestService()
	issue(t, svc, uuid.New(), BillConsultation, 500)
	h, e := NewHandler(svc, nil), echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, h.ListInvoices(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?status=pending", nil), rec)))
	assert.Contains(t, rec.Body.String(), `"total":1`)

	err := h.ListInvoices(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?patient_id=x", nil), httptest.NewRecorder()))
	assert.Error(t, err)
}
