package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
	"github.com/imakhan79/Hospital-Management-System-sub000/pkg/pagination"
)

// Payer settles an invoice and moves whatever it belongs to.
type Payer interface {
	ProcessPayment(ctx context.Context, invoiceID uuid.UUID, method string) (*Invoice, error)
}

type Handler struct {
	svc   *Service
	payer Payer
}

func NewHandler(svc *Service, payer Payer) *Handler {
	return &Handler{svc: svc, payer: payer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleCashier, auth.RoleFrontDesk))
	g.GET("/invoices", h.ListInvoices)
	g.GET("/invoices/:id", h.GetInvoice)

	pay := api.Group("", auth.RequireRole(auth.RoleCashier))
	pay.POST("/invoices/:id/pay", h.PayInvoice)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

// ListInvoices filters by ?patient_id= and ?status=.
func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := ListParams{Status: c.QueryParam("status"), Limit: pg.Limit, Offset: pg.Offset}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		params.PatientID = &id
	}
	list, total, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg))
}

func (h *Handler) PayInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.payer.ProcessPayment(c.Request().Context(), id, body.PaymentMethod)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, inv)
}
