package diagnostics

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
)

// Handler serves the lab catalog and read access to lab requests. Ordering and
// status changes go through the visit workflow because they move the visit.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/lab-tests", h.ListTests)
	api.GET("/lab-tests/:id", h.GetTest)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleLabTech))
	admin.POST("/lab-tests", h.CreateTest)

	read := api.Group("", auth.RequireRole(auth.RoleLabTech, auth.RolePhysician, auth.RoleNurse, auth.RoleCashier))
	read.GET("/lab-requests", h.ListRequests)
	read.GET("/lab-requests/:id", h.GetRequest)
}

func (h *Handler) CreateTest(c echo.Context) error {
	var t LabTest
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTest(c.Request().Context(), &t); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTests(c echo.Context) error {
	list, err := h.svc.ListTests(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	if list == nil {
		list = []*LabTest{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	lr, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, lr)
}

// ListRequests requires ?visit_id=.
func (h *Handler) ListRequests(c echo.Context) error {
	visitID, err := uuid.Parse(c.QueryParam("visit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_id is required")
	}
	list, err := h.svc.ListByVisit(c.Request().Context(), visitID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if list == nil {
		list = []*LabRequest{}
	}
	return c.JSON(http.StatusOK, list)
}
