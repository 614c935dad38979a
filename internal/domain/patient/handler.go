package patient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
	"github.com/imakhan79/Hospital-Management-System-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleNurse, auth.RolePhysician, auth.RoleCashier))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/duplicates", h.CheckDuplicates)
	read.GET("/patients/:id", h.GetPatient)

	write := api.Group("", auth.RequireRole(auth.RoleFrontDesk))
	write.POST("/patients", h.RegisterPatient)
	write.DELETE("/patients/:id", h.DeletePatient)
}

type duplicateResponse struct {
	Message    string     `json:"message"`
	Candidates []*Patient `json:"candidates"`
}

// RegisterPatient answers 409 with the candidate records when the patient
// looks like a duplicate; the desk can retry with ?force=true.
func (h *Handler) RegisterPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	force, _ := strconv.ParseBool(c.QueryParam("force"))

	err := h.svc.Register(c.Request().Context(), &p, force)
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return c.JSON(http.StatusConflict, duplicateResponse{Message: dup.Error(), Candidates: dup.Candidates})
	}
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) CheckDuplicates(c echo.Context) error {
	phone := c.QueryParam("phone")
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone query parameter is required")
	}
	found, err := h.svc.CheckDuplicates(c.Request().Context(), c.QueryParam("name"), phone)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if found == nil {
		found = []*Patient{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"candidates": found})
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.List(c.Request().Context(), ListParams{Query: c.QueryParam("q"), Limit: pg.Limit, Offset: pg.Offset})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg))
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
