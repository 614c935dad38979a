package inpatient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleNurse, auth.RolePhysician,
		auth.RoleCashier, auth.RoleHousekeeping))
	read.GET("/wards", h.ListWards)
	read.GET("/wards/census", h.Census)
	read.GET("/beds", h.ListBeds)
	read.GET("/beds/:id", h.GetBed)
	read.GET("/admissions", h.ListAdmissions)
	read.GET("/admissions/:id", h.GetAdmission)
	read.GET("/admissions/:id/discharge-summary", h.DischargeSummary)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/wards", h.CreateWard)
	admin.POST("/beds", h.CreateBed)

	adt := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleNurse))
	adt.POST("/admissions", h.Admit)
	discharge := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleCashier))
	discharge.POST("/admissions/:id/discharge", h.Discharge)

	house := api.Group("", auth.RequireRole(auth.RoleHousekeeping, auth.RoleNurse))
	house.POST("/beds/:id/clean", h.MarkBedClean)
	house.POST("/beds/:id/maintenance", h.SetBedMaintenance)
	house.POST("/beds/:id/maintenance/release", h.ReleaseBed)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateWard(c echo.Context) error {
	var w Ward
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateWard(c.Request().Context(), &w); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWards(c echo.Context) error {
	list, err := h.svc.ListWards(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Census(c echo.Context) error {
	census, err := h.svc.Census(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, census)
}

func (h *Handler) CreateBed(c echo.Context) error {
	var b Bed
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateBed(c.Request().Context(), &b); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBeds(c echo.Context) error {
	var wardID *uuid.UUID
	if raw := c.QueryParam("ward_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid ward_id")
		}
		wardID = &id
	}
	list, err := h.svc.ListBeds(c.Request().Context(), wardID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetBed(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBed(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

type bedCommand func(*Service, echo.Context, uuid.UUID) (*Bed, error)

func (h *Handler) bedCommand(c echo.Context, cmd bedCommand) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	b, err := cmd(h.svc, c, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) MarkBedClean(c echo.Context) error {
	return h.bedCommand(c, func(s *Service, c echo.Context, id uuid.UUID) (*Bed, error) {
		return s.MarkBedClean(c.Request().Context(), id)
	})
}

func (h *Handler) SetBedMaintenance(c echo.Context) error {
	return h.bedCommand(c, func(s *Service, c echo.Context, id uuid.UUID) (*Bed, error) {
		return s.SetBedMaintenance(c.Request().Context(), id)
	})
}

func (h *Handler) ReleaseBed(c echo.Context) error {
	return h.bedCommand(c, func(s *Service, c echo.Context, id uuid.UUID) (*Bed, error) {
		return s.ReleaseBedFromMaintenance(c.Request().Context(), id)
	})
}

func (h *Handler) Admit(c echo.Context) error {
	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Admit(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAdmission(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAdmission(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAdmissions(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && status != AdmissionAdmitted && status != AdmissionDischarged {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	list, err := h.svc.ListAdmissions(c.Request().Context(), status)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) DischargeSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.DischargeSummary(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.FinalizeDischarge(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}
