package visit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/pharmacy"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
	"github.com/imakhan79/Hospital-Management-System-sub000/pkg/pagination"
)

type Handler struct {
	wf *Workflow
}

func NewHandler(wf *Workflow) *Handler {
	return &Handler{wf: wf}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleNurse, auth.RolePhysician,
		auth.RoleLabTech, auth.RolePharmacist, auth.RoleCashier))
	read.GET("/visits", h.ListVisits)
	read.GET("/visits/:id", h.GetVisit)
	read.GET("/visits/:id/next-step", h.NextStep)
	read.GET("/visits/:id/queue-position", h.QueuePosition)
	read.GET("/visits/:id/report", h.Report)
	read.GET("/visits/:id/bill", h.Bill)
	read.GET("/visits/:id/history", h.History)
	read.GET("/visits/:id/vitals", h.ListVitals)

	desk := api.Group("", auth.RequireRole(auth.RoleFrontDesk))
	desk.POST("/visits", h.BookVisit)
	desk.POST("/visits/:id/check-in", h.CheckIn)
	desk.POST("/visits/:id/cancel", h.Cancel)

	nurse := api.Group("", auth.RequireRole(auth.RoleNurse))
	nurse.POST("/visits/:id/vitals-pending", h.MarkVitalsPending)
	nurse.POST("/visits/:id/vitals", h.SubmitVitals)

	queue := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleNurse))
	queue.POST("/visits/:id/queue", h.AssignQueue)

	calls := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse))
	calls.POST("/queues/:department/call-next", h.CallNext)

	doctor := api.Group("", auth.RequireRole(auth.RolePhysician))
	doctor.POST("/visits/:id/consultation/start", h.StartConsultation)
	doctor.POST("/visits/:id/consultation", h.SaveConsultation)

	lab := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleLabTech))
	lab.POST("/lab-requests", h.CreateLabOrder)
	labTech := api.Group("", auth.RequireRole(auth.RoleLabTech))
	labTech.PATCH("/lab-requests/:id/status", h.UpdateLabStatus)

	pharm := api.Group("", auth.RequireRole(auth.RolePharmacist))
	pharm.POST("/visits/:id/dispense", h.Dispense)

	closing := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleCashier))
	closing.POST("/visits/:id/close", h.Close)
}

// commandContext parses the visit id and applies an If-Match version when
// the client sent one.
func commandContext(c echo.Context) (uuid.UUID, echo.Context, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, c, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if tag := strings.Trim(c.Request().Header.Get("If-Match"), `W/"`); tag != "" {
		version, err := strconv.Atoi(tag)
		if err != nil {
			return uuid.Nil, c, echo.NewHTTPError(http.StatusBadRequest, "If-Match must carry the visit version")
		}
		req := c.Request()
		c.SetRequest(req.WithContext(WithExpectedVersion(req.Context(), version)))
	}
	return id, c, nil
}

func respondVisit(c echo.Context, code int, v *Visit) error {
	c.Response().Header().Set("ETag", `W/"`+strconv.Itoa(v.VersionID)+`"`)
	return c.JSON(code, v)
}

func (h *Handler) BookVisit(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.wf.Book(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return respondVisit(c, http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.wf.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return respondVisit(c, http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := ListParams{
		Status:     c.QueryParam("status"),
		Department: c.QueryParam("department"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		params.PatientID = &pid
	}
	list, total, err := h.wf.List(c.Request().Context(), params)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg))
}

type visitCommand func(*Workflow, echo.Context, uuid.UUID) (*Visit, error)

func (h *Handler) runCommand(c echo.Context, cmd visitCommand) error {
	id, c, err := commandContext(c)
	if err != nil {
		return err
	}
	v, err := cmd(h.wf, c, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return respondVisit(c, http.StatusOK, v)
}

func (h *Handler) CheckIn(c echo.Context) error {
	return h.runCommand(c, func(wf *Workflow, c echo.Context, id uuid.UUID) (*Visit, error) {
		return wf.CheckIn(c.Request().Context(), id)
	})
}

func (h *Handler) MarkVitalsPending(c echo.Context) error {
	return h.runCommand(c, func(wf *Workflow, c echo.Context, id uuid.UUID) (*Visit, error) {
		return wf.MarkVitalsPending(c.Request().Context(), id)
	})
}

func (h *Handler) AssignQueue(c echo.Context) error {
	return h.runCommand(c, func(wf *Workflow, c echo.Context, id uuid.UUID) (*Visit, error) {
		return wf.AssignQueue(c.Request().Context(), id)
	})
}

func (h *Handler) StartConsultation(c echo.Context) error {
	return h.runCommand(c, func(wf *Workflow, c echo.Context, id uuid.UUID) (*Visit, error) {
		return wf.StartConsultation(c.Request().Context(), id)
	})
}

func (h *Handler) Close(c echo.Context) error {
	return h.runCommand(c, func(wf *Workflow, c echo.Context, id uuid.UUID) (*Visit, error) {
		return wf.Close(c.Request().Context(), id)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.runCommand(c, func(wf *Workflow, c echo.Context, id uuid.UUID) (*Visit, error) {
		return wf.Cancel(c.Request().Context(), id)
	})
}

func (h *Handler) SubmitVitals(c echo.Context) error {
	id, c, err := commandContext(c)
	if err != nil {
		return err
	}
	var rec VitalsRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.wf.SubmitVitals(c.Request().Context(), id, &rec)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListVitals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	list, err := h.wf.Vitals(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

type callNextRequest struct {
	DoctorID *uuid.UUID `json:"doctor_id,omitempty"`
}

func (h *Handler) CallNext(c echo.Context) error {
	var req callNextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.wf.CallNext(c.Request().Context(), c.Param("department"), req.DoctorID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return respondVisit(c, http.StatusOK, v)
}

func (h *Handler) SaveConsultation(c echo.Context) error {
	id, c, err := commandContext(c)
	if err != nil {
		return err
	}
	var in ConsultationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.wf.SaveConsultation(c.Request().Context(), id, in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) CreateLabOrder(c echo.Context) error {
	var in LabOrderInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.VisitID == uuid.Nil || in.TestID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_id and test_id are required")
	}
	lr, err := h.wf.CreateLabOrder(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, lr)
}

type labStatusRequest struct {
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
}

func (h *Handler) UpdateLabStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req labStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	lr, err := h.wf.UpdateLabStatus(c.Request().Context(), id, req.Status, req.Result)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, lr)
}

type dispenseRequest struct {
	Items []pharmacy.DispenseLine `json:"items,omitempty"`
}

func (h *Handler) Dispense(c echo.Context) error {
	id, c, err := commandContext(c)
	if err != nil {
		return err
	}
	var req dispenseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.wf.Dispense(c.Request().Context(), id, req.Items)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) NextStep(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	step, err := h.wf.NextStep(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"next_step": step})
}

func (h *Handler) QueuePosition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pos, err := h.wf.QueuePosition(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pos)
}

func (h *Handler) Report(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.wf.Report(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Bill(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.wf.Bill(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	list, err := h.wf.History(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}
