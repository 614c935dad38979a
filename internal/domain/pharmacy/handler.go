package pharmacy

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
)

// Handler serves inventory management. Dispensing is a visit command.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RolePhysician))
	g.GET("/inventory", h.ListItems)
	g.GET("/inventory/:id", h.GetItem)
	g.GET("/dispenses", h.ListDispenses)

	w := api.Group("", auth.RequireRole(auth.RolePharmacist))
	w.POST("/inventory", h.CreateItem)
	w.POST("/inventory/:id/restock", h.Restock)
}

func (h *Handler) CreateItem(c echo.Context) error {
	var item InventoryItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateItem(c.Request().Context(), &item); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// ListItems accepts ?low_stock=true.
func (h *Handler) ListItems(c echo.Context) error {
	low, _ := strconv.ParseBool(c.QueryParam("low_stock"))
	list, err := h.svc.ListItems(c.Request().Context(), low)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if list == nil {
		list = []*InventoryItem{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Restock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.Restock(c.Request().Context(), id, body.Quantity)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListDispenses(c echo.Context) error {
	visitID, err := uuid.Parse(c.QueryParam("visit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_id is required")
	}
	list, err := h.svc.ListDispenses(c.Request().Context(), visitID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if list == nil {
		list = []*DispenseRecord{}
	}
	return c.JSON(http.StatusOK, list)
}
