package location

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/locations", h.Create)
	api.GET("/locations", h.List)
	api.GET("/locations/:id", h.Get)
	api.GET("/locations/:id/descendants", h.Descendants)
	api.GET("/locations/:id/patients", h.ListPatients)
	api.DELETE("/locations/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var l Location
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &l); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	l, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Descendants(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.FindDescendants(c.Request().Context(), id, c.QueryParam("type"))
	if err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPatients(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	status := c.QueryParam("status")
	if status == "" {
		status = StatusActive
	}
	items, err := h.svc.ListPatients(c.Request().Context(), id, c.QueryParam("product"), status)
	if err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return derr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
