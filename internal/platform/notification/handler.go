package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emar/emar/internal/platform/auth"
)

// Handler exposes the notice history for charge-nurse review.
type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "nurse"))
	g.GET("/notifications", h.List)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/:id", h.Get)
}

func (h *Handler) List(c echo.Context) error {
	notices := h.mgr.List(c.QueryParam("recipient"))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": notices,
		"total": len(notices),
	})
}

func (h *Handler) Get(c echo.Context) error {
	n, ok := h.mgr.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mgr.Stats())
}
