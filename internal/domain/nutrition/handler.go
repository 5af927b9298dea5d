package nutrition

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/nutrition", h.Lookup)
}

// Lookup serves GET /api/nutrition?name=Masala%20Dosa.
func (h *Handler) Lookup(c echo.Context) error {
	f, err := h.svc.Lookup(c.Request().Context(), c.QueryParam("name"))
	switch {
	case errors.Is(err, ErrNameRequired):
		return echo.NewHTTPError(http.StatusBadRequest, "Food name is required")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Food not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, f)
}
