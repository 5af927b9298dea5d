package dietchart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
	"github.com/ayurclinic/clinic/internal/domain/patient"
)

// ProfileResolver resolves the profile a request acts on: the :id profile
// owned by the calling practitioner, or the calling patient's own.
type ProfileResolver interface {
	Owned(c echo.Context) (*patient.Patient, error)
	Self(c echo.Context) (*patient.Patient, error)
}

type Handler struct {
	store    *Store
	profiles ProfileResolver
}

func NewHandler(store *Store, profiles ProfileResolver) *Handler {
	return &Handler{store: store, profiles: profiles}
}

func (h *Handler) RegisterDoctorRoutes(g *echo.Group) {
	g.POST("/patients/:id/diet-charts", h.Generate)
	g.GET("/patients/:id/diet-charts", h.List)
	g.PUT("/patients/:id/diet-charts/:index", h.Update)
	g.DELETE("/patients/:id/diet-charts/:index", h.Remove)
}

func (h *Handler) RegisterPatientRoutes(g *echo.Group) {
	g.GET("/diet-charts", h.ListOwn)
	g.GET("/diet-charts/:index", h.GetOwn)
}

type chartResponse struct {
	Index int            `json:"index"`
	Chart dietplan.Chart `json:"chart"`
}

type updateRequest struct {
	Diet  dietplan.Plan `json:"diet"`
	Notes string        `json:"notes"`
}

func (h *Handler) Generate(c echo.Context) error {
	p, err := h.profiles.Owned(c)
	if err != nil {
		return err
	}
	chart, index, err := h.store.Append(c.Request().Context(), p.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chartResponse{Index: index, Chart: chart})
}

func (h *Handler) List(c echo.Context) error {
	p, err := h.profiles.Owned(c)
	if err != nil {
		return err
	}
	charts, err := h.store.List(c.Request().Context(), p.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, charts)
}

func (h *Handler) Update(c echo.Context) error {
	p, err := h.profiles.Owned(c)
	if err != nil {
		return err
	}
	index, err := ParseIndex(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	chart, err := h.store.Update(c.Request().Context(), p.ID, index, req.Diet, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chartResponse{Index: index, Chart: chart})
}

func (h *Handler) Remove(c echo.Context) error {
	p, err := h.profiles.Owned(c)
	if err != nil {
		return err
	}
	index, err := ParseIndex(c)
	if err != nil {
		return err
	}
	if err := h.store.Remove(c.Request().Context(), p.ID, index); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListOwn(c echo.Context) error {
	p, err := h.profiles.Self(c)
	if err != nil {
		return err
	}
	charts, err := h.store.List(c.Request().Context(), p.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, charts)
}

// GetOwn reports a missing position as not found rather than a bad request;
// patients only ever follow links to their own charts.
func (h *Handler) GetOwn(c echo.Context) error {
	p, err := h.profiles.Self(c)
	if err != nil {
		return err
	}
	index, err := ParseIndex(c)
	if err != nil {
		return err
	}
	chart, err := h.store.Get(c.Request().Context(), p.ID, index)
	if errors.Is(err, ErrIndexOutOfRange) {
		return echo.NewHTTPError(http.StatusNotFound, "Diet chart not found")
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chartResponse{Index: index, Chart: chart})
}

// ParseIndex reads the :index path parameter.
func ParseIndex(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid diet chart index")
	}
	return index, nil
}

func httpError(err error) error {
	if errors.Is(err, ErrIndexOutOfRange) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid diet chart index")
	}
	return patient.HTTPError(err)
}
