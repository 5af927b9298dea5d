package export

import (
	"errors"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ayurclinic/clinic/internal/domain/dietchart"
	"github.com/ayurclinic/clinic/internal/domain/patient"
	"github.com/ayurclinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc      *Service
	profiles dietchart.ProfileResolver
}

func NewHandler(svc *Service, profiles dietchart.ProfileResolver) *Handler {
	return &Handler{svc: svc, profiles: profiles}
}

func (h *Handler) RegisterDoctorRoutes(g *echo.Group) {
	g.GET("/patients/export.xlsx", h.Roster)
	g.GET("/patients/:id/diet-charts/:index/export", h.ExportChart)
}

func (h *Handler) RegisterPatientRoutes(g *echo.Group) {
	g.GET("/diet-charts/:index/download", h.DownloadOwn)
}

func (h *Handler) ExportChart(c echo.Context) error {
	p, err := h.profiles.Owned(c)
	if err != nil {
		return err
	}
	return h.render(c, p, false)
}

func (h *Handler) DownloadOwn(c echo.Context) error {
	p, err := h.profiles.Self(c)
	if err != nil {
		return err
	}
	return h.render(c, p, true)
}

func (h *Handler) Roster(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := h.svc.Roster(ctx, auth.OwnerScope(ctx))
	if err != nil {
		return patient.HTTPError(err)
	}
	return attachment(c, out)
}

func (h *Handler) render(c echo.Context, p *patient.Patient, self bool) error {
	index, err := dietchart.ParseIndex(c)
	if err != nil {
		return err
	}
	format, err := ParseFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out, err := h.svc.Export(c.Request().Context(), p, index, format)
	switch {
	case err == nil:
		return attachment(c, out)
	case errors.Is(err, dietchart.ErrIndexOutOfRange) && self:
		return echo.NewHTTPError(http.StatusNotFound, "Diet chart not found")
	case errors.Is(err, dietchart.ErrIndexOutOfRange):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid diet chart index")
	case errors.Is(err, ErrRenderFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "failed to render diet chart").SetInternal(err)
	}
	return patient.HTTPError(err)
}

func attachment(c echo.Context, out *Export) error {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	return c.Blob(http.StatusOK, out.ContentType, out.Body)
}
