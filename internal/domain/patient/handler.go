package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterDoctorRoutes mounts the practitioner directory endpoints. The
// group is expected to carry practitioner authentication.
func (h *Handler) RegisterDoctorRoutes(g *echo.Group) {
	g.POST("/patients", h.Create)
	g.GET("/patients", h.List)
	g.GET("/patients/:id", h.Get)
	g.PUT("/patients/:id", h.Update)
	g.DELETE("/patients/:id", h.Delete)
	g.POST("/patients/:id/credentials", h.ResetCredentials)
}

// RegisterPatientRoutes mounts the patient self-service profile endpoints.
// Login is mounted separately so it can sit outside the session middleware.
func (h *Handler) RegisterPatientRoutes(g *echo.Group) {
	g.GET("/profile", h.Profile)
}

func (h *Handler) Create(c echo.Context) error {
	var in ProfileInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	created, err := h.svc.Create(ctx, in, auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.List(ctx, auth.OwnerScope(ctx), p.Limit, p.Offset)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.Owned(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	existing, err := h.Owned(c)
	if err != nil {
		return err
	}
	// Keys absent from the body keep their stored values.
	in := existing.Input()
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), existing.ID, in)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := h.Owned(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p.ID); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ResetCredentials(c echo.Context) error {
	p, err := h.Owned(c)
	if err != nil {
		return err
	}
	res, err := h.svc.ResetCredentials(c.Request().Context(), p.ID)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"loginId":  res.Patient.LoginID,
		"password": res.Password,
	})
}

type loginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.LoginID == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loginId and password are required")
	}
	sess, err := h.svc.Authenticate(c.Request().Context(), req.LoginID, req.Password)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Profile(c echo.Context) error {
	p, err := h.Self(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Owned loads the :id profile on behalf of the authenticated practitioner.
// Profiles added by someone else are reported as not found.
func (h *Handler) Owned(c echo.Context) (*Patient, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetOwned(ctx, id, auth.OwnerScope(ctx))
	if err != nil {
		return nil, HTTPError(err)
	}
	return p, nil
}

// Self loads the profile of the authenticated patient.
func (h *Handler) Self(c echo.Context) (*Patient, error) {
	id, ok := auth.PatientIDFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "patient session required")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, HTTPError(err)
	}
	return p, nil
}

// HTTPError maps directory errors onto HTTP responses. Unknown errors become
// an opaque 500 with the cause kept for logging.
func HTTPError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"message":    "validation failed",
			"violations": verr.Violations,
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrAuthFailed):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid login credentials")
	case errors.Is(err, ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, "diet chart history was modified concurrently, retry")
	case errors.Is(err, ErrCollisionExhausted):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "could not allocate a login id, retry later")
	case errors.Is(err, ErrDuplicateLoginID):
		return echo.NewHTTPError(http.StatusConflict, "login id already in use")
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
