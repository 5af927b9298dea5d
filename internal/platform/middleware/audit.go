package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/platform/auth"
)

// AuditEntry records who touched which patient record and how.
type AuditEntry struct {
	Actor      string
	ActorRoles []string
	Resource   string
	PatientID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request under /api/doctor/ and /api/patient/ after the
// handler has run, so the entry carries the final status. Request bodies are
// never logged.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Action:     httpMethodToAction(req.Method),
				Resource:   extractResource(path),
				PatientID:  extractPatientID(c),
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}

			ctx := req.Context()
			entry.Actor = auth.UserIDFromContext(ctx)
			entry.ActorRoles = auth.RolesFromContext(ctx)
			if pid, ok := auth.PatientIDFromContext(ctx); ok {
				entry.Actor = "patient:" + pid.String()
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "patient_audit").
				Str("request_id", entry.RequestID).
				Str("actor", entry.Actor).
				Strs("actor_roles", entry.ActorRoles).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_record_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/doctor/") || strings.HasPrefix(path, "/api/patient/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the most specific collection named in the path:
//
//	/api/doctor/patients/<id>                 -> patients
//	/api/doctor/patients/<id>/diet-charts/0   -> diet-charts
//	/api/patient/profile                      -> profile
func extractResource(path string) string {
	var rest string
	switch {
	case strings.HasPrefix(path, "/api/doctor/"):
		rest = strings.TrimPrefix(path, "/api/doctor/")
	case strings.HasPrefix(path, "/api/patient/"):
		rest = strings.TrimPrefix(path, "/api/patient/")
	}
	resource := "unknown"
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || isUUIDLike(seg) || isIndex(seg) || seg == "export" || seg == "download" || seg == "credentials" {
			continue
		}
		resource = seg
	}
	return resource
}

// extractPatientID reads the :id route param, falling back to the path
// segment after /patients/.
func extractPatientID(c echo.Context) string {
	if id := c.Param("id"); isUUIDLike(id) {
		return id
	}
	path := c.Request().URL.Path
	if _, rest, ok := strings.Cut(path, "/patients/"); ok {
		seg, _, _ := strings.Cut(rest, "/")
		if isUUIDLike(seg) {
			return seg
		}
	}
	if pid, ok := auth.PatientIDFromContext(c.Request().Context()); ok {
		return pid.String()
	}
	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
