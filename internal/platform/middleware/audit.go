package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/analytics/internal/platform/auth"
)

// AuditEntry records one access to a report endpoint: who asked for which
// report of which clinic, with what filters, and the outcome.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	ClinicID   string
	Report     string
	Filters    map[string]string
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. Without one the middleware only logs.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedFilters are the query parameters copied into an entry.
var auditedFilters = []string{
	"start_date", "end_date", "group_by", "office_id", "doctor_id", "status",
	"retention_basis", "dimension", "limit", "offset",
}

// Audit logs every request under /api/v1/reports, including denied ones.
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
				StatusCode: responseStatus(c, err),
				Report:     reportName(path),
				Filters:    make(map[string]string),
			}

			// identity is set on the request by the auth middleware
			ctx := c.Request().Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			entry.ClinicID, _ = c.Get("clinic_id").(string)
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, k := range auditedFilters {
				if v := c.QueryParam(k); v != "" {
					entry.Filters[k] = v
				}
			}
			if id := c.Param("doctor_id"); id != "" {
				entry.Filters["doctor_id"] = id
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

			evt := logger.Info()
			if entry.StatusCode == http.StatusForbidden || entry.StatusCode == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			filters := zerolog.Dict()
			for k, v := range entry.Filters {
				filters = filters.Str(k, v)
			}
			evt.
				Str("type", "report_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("clinic_id", entry.ClinicID).
				Str("report", entry.Report).
				Dict("filters", filters).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("report_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return path == "/api/v1/reports" || strings.HasPrefix(path, "/api/v1/reports/")
}

// reportName returns the report segment of a report path, "catalog" for the
// listing itself.
//   - /api/v1/reports                        -> catalog
//   - /api/v1/reports/new-patients           -> new-patients
//   - /api/v1/reports/doctor-performance/12  -> doctor-performance
func reportName(path string) string {
	rest := strings.Trim(strings.TrimPrefix(path, "/api/v1/reports"), "/")
	if rest == "" {
		return "catalog"
	}
	return strings.SplitN(rest, "/", 2)[0]
}

// responseStatus is the status the client will see. An error not yet
// written is rendered later by the HTTP error handler.
func responseStatus(c echo.Context, err error) int {
	if err != nil && !c.Response().Committed {
		if he, ok := err.(*echo.HTTPError); ok {
			return he.Code
		}
		return http.StatusInternalServerError
	}
	return c.Response().Status
}
