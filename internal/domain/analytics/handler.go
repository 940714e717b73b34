package analytics

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/analytics/internal/platform/auth"
	"github.com/clinic/analytics/internal/platform/db"
	"github.com/clinic/analytics/pkg/pagination"
)

// errReportFailed is the only detail returned to callers for storage failures.
const errReportFailed = "failed to generate report"

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.ListReports)
	g.GET("/new-patients", h.NewPatients)
	g.GET("/patient-retention", h.PatientRetention)
	g.GET("/doctor-performance", h.DoctorPerformance)
	g.GET("/doctor-performance/:doctor_id", h.DoctorDetail)
	g.GET("/office-utilization", h.OfficeUtilization)
	g.GET("/demographics", h.Demographics)
	g.GET("/referral-funnel", h.ReferralFunnel)
}

func (h *Handler) ListReports(c echo.Context) error {
	return c.JSON(http.StatusOK, Catalog)
}

func (h *Handler) NewPatients(c echo.Context) error {
	return serve(h, c, "", h.svc.NewPatients)
}

func (h *Handler) PatientRetention(c echo.Context) error {
	return serve(h, c, "", h.svc.PatientRetention)
}

func (h *Handler) DoctorPerformance(c echo.Context) error {
	return serve(h, c, "", h.svc.DoctorPerformance)
}

func (h *Handler) DoctorDetail(c echo.Context) error {
	return serve(h, c, c.Param("doctor_id"), h.svc.DoctorDetail)
}

func (h *Handler) OfficeUtilization(c echo.Context) error {
	return serve(h, c, "", h.svc.OfficeUtilization)
}

func (h *Handler) Demographics(c echo.Context) error {
	return serve(h, c, "", h.svc.Demographics)
}

func (h *Handler) ReferralFunnel(c echo.Context) error {
	return serve(h, c, "", h.svc.ReferralFunnel)
}

// paramsFromContext reads the report query string. A non-empty doctorID
// path parameter takes the place of the doctor_id query value.
func paramsFromContext(c echo.Context, doctorID string) FilterParams {
	page := pagination.FromContext(c)
	p := FilterParams{
		StartDate:      c.QueryParam("start_date"),
		EndDate:        c.QueryParam("end_date"),
		GroupBy:        c.QueryParam("group_by"),
		OfficeID:       c.QueryParam("office_id"),
		DoctorID:       c.QueryParam("doctor_id"),
		Status:         c.QueryParam("status"),
		RetentionBasis: c.QueryParam("retention_basis"),
		Dimension:      c.QueryParam("dimension"),
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	if doctorID != "" {
		p.DoctorID = doctorID
	}
	return p
}

func authContext(c echo.Context) auth.AuthContext {
	ctx := c.Request().Context()
	clinicID := db.ClinicFromContext(ctx)
	if clinicID == "" {
		clinicID, _ = c.Get("clinic_id").(string)
	}
	return auth.FromContext(ctx, clinicID)
}

func serve[T any](h *Handler, c echo.Context, doctorID string, report func(ctx context.Context, a auth.AuthContext, f Filter) (*T, error)) error {
	a := authContext(c)
	if !a.IsAdmin() {
		return h.toHTTPError(c, &AuthorizationError{UserID: a.UserID})
	}
	f, err := h.svc.ParseFilter(paramsFromContext(c, doctorID))
	if err != nil {
		return h.toHTTPError(c, err)
	}
	out, err := report(c.Request().Context(), a, f)
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// toHTTPError maps report errors to status codes. Storage diagnostics are
// logged and replaced by a generic message.
func (h *Handler) toHTTPError(c echo.Context, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return echo.NewHTTPError(http.StatusForbidden, ErrNotAuthorized.Error())
	}
	h.logger.Error().Err(err).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("report request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, errReportFailed)
}
