package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/analytics/internal/platform/auth"
)

// withCaller adds the request id, clinic, user and, for report paths, the
// report being generated.
func withCaller(evt *zerolog.Event, c echo.Context) *zerolog.Event {
	rid, _ := c.Get("request_id").(string)
	clinicID, _ := c.Get("clinic_id").(string)
	evt = evt.
		Str("request_id", rid).
		Str("clinic_id", clinicID).
		Str("user_id", auth.UserIDFromContext(c.Request().Context()))
	if path := c.Request().URL.Path; isAuditablePath(path) {
		evt = evt.Str("report", reportName(path))
	}
	return evt
}

// Logger writes one line per request. Server errors log at error level and
// client errors at warn.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			status := responseStatus(c, err)
			evt := logger.Info()
			switch {
			case status >= 500:
				evt = logger.Error().Err(err)
			case err != nil:
				evt = logger.Warn().Err(err)
			}

			withCaller(evt, c).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
