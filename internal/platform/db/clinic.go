package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinic/analytics/internal/platform/auth"
)

type contextKey string

const (
	ClinicIDKey contextKey = "clinic_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// ClinicHeader selects the clinic when the token does not carry one.
const ClinicHeader = auth.ClinicHeader

var clinicIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaName returns the schema holding a clinic's ledger.
func SchemaName(clinicID string) (string, error) {
	if !clinicIDPattern.MatchString(clinicID) {
		return "", fmt.Errorf("invalid clinic identifier: %q", clinicID)
	}
	return "clinic_" + clinicID, nil
}

// ClinicMiddleware acquires a connection per request and points its
// search_path at the caller's clinic schema.
func ClinicMiddleware(pool *pgxpool.Pool, defaultClinic string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clinicID := extractClinicID(c, defaultClinic)
			schema, err := SchemaName(clinicID)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "clinic resolution failed")
			}

			ctx = context.WithValue(ctx, ClinicIDKey, clinicID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic_id", clinicID)

			return next(c)
		}
	}
}

func extractClinicID(c echo.Context, defaultClinic string) string {
	if cid, ok := c.Get(auth.ClinicClaimKey).(string); ok && cid != "" {
		return cid
	}
	if cid := c.Request().Header.Get(ClinicHeader); cid != "" {
		return cid
	}
	if cid := c.QueryParam("clinic_id"); cid != "" {
		return cid
	}
	return defaultClinic
}

// WithClinicConn runs fn with a clinic-scoped connection in the context, for
// callers outside the HTTP middleware chain such as the CLI.
func WithClinicConn(ctx context.Context, pool *pgxpool.Pool, clinicID string, fn func(ctx context.Context) error) error {
	schema, err := SchemaName(clinicID)
	if err != nil {
		return err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
		return fmt.Errorf("set search_path for %s: %w", schema, err)
	}
	ctx = context.WithValue(ctx, ClinicIDKey, clinicID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return fn(ctx)
}

// ClinicSchemaExists reports whether the clinic's schema is present.
func ClinicSchemaExists(ctx context.Context, pool *pgxpool.Pool, clinicID string) (bool, error) {
	schema, err := SchemaName(clinicID)
	if err != nil {
		return false, err
	}
	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, schema).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("look up schema %s: %w", schema, err)
	}
	return exists, nil
}

// ConnFromContext retrieves the clinic-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// ClinicFromContext retrieves the clinic ID from context.
func ClinicFromContext(ctx context.Context) string {
	cid, _ := ctx.Value(ClinicIDKey).(string)
	return cid
}
