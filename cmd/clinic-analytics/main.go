package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/analytics/internal/config"
	"github.com/clinic/analytics/internal/domain/analytics"
	"github.com/clinic/analytics/internal/platform/auth"
	"github.com/clinic/analytics/internal/platform/cache"
	"github.com/clinic/analytics/internal/platform/db"
	"github.com/clinic/analytics/internal/platform/middleware"
	"github.com/clinic/analytics/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clinic-analytics",
		Short:        "Clinic patient acquisition and retention analytics",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(clinicCmd())
	root.AddCommand(archiveCmd())
	root.AddCommand(seedCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analytics API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Inspect clinic schemas",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that a clinic schema exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if _, err := db.SchemaName(name); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			ok, err := db.ClinicSchemaExists(ctx, pool, name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("clinic %q has no schema", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "clinic %s: schema clinic_%s found\n", name, name)
			return nil
		},
	}
	checkCmd.Flags().String("name", "", "Clinic identifier (alphanumeric)")

	cmd.AddCommand(checkCmd)
	return cmd
}

// newLogger returns the process logger. Development uses the console writer.
func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// newCacheStore connects to Redis when REDIS_URL is set and falls back to an
// in-process store otherwise.
func newCacheStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info().Msg("report cache backed by redis")
			return cache.NewRedisStore(client), func() { client.Close() }
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory report cache")
	}
	store := cache.NewMemoryStore()
	cleanupCtx, cancel := context.WithCancel(ctx)
	store.StartCleanup(cleanupCtx, time.Minute)
	return store, cancel
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.RequireDatabase(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, closeStore := newCacheStore(ctx, cfg, logger)
	defer closeStore()

	svc := analytics.NewService(analytics.NewLedgerReaderPG(pool), logger)
	svc.SetCache(store, cfg.ReportCacheTTL)
	svc.SetLocation(loc)
	if basis, ok := analytics.ParseRetentionBasis(cfg.RetentionBasis); ok {
		svc.SetRetentionBasis(basis)
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.NewMetrics()
		metrics.SetPoolStats(func() (int64, int64) {
			stats := db.GetPoolStats(pool)
			return int64(stats.AcquiredConns), int64(stats.IdleConns)
		})
		svc.SetObserver(metrics)
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "X-Request-ID", db.ClinicHeader},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Audit(logger))
	if metrics != nil {
		e.Use(metrics.Middleware())
		e.GET("/metrics", metrics.Handler())
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))

	registerAPI(e, cfg, pool, svc, logger)
	analytics.NewOpenAPIGenerator(version, "/api/v1").RegisterRoutes(e.Group("/api"))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// registerAPI mounts the report routes under /api/v1. Callers are
// authenticated and rate limited before a clinic connection is acquired.
func registerAPI(e *echo.Echo, cfg *config.Config, pool *pgxpool.Pool, svc *analytics.Service, logger zerolog.Logger) {
	var authMW echo.MiddlewareFunc
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth enabled: unauthenticated requests run as admin")
		authMW = auth.DevAuthMiddleware(cfg.DefaultClinic)
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}

	apiV1 := e.Group("/api/v1",
		authMW,
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
		db.ClinicMiddleware(pool, cfg.DefaultClinic),
	)
	analytics.NewHandler(svc, logger).RegisterRoutes(apiV1)
}
