package main

import (
	"context"
	"fmt"
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

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/config"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/billing"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/diagnostics"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/inpatient"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/patient"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/pharmacy"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/practitioner"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/visit"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/metrics"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/middleware"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/notification"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/websocket"
	"github.com/imakhan79/Hospital-Management-System-sub000/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "his-server",
		Short: "Hospital visit workflow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// openPool loads the config and connects, for the commands that only need
// the database.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := schemaFlag(cmd, cfg)
			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (defaults to the DEFAULT_TENANT facility schema)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := schemaFlag(cmd, cfg)
			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "", "Target schema (defaults to the DEFAULT_TENANT facility schema)")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is not supported by the built-in runner.")
			fmt.Println("Restore the facility schema from backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func schemaFlag(cmd *cobra.Command, cfg *config.Config) string {
	if s, _ := cmd.Flags().GetString("schema"); s != "" {
		return s
	}
	return db.SchemaFor(cfg.DefaultTenant)
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage facility schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a facility schema and apply every migration to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating facility schema: %s\n", db.SchemaFor(name))
			if err := db.CreateFacilitySchema(ctx, pool, name, migrations.FS); err != nil {
				return err
			}
			fmt.Println("Facility created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Facility identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}
	return logger
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	var (
		st   *stores
		pool *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		st = postgresStores(pool)
	default:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		st = memoryStores()
	}

	e := newServer(cfg, logger, st, pool)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("starting server")
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

// newServer builds the echo instance. pool is nil for the memory store, in
// which case requests are not bound to a facility schema.
func newServer(cfg *config.Config, logger zerolog.Logger, st *stores, pool *pgxpool.Pool) *echo.Echo {
	collector := metrics.New()
	hub := websocket.NewHub(logger.With().Str("component", "ws").Logger())
	svc := buildServices(cfg, st, logger, hub, collector)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "If-Match", "X-Request-ID", "X-Facility-ID"},
		ExposeHeaders: []string{"ETag", "X-Request-ID"},
	}))
	e.Use(collector.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(st.pinger, st.poolStats))
	e.GET("/metrics", collector.Handler())
	websocket.NewHandler(hub).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	if pool != nil {
		apiV1.Use(db.FacilityMiddleware(pool, cfg.DefaultTenant))
	}

	patient.NewHandler(svc.patients).RegisterRoutes(apiV1)
	practitioner.NewHandler(svc.doctors).RegisterRoutes(apiV1)
	diagnostics.NewHandler(svc.labs).RegisterRoutes(apiV1)
	pharmacy.NewHandler(svc.pharmacy).RegisterRoutes(apiV1)
	billing.NewHandler(svc.billing, svc.workflow).RegisterRoutes(apiV1)
	visit.NewHandler(svc.workflow).RegisterRoutes(apiV1)
	inpatient.NewHandler(svc.inpatient).RegisterRoutes(apiV1)
	notification.NewHandler(svc.notifications).RegisterRoutes(apiV1.Group("", auth.RequireRole(auth.RoleFrontDesk)))

	logger.Info().Int("routes", len(e.Routes())).Msg("routes registered")
	return e
}
