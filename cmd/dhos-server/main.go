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

	"github.com/dhos/dhos/internal/config"
	"github.com/dhos/dhos/internal/domain/clinician"
	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/internal/domain/location"
	"github.com/dhos/dhos/internal/domain/patient"
	"github.com/dhos/dhos/internal/domain/product"
	"github.com/dhos/dhos/internal/migration"
	"github.com/dhos/dhos/internal/platform/db"
	"github.com/dhos/dhos/internal/platform/middleware"
	"github.com/dhos/dhos/internal/platform/publish"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dhos-server",
		Short: "Clinical record service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(migrateLegacyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	var dir string
	cmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "migrations directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			m := db.NewMigrator(pool, dir)
			applied, err := m.Up(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("applied", applied).Msg("migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%04d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	})

	return cmd
}

func migrateLegacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-legacy [all|locations|clinicians|patients]",
		Short: "Replay aggregates from the legacy graph store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := "all"
			if len(args) > 0 {
				entity = args[0]
			}
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateLegacy(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			engine, closeReader, err := buildEngine(ctx, cfg, pool, logger)
			if err != nil {
				return err
			}
			defer closeReader()

			report, err := runMigration(ctx, engine, entity)
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		},
	}
	return cmd
}

func buildEngine(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*migration.Engine, func(), error) {
	reader, err := migration.NewNeo4jReader(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPassword, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to legacy store: %w", err)
	}
	engine := newEngine(reader, cfg, pool, logger)
	return engine, func() { _ = reader.Close(context.Background()) }, nil
}

func newEngine(reader migration.LegacyReader, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *migration.Engine {
	var users *migration.UsersClient
	if cfg.UsersAPIHost != "" {
		users = migration.NewUsersClient(cfg.UsersAPIHost, cfg.MigrationJWTIssuer,
			cfg.MigrationJWTAudience, []byte(cfg.MigrationJWTSecret))
	}
	return migration.NewEngine(reader,
		location.NewRepoPG(pool), patient.NewRepoPG(pool), product.NewRepoPG(pool),
		clinician.NewRepoPG(pool), users, pool, logger,
		migration.Config{BatchSize: cfg.MigrationBatchSize})
}

func runMigration(ctx context.Context, engine *migration.Engine, entity string) (migration.Report, error) {
	switch entity {
	case "all":
		return engine.Run(ctx)
	case "locations":
		return engine.MigrateLocations(ctx)
	case "clinicians":
		return engine.MigrateClinicians(ctx)
	case "patients":
		return engine.MigratePatients(ctx)
	default:
		return migration.Report{}, fmt.Errorf("unknown migration entity %q", entity)
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var pub publish.Publisher
	if cfg.AMQPURL != "" {
		amqpPub, err := publish.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to broker")
		}
		defer amqpPub.Close()
		pub = amqpPub
	} else {
		logger.Warn().Msg("AMQP_URL not set, audit events are logged only")
		pub = publish.NewLogPublisher(logger)
	}

	locationRepo := location.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	productRepo := product.NewRepoPG(pool)
	clinicianRepo := clinician.NewRepoPG(pool)

	locationSvc := location.NewService(locationRepo, pool)
	patientSvc := patient.NewService(patientRepo, productRepo, pub, pool, logger)
	clinicianSvc := clinician.NewService(clinicianRepo)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, middleware.ClinicianHeader},
	}))

	e.GET("/health", db.HealthHandler(pool))

	api := e.Group("/dhos/v1")
	location.NewHandler(locationSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	clinician.NewHandler(clinicianSvc).RegisterRoutes(api)

	// Legacy migration trigger: runs synchronously and returns the report.
	if cfg.Neo4jURL != "" {
		api.POST("/migrations/legacy/:entity", func(c echo.Context) error {
			reqCtx := c.Request().Context()
			reader, err := migration.NewNeo4jReader(reqCtx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPassword, logger)
			if err != nil {
				return derr.HTTPError(derr.Infraf(err, "connect to legacy store"))
			}
			defer reader.Close(reqCtx)

			engine := newEngine(reader, cfg, pool, logger)
			report, err := runMigration(reqCtx, engine, c.Param("entity"))
			if err != nil {
				return derr.HTTPError(err)
			}
			return c.JSON(http.StatusOK, report)
		})
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := e.StartServer(srv); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
