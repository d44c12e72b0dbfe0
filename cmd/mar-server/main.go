package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emar/emar/internal/config"
	"github.com/emar/emar/internal/domain/mar"
	"github.com/emar/emar/internal/domain/patient"
	"github.com/emar/emar/internal/platform/auth"
	"github.com/emar/emar/internal/platform/db"
	"github.com/emar/emar/internal/platform/middleware"
	"github.com/emar/emar/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mar-server",
		Short: "Medication administration record API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(credentialCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MAR API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a database backup instead.")
			return nil
		},
	})

	return cmd
}

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage witness credentials",
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Register or replace a practitioner's witness credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			practitioner, _ := cmd.Flags().GetString("practitioner")
			code, _ := cmd.Flags().GetString("code")
			if practitioner == "" {
				return fmt.Errorf("--practitioner is required")
			}
			if len(code) < 4 {
				return fmt.Errorf("--code must be at least 4 characters")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := auth.NewPGCredentialStore(pool)
			if err := store.SetCredential(ctx, practitioner, code); err != nil {
				return err
			}
			fmt.Printf("Credential set for %s.\n", practitioner)
			return nil
		},
	}
	setCmd.Flags().String("practitioner", "", "Practitioner name as entered in the witness field")
	setCmd.Flags().String("code", "", "Witness code (stored as a digest)")
	cmd.AddCommand(setCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Break-Glass"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Patient domain
	patientSvc := patient.NewService(
		patient.NewRepoPG(pool),
		patient.NewAllergyRepoPG(pool),
		patient.NewVitalsRepoPG(pool),
	)
	patientHandler := patient.NewHandler(patientSvc)
	patientHandler.RegisterRoutes(apiV1)

	// Outcome notifications to the charge nurse go through the template
	// engine; the log sender stands in for a real pager integration.
	notifyMgr := notification.NewManager(nil)
	notifyHandler := notification.NewHandler(notifyMgr)
	notifyHandler.RegisterRoutes(apiV1)

	// Witness credentials: in-memory store with a seeded dev witness in
	// development, the practitioner_credential table otherwise
	// (registered via `mar-server credential set`).
	var credentials mar.CredentialVerifier
	if cfg.IsDev() {
		static := auth.NewStaticCredentialStore()
		_ = static.SetCredential(ctx, "Dev Witness", "0000")
		logger.Warn().Msg("development mode: witness credentials are in-memory (Dev Witness / 0000)")
		credentials = static
	} else {
		credentials = auth.NewPGCredentialStore(pool)
	}

	// MAR domain
	marSvc := mar.NewService(
		mar.NewOrderRepoPG(pool),
		mar.NewAdministrationRepoPG(pool),
		&patientDirectory{patients: patientSvc},
		credentials,
		&notifierAdapter{mgr: notifyMgr},
	)
	marSvc.SetCredentialMinLength(cfg.CredentialMinLength)
	marHandler := mar.NewHandler(marSvc)
	marHandler.RegisterRoutes(apiV1)

	// Health endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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

// patientDirectory adapts the patient service to the snapshot lookup the
// administration workflow needs.
type patientDirectory struct {
	patients *patient.Service
}

func (d *patientDirectory) Lookup(ctx context.Context, patientID uuid.UUID) (*mar.PatientContext, error) {
	p, err := d.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	allergies, err := d.patients.ListAllergies(ctx, patientID)
	if err != nil {
		return nil, err
	}
	substances := make([]string, len(allergies))
	for i, a := range allergies {
		substances[i] = a.Substance
	}

	var vitals *mar.Vitals
	if v, err := d.patients.LatestVitals(ctx, patientID); err == nil && v != nil {
		vitals = &mar.Vitals{
			Temperature:      v.Temperature,
			Pulse:            v.Pulse,
			BPSystolic:       v.BPSystolic,
			BPDiastolic:      v.BPDiastolic,
			RespiratoryRate:  v.RespiratoryRate,
			OxygenSaturation: v.OxygenSaturation,
			PainLevel:        v.PainLevel,
			RecordedAt:       v.RecordedAt,
		}
	}

	return &mar.PatientContext{
		PatientID: p.ID,
		MRN:       p.MRN,
		Name:      p.FullName(),
		Allergies: substances,
		Vitals:    vitals,
		IsNPO:     p.IsNPO,
	}, nil
}

// notifierAdapter drops the notice returned by the manager; outcome
// delivery is observable through the notification API, never through
// the charting path.
type notifierAdapter struct {
	mgr *notification.Manager
}

func (n *notifierAdapter) Publish(ctx context.Context, template, recipient string, vars map[string]string) {
	n.mgr.Publish(ctx, template, recipient, vars)
}
