package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	appointmenthandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authhandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	doctorhandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	prescriptionhandler "github.com/jwalitptl/clinic-api/internal/handler/prescription"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	eventService "github.com/jwalitptl/clinic-api/internal/service/event"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	prescriptionService "github.com/jwalitptl/clinic-api/internal/service/prescription"
	slotService "github.com/jwalitptl/clinic-api/internal/service/slot"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "clinic-api",
		Short:        "Clinic appointment booking API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(createAdminCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(*configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(*configPath)
			if err != nil {
				return err
			}
			setupLogger(cfg)

			db, err := postgres.NewDB(cfg.PostgresConfig())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Msg("database schema is up to date")
			return nil
		},
	}
}

func createAdminCmd(configPath *string) *cobra.Command {
	var username, emailAddr, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(*configPath)
			if err != nil {
				return err
			}
			l := setupLogger(cfg)

			db, err := postgres.NewDB(cfg.PostgresConfig())
			if err != nil {
				return err
			}
			defer db.Close()

			tokens, err := auth.NewTokenAuthority(cfg.AuthConfig(), nil)
			if err != nil {
				return err
			}
			base := postgres.NewBaseRepository(db)
			svc := authService.NewService(
				postgres.NewPatientRepository(db),
				postgres.NewDoctorRepository(db),
				postgres.NewAdminRepository(db),
				tokens,
				security.NewBcryptHasher(0),
				eventService.NewEventService(postgres.NewOutboxRepository(base)),
				newEmailService(cfg, l),
				l,
			)

			admin, err := svc.ProvisionAdmin(cmd.Context(), username, emailAddr, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %d\n", admin.Email, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&emailAddr, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runServer(cfg *config.Config) error {
	l := setupLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if err := validator.RegisterGin(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.PostgresConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	adminRepo := postgres.NewAdminRepository(db)
	availabilityRepo := postgres.NewAvailabilityRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	prescriptionRepo := postgres.NewPrescriptionRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	tokens, err := auth.NewTokenAuthority(cfg.AuthConfig(), nil)
	if err != nil {
		return err
	}
	hasher := security.NewBcryptHasher(0)

	// Initialize services
	slotSvc := slotService.NewService(availabilityRepo, appointmentRepo, doctorRepo,
		slotService.Config{RuleCacheTTL: cfg.Cache.RulesTTL, Location: loc}, l, m, nil)
	appointmentSvc := appointmentService.NewService(appointmentRepo, doctorRepo, patientRepo, slotSvc, loc, l, m, nil)
	authSvc := authService.NewService(patientRepo, doctorRepo, adminRepo, tokens, hasher,
		eventService.NewEventService(outboxRepo), newEmailService(cfg, l), l)
	doctorSvc := doctorService.NewService(doctorRepo, hasher, l)
	patientSvc := patientService.NewService(patientRepo, l)
	prescriptionSvc := prescriptionService.NewService(prescriptionRepo, appointmentRepo, l)

	// Router
	var gatherer prometheus.Gatherer
	var httpMetrics *middleware.HTTPMetrics
	if cfg.Metrics.Enabled {
		gatherer = reg
		httpMetrics = middleware.NewHTTPMetrics(cfg.Metrics.Namespace, reg)
	}
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:    rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		})
	}
	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.AllowedOrigins
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(tokens), router.Handlers{
		Health:       health.NewHandler(map[string]health.Pinger{"database": &base}, gatherer),
		Auth:         authhandler.NewHandler(authSvc),
		Doctor:       doctorhandler.NewHandler(doctorSvc, slotSvc),
		Appointment:  appointmenthandler.NewHandler(appointmentSvc, loc),
		Patient:      patienthandler.NewHandler(patientSvc),
		Prescription: prescriptionhandler.NewHandler(prescriptionSvc),
	}, router.RouterConfig{
		Mode:        cfg.Server.Mode,
		CORS:        cors,
		Security:    middleware.DefaultSecurityConfig(),
		SizeLimit:   middleware.SizeLimitConfig{MaxBodySize: cfg.Server.MaxBodyBytes},
		Timeout:     middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout},
		RateLimiter: limiter,
		Metrics:     httpMetrics,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	l.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	l.Info("Server exited properly")
	return nil
}

func setupLogger(cfg *config.Config) *logger.Logger {
	l := logger.NewLogger(cfg.LoggerConfig())
	logger.SetGlobal(l)
	return l
}

func newEmailService(cfg *config.Config, l *logger.Logger) email.Service {
	if cfg.SMTP.Host == "" {
		l.Warn("SMTP host not configured, outgoing mail is only logged")
		return email.NewLogService(l)
	}
	return email.NewSMTPService(cfg.EmailConfig(), l)
}
