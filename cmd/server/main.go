// Command server runs the club invitation and event registration API together
// with the audit outbox dispatcher.
//
// @title Reconned API
// @version 1.0
// @description Club invitations, memberships and event registrations.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey CronSecret
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"reconned/config"
	"reconned/internal/adapters/auth"
	"reconned/internal/adapters/email"
	"reconned/internal/adapters/storage"
	deliveryhttp "reconned/internal/delivery/http"
	"reconned/internal/delivery/http/controllers"
	"reconned/internal/repository/postgres"
	"reconned/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := config.NewLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("schema applied")
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.InsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	fileStorage, err := storage.NewFileStorage(storage.Config{
		Provider: cfg.Storage.Provider,
		S3: storage.S3Config{
			Region:          cfg.Email.AWSRegion,
			AccessKeyID:     cfg.Email.AWSAccessKeyID,
			SecretAccessKey: cfg.Email.AWSSecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			Endpoint:        cfg.Storage.Endpoint,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create file storage: %w", err)
	}

	store := postgres.NewStore(db)
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)
	recorder := services.NewAuditRecorder(logger)
	dispatcher := services.NewAuditDispatcher(store, services.AuditDispatcherConfig{
		PollInterval: cfg.Audit.PollInterval,
		BatchSize:    cfg.Audit.BatchSize,
		MaxAttempts:  cfg.Audit.MaxAttempts,
	}, logger)

	invitationService := services.NewInvitationService(store, recorder, dispatcher, emailService, logger, cfg.AppURL, cfg.RequestTimeout)
	membershipService := services.NewMembershipService(store, recorder, dispatcher, cfg.RequestTimeout)
	registrationService := services.NewRegistrationService(store, recorder, dispatcher, emailService, logger, cfg.AppURL, cfg.RequestTimeout)
	maintenanceService := services.NewMaintenanceService(store, fileStorage, emailService, logger)

	handler := deliveryhttp.NewRouter(deliveryhttp.Controllers{
		Invitations:   controllers.NewInvitationController(logger, invitationService, cfg.AppURL),
		Memberships:   controllers.NewMembershipController(logger, membershipService),
		Registrations: controllers.NewRegistrationController(logger, registrationService),
		Admin:         controllers.NewAdminController(logger, maintenanceService, invitationService),
	}, deliveryhttp.RouterConfig{
		Verifier:       auth.NewJWTVerifier(cfg.JWTSecret),
		SessionCookie:  cfg.SessionCookie,
		CronSecret:     cfg.CronSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})
	return g.Wait()
}
