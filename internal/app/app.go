package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"go-auth-service/internal/config"
	"go-auth-service/internal/database"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/mail"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/router"
	"go-auth-service/internal/security"
	"go-auth-service/internal/service"
)

type App struct {
	server       *http.Server
	worker       *mail.Worker
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	verificationRepo := repository.NewVerificationRepository(db.Pool)
	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	slog.Info("database ready")

	issuer, err := security.NewTokenIssuer(security.IssuerConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	cleanupFuncs := []func(){db.Close}

	mailer, worker, mailCleanup, err := newMailer(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	cleanupFuncs = append(cleanupFuncs, mailCleanup...)

	authService := service.NewAuthService(
		userRepo,
		verificationRepo,
		mailer,
		security.NewPasswordHasher(cfg.BcryptCost),
		issuer,
		service.AuthConfig{
			FrontendURL:     cfg.FrontendURL,
			VerificationTTL: cfg.VerificationTTL,
			DefaultRole:     cfg.DefaultRole,
		},
	)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService, auditService),
		Audit:  handler.NewAuditHandler(auditService),
		Health: handler.NewHealthHandler(db),
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go authService.StartCleanupTicker(cleanupCtx, cfg.VerificationCleanupInterval)
	cleanupFuncs = append(cleanupFuncs, cleanupCancel)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		worker:       worker,
		cleanupFuncs: cleanupFuncs,
	}, nil
}

// newMailer picks inline SMTP delivery or the asynq queue. In queue mode the
// returned worker delivers through the same SMTP sender.
func newMailer(ctx context.Context, cfg *config.Config) (service.Mailer, *mail.Worker, []func(), error) {
	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	})

	if cfg.MailDelivery != config.MailDeliveryQueue {
		slog.Info("mail delivery configured", "mode", config.MailDeliverySMTP, "host", cfg.SMTPHost)
		return sender, nil, nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("failed to reach redis for mail queue: %w", err)
	}
	_ = rdb.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	client := asynq.NewClient(redisOpt)
	worker := mail.NewWorker(redisOpt, cfg.MailWorkerConcurrency, sender)

	slog.Info("mail delivery configured", "mode", config.MailDeliveryQueue, "redis", cfg.RedisAddr)
	return mail.NewQueueMailer(client, 0), worker, []func(){func() { _ = client.Close() }}, nil
}

func (a *App) Run() error {
	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			return fmt.Errorf("failed to start mail worker: %w", err)
		}
	}

	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	if a.worker != nil {
		a.worker.Shutdown()
	}
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
