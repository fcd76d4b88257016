package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/cycles"
	"reviewflow/internal/domain/feedback"
	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/domain/selections"
	"reviewflow/internal/domain/users"
	"reviewflow/internal/platform/config"
	cryptoutil "reviewflow/internal/platform/crypto"
	"reviewflow/internal/platform/db"
	"reviewflow/internal/platform/email"
	"reviewflow/internal/platform/jobs"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	audithandler "reviewflow/internal/transport/http/handlers/audit"
	authhandler "reviewflow/internal/transport/http/handlers/auth"
	cycleshandler "reviewflow/internal/transport/http/handlers/cycles"
	feedbackhandler "reviewflow/internal/transport/http/handlers/feedback"
	notificationshandler "reviewflow/internal/transport/http/handlers/notifications"
	selectionshandler "reviewflow/internal/transport/http/handlers/selections"
	usershandler "reviewflow/internal/transport/http/handlers/users"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/migrations"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
}

// New connects to the database, applies migrations and seed data as
// configured and assembles the HTTP router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrations.Files); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("crypto: %w", err)
	}

	app := &App{Config: cfg, DB: pool}
	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}

	perms := auth.DefaultPolicy()
	auditSvc := audit.New(pool)
	authSvc := auth.NewService(auth.NewStore(pool), crypto, auth.Options{
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		SessionTTL:     cfg.SessionTTL,
		MFAIssuer:      cfg.MFAIssuer,
	})
	userSvc := users.NewService(users.NewStore(pool))
	cycleSvc := cycles.NewService(cycles.NewStore(pool))

	notifySvc := notifications.New(notifications.NewStore(pool), email.New(cfg))
	notifySvc.DefaultFrom = cfg.EmailFrom
	var selectionNotifier selections.Notifier
	var feedbackNotifier feedback.Notifier
	if cfg.WorkflowNotifications {
		selectionNotifier = notifySvc
		feedbackNotifier = notifySvc
	}
	selectionSvc := selections.NewService(selections.NewStore(pool), cycleSvc, selectionNotifier)
	feedbackSvc := feedback.NewService(feedback.NewStore(pool), cycleSvc, feedbackNotifier)

	app.Jobs = jobs.New(jobs.NewRunLog(pool), cycleSvc, notifySvc, jobs.Schedule{
		CycleCloseInterval:        cfg.CycleCloseInterval,
		NotificationPurgeInterval: cfg.NotificationPurgeInterval,
		NotificationRetention:     cfg.NotificationRetention,
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Metrics(app.Metrics))
	router.Use(middleware.Auth(cfg.JWTSecret, authSvc))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if app.Metrics != nil {
		router.With(middleware.RequirePermission(auth.PermAuditRead, perms)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, app.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authhandler.NewHandler(authSvc, auditSvc, app.Metrics).RegisterRoutes(r)
		usershandler.NewHandler(userSvc, perms, auditSvc, app.Metrics).RegisterRoutes(r)
		cycleshandler.NewHandler(cycleSvc, perms, auditSvc, app.Jobs, app.Metrics).RegisterRoutes(r)
		selectionshandler.NewHandler(selectionSvc, perms, auditSvc, middleware.NewIdempotencyStore(pool), app.Metrics).RegisterRoutes(r)
		feedbackhandler.NewHandler(feedbackSvc, selectionSvc, perms, auditSvc, app.Metrics).RegisterRoutes(r)
		notificationshandler.NewHandler(notifySvc, perms, auditSvc, app.Metrics).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, perms).RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run starts the background jobs and serves HTTP until ctx is cancelled,
// then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	a.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("reviewflow server listening", "addr", a.Config.Addr, "env", a.Config.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// SetupLogging installs the JSON slog handler used by every binary.
func SetupLogging(cfg config.Config) {
	level := slog.LevelInfo
	if !cfg.IsProduction() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
