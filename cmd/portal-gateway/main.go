package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/syllabus-portal/api/swagger"
	"github.com/noah-isme/syllabus-portal/internal/handler"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	"github.com/noah-isme/syllabus-portal/internal/router"
	"github.com/noah-isme/syllabus-portal/internal/service"
	"github.com/noah-isme/syllabus-portal/pkg/cache"
	"github.com/noah-isme/syllabus-portal/pkg/config"
	"github.com/noah-isme/syllabus-portal/pkg/database"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

// @title Syllabus Portal Gateway
// @version 1.0.0
// @description Gateway for syllabus authoring, versioning and review workflow
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drafts, closeDrafts := newDraftStore(ctx, cfg, logr)
	defer closeDrafts()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var notifications *service.NotificationService
	onUnauthorized := func(_ context.Context, session *models.SessionContext) {
		logr.Warn("backend rejected session", logger.SessionFields(session)...)
		if notifications != nil && session != nil {
			notifications.StopWatching(session)
		}
	}
	backend := func(name, baseURL string) *httpclient.Client {
		return httpclient.New(httpclient.Options{
			Name:           name,
			BaseURL:        baseURL,
			Timeout:        cfg.Backends.Timeout,
			ActorHeader:    cfg.Backends.ActorHeader,
			RoleHeader:     cfg.Backends.RoleHeader,
			Observer:       metrics,
			OnUnauthorized: onUnauthorized,
			Logger:         logr,
		})
	}

	poller := jobs.NewPoller(cfg.Polling.Interval, cfg.Polling.MaxAttempts)

	versioning := service.NewVersioningService(
		repository.NewSyllabusRepository(backend("syllabus", cfg.Backends.SyllabusURL)),
		service.NewDraftStore(drafts),
		logr,
		service.WithContentStringFallback(cfg.Backends.ContentStringFallback),
	)
	dispatcher := service.NewApprovalDispatcher(repository.NewWorkflowRepository(backend("workflow", cfg.Backends.WorkflowURL)), metrics, logr, service.WithSettledHook(versioning.Forget))
	thread := service.NewReviewThreadService(repository.NewReviewCommentRepository(backend("review", cfg.Backends.ReviewURL)), validate, logr)
	notifications = service.NewNotificationService(repository.NewNotificationRepository(backend("notification", cfg.Backends.NotificationURL)), metrics, cfg.Notifications.Workers, logr)
	assist := service.NewAssistService(repository.NewAssistRepository(backend("assist", cfg.Backends.AssistURL)), poller, metrics, logr)
	health := service.NewHealthService([]service.HealthTarget{
		{Name: "syllabus", BaseURL: cfg.Backends.SyllabusURL},
		{Name: "workflow", BaseURL: cfg.Backends.WorkflowURL},
		{Name: "review", BaseURL: cfg.Backends.ReviewURL},
		{Name: "notification", BaseURL: cfg.Backends.NotificationURL},
		{Name: "assist", BaseURL: cfg.Backends.AssistURL},
	}, cfg.Health.Timeout, poller, metrics, logr)

	exporter := service.NewComparisonExporter(nil, 0, logr)
	if exports, err := storage.NewLocalStorage(cfg.Exports.Dir); err != nil {
		logr.Warn("export directory unavailable, exports will not be kept", zap.Error(err))
	} else {
		exporter = service.NewComparisonExporter(exports, 24*time.Hour, logr)
	}

	notifications.Start(ctx)
	defer notifications.Stop()

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Auth:           service.NewAuthService(cfg.JWT.Secret),
	}, router.Handlers{
		Syllabus:     handler.NewSyllabusHandler(versioning, exporter, validate),
		Workflow:     handler.NewWorkflowHandler(dispatcher, validate),
		Comment:      handler.NewCommentHandler(thread),
		Notification: handler.NewNotificationHandler(ctx, notifications, cfg.Notifications.StreamEnabled),
		Assist:       handler.NewAssistHandler(assist),
		Metrics:      handler.NewMetricsHandler(metrics, health),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "draft_store", cfg.Drafts.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}

// newDraftStore picks the local draft backend. Redis and Postgres fall back
// to memory when unreachable so editing keeps working.
func newDraftStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (repository.KeyValueStore, func()) {
	noop := func() {}
	switch cfg.Drafts.Store {
	case config.DraftStoreFile:
		files, err := storage.NewLocalStorage(cfg.Drafts.Dir)
		if err != nil {
			logr.Warn("draft directory unavailable, using memory", zap.Error(err))
			return repository.NewMemoryKVStore(), noop
		}
		return repository.NewFileKVStore(files, cfg.Drafts.TTL), noop

	case config.DraftStoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, using memory draft store", zap.Error(err))
			return repository.NewMemoryKVStore(), noop
		}
		store := repository.NewRedisKVStore(client, "portal", cfg.Drafts.TTL, logr)
		return store, func() { _ = store.Close() }

	case config.DraftStorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Warn("postgres unavailable, using memory draft store", zap.Error(err))
			return repository.NewMemoryKVStore(), noop
		}
		if err := database.EnsureDraftSchema(ctx, db); err != nil {
			logr.Warn("draft schema setup failed, using memory draft store", zap.Error(err))
			_ = db.Close()
			return repository.NewMemoryKVStore(), noop
		}
		store := repository.NewPostgresKVStore(db, "drafts", cfg.Drafts.TTL)
		go purgeExpiredDrafts(ctx, store, logr)
		return store, func() { _ = db.Close() }

	default:
		return repository.NewMemoryKVStore(), noop
	}
}

func purgeExpiredDrafts(ctx context.Context, store *repository.PostgresKVStore, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.PurgeExpired(ctx)
			if err != nil {
				logr.Warn("draft purge failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logr.Info("purged expired drafts", zap.Int64("count", removed))
			}
		}
	}
}
