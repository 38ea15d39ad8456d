package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	"github.com/noah-isme/syllabus-portal/internal/service"
	"github.com/noah-isme/syllabus-portal/pkg/config"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

// app holds everything a command needs. It is built once per invocation,
// after flags are parsed.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	out      io.Writer
	validate *validator.Validate

	auth          *service.AuthService
	sessions      *service.SessionStore
	versioning    *service.VersioningService
	dispatcher    *service.ApprovalDispatcher
	thread        *service.ReviewThreadService
	notifications *service.NotificationService
	assist        *service.AssistService
	health        *service.HealthService
	exporter      *service.ComparisonExporter
	metrics       *service.MetricsService

	// announceRefresh prints every notification refetch; set by watch.
	announceRefresh bool
}

type appOptions struct {
	stateDir string
	verbose  bool
	out      io.Writer
}

func defaultStateDir() string {
	if dir := os.Getenv("SYLLABUSCTL_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syllabusctl"
	}
	return filepath.Join(home, ".syllabusctl")
}

// setup loads config and wires the services. Closures below capture a, so
// it must be filled in place.
func (a *app) setup(opts appOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr and stay quiet unless asked for.
	cfg.Log.Format = "console"
	cfg.Log.Level = "warn"
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	files, err := storage.NewLocalStorage(opts.stateDir)
	if err != nil {
		return fmt.Errorf("open state directory: %w", err)
	}
	kv := repository.NewFileKVStore(files, cfg.Drafts.TTL)

	a.cfg = cfg
	a.logger = logr
	a.out = opts.out
	a.validate = validator.New()
	a.auth = service.NewAuthService(cfg.JWT.Secret)
	a.sessions = service.NewSessionStore(kv)
	a.metrics = service.NewMetricsService()

	// A 401 from any backend ends the stored session.
	onUnauthorized := func(ctx context.Context, session *models.SessionContext) {
		logr.Warn("backend rejected session, logging out", logger.SessionFields(session)...)
		if err := a.sessions.Clear(context.WithoutCancel(ctx)); err != nil {
			logr.Warn("failed to clear session", zap.Error(err))
		}
	}
	backend := func(name, baseURL string) *httpclient.Client {
		return httpclient.New(httpclient.Options{
			Name:           name,
			BaseURL:        baseURL,
			Timeout:        cfg.Backends.Timeout,
			ActorHeader:    cfg.Backends.ActorHeader,
			RoleHeader:     cfg.Backends.RoleHeader,
			Observer:       a.metrics,
			OnUnauthorized: onUnauthorized,
			Logger:         logr,
		})
	}

	poller := jobs.NewPoller(cfg.Polling.Interval, cfg.Polling.MaxAttempts)

	a.versioning = service.NewVersioningService(
		repository.NewSyllabusRepository(backend("syllabus", cfg.Backends.SyllabusURL)),
		service.NewDraftStore(kv),
		logr,
		service.WithContentStringFallback(cfg.Backends.ContentStringFallback),
	)
	a.dispatcher = service.NewApprovalDispatcher(repository.NewWorkflowRepository(backend("workflow", cfg.Backends.WorkflowURL)), a.metrics, logr, service.WithSettledHook(a.versioning.Forget))
	a.thread = service.NewReviewThreadService(repository.NewReviewCommentRepository(backend("review", cfg.Backends.ReviewURL)), a.validate, logr)
	a.assist = service.NewAssistService(repository.NewAssistRepository(backend("assist", cfg.Backends.AssistURL)), poller, a.metrics, logr)
	a.health = service.NewHealthService([]service.HealthTarget{
		{Name: "syllabus", BaseURL: cfg.Backends.SyllabusURL},
		{Name: "workflow", BaseURL: cfg.Backends.WorkflowURL},
		{Name: "review", BaseURL: cfg.Backends.ReviewURL},
		{Name: "notification", BaseURL: cfg.Backends.NotificationURL},
		{Name: "assist", BaseURL: cfg.Backends.AssistURL},
	}, cfg.Health.Timeout, poller, a.metrics, logr)
	a.notifications = service.NewNotificationService(
		repository.NewNotificationRepository(backend("notification", cfg.Backends.NotificationURL)),
		a.metrics,
		cfg.Notifications.Workers,
		logr,
		service.WithRefreshHook(func(actorID string, snapshot models.NotificationSnapshot) {
			if !a.announceRefresh {
				return
			}
			fmt.Fprintf(a.out, "%s unread=%d items=%d\n", snapshot.RefreshedAt.Format("15:04:05"), snapshot.UnreadCount, len(snapshot.Items))
		}),
	)
	a.exporter = service.NewComparisonExporter(nil, 0, logr)
	return nil
}

// session loads the stored session or explains how to get one.
func (a *app) session(ctx context.Context) (*models.SessionContext, error) {
	session, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w (run `syllabusctl login` first)", err)
	}
	return session, nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) close() {
	_ = a.logger.Sync()
}
