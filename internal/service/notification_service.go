package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
	"github.com/noah-isme/syllabus-portal/pkg/sse"
)

type notificationBackend interface {
	List(ctx context.Context, session *models.SessionContext) ([]models.Notification, error)
	UnreadCount(ctx context.Context, session *models.SessionContext) (int, error)
	MarkRead(ctx context.Context, session *models.SessionContext, id string) error
	MarkAllRead(ctx context.Context, session *models.SessionContext) error
	Delete(ctx context.Context, session *models.SessionContext, id string) error
	Stream(ctx context.Context, session *models.SessionContext) (io.ReadCloser, error)
}

type refreshRecorder interface {
	RecordNotificationRefresh()
}

const refreshJobType = "notification_refresh"

// NotificationService keeps a per-actor snapshot of notifications. Every
// change, local or pushed, triggers a full refetch; nothing is merged
// incrementally.
type NotificationService struct {
	backend   notificationBackend
	metrics   refreshRecorder
	logger    *zap.Logger
	queue     *jobs.Queue
	onRefresh func(actorID string, snapshot models.NotificationSnapshot)
	backoff   time.Duration

	mu        sync.RWMutex
	snapshots map[string]models.NotificationSnapshot
	watching  map[string]*watcher
}

// watcher is one registration; a goroutine only ever removes its own.
type watcher struct {
	cancel context.CancelFunc
}

// NotificationOption configures the service.
type NotificationOption func(*NotificationService)

// WithRefreshHook is called after every successful refetch.
func WithRefreshHook(fn func(actorID string, snapshot models.NotificationSnapshot)) NotificationOption {
	return func(s *NotificationService) {
		s.onRefresh = fn
	}
}

// WithReconnectBackoff sets the pause between stream reconnects.
func WithReconnectBackoff(d time.Duration) NotificationOption {
	return func(s *NotificationService) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// NewNotificationService builds the service and its refetch queue. Call
// Start before Watch.
func NewNotificationService(backend notificationBackend, metrics refreshRecorder, workers int, logger *zap.Logger, opts ...NotificationOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		backend:   backend,
		metrics:   metrics,
		logger:    logger,
		backoff:   5 * time.Second,
		snapshots: make(map[string]models.NotificationSnapshot),
		watching:  make(map[string]*watcher),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.queue = jobs.NewQueue("notifications", svc.handleRefresh, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 2,
		RetryDelay: time.Second,
		Logger:     logger,
	})
	return svc
}

// Start launches the refetch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels every watcher and drains the workers.
func (s *NotificationService) Stop() {
	s.mu.Lock()
	for actor, w := range s.watching {
		w.cancel()
		delete(s.watching, actor)
	}
	s.mu.Unlock()
	s.queue.Stop()
}

func (s *NotificationService) handleRefresh(ctx context.Context, job jobs.Job) error {
	session, ok := job.Payload.(*models.SessionContext)
	if !ok || session == nil {
		return nil
	}
	_, err := s.Refresh(ctx, session)
	return err
}

// Refresh refetches the unread count and the list and replaces the stored
// snapshot.
func (s *NotificationService) Refresh(ctx context.Context, session *models.SessionContext) (*models.NotificationSnapshot, error) {
	count, err := s.backend.UnreadCount(ctx, session)
	if err != nil {
		return nil, err
	}
	items, err := s.backend.List(ctx, session)
	if err != nil {
		return nil, err
	}
	snapshot := models.NotificationSnapshot{UnreadCount: count, Items: items, RefreshedAt: time.Now().UTC()}
	actor := actorKey(session)
	s.mu.Lock()
	s.snapshots[actor] = snapshot
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordNotificationRefresh()
	}
	if s.onRefresh != nil {
		s.onRefresh(actor, snapshot)
	}
	return &snapshot, nil
}

// Snapshot returns the last refetched state of the actor, if any.
func (s *NotificationService) Snapshot(session *models.SessionContext) (models.NotificationSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[actorKey(session)]
	return snap, ok
}

// Current serves the stored snapshot while a watcher keeps it fresh and
// refetches otherwise.
func (s *NotificationService) Current(ctx context.Context, session *models.SessionContext) (*models.NotificationSnapshot, error) {
	if s.Watching(session) {
		if snap, ok := s.Snapshot(session); ok {
			return &snap, nil
		}
	}
	return s.Refresh(ctx, session)
}

// RequestRefresh queues a refetch. Requests for an actor that already has
// one waiting are coalesced.
func (s *NotificationService) RequestRefresh(session *models.SessionContext) error {
	_, err := s.queue.Enqueue(jobs.Job{
		Key:     "refresh:" + actorKey(session),
		Type:    refreshJobType,
		Payload: session,
	})
	return err
}

// Watch consumes the push stream until it ends or ctx is done. Each event
// queues a full refetch.
func (s *NotificationService) Watch(ctx context.Context, session *models.SessionContext) error {
	body, err := s.backend.Stream(ctx, session)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	return sse.Consume(ctx, body, func(ev sse.Event) error {
		s.logger.Debug("notification event", zap.String("actor_id", actorKey(session)), zap.String("event", ev.Event), zap.String("id", ev.ID))
		if err := s.RequestRefresh(session); err != nil {
			s.logger.Warn("failed to queue notification refresh", zap.Error(err))
		}
		return nil
	})
}

// EnsureWatching starts a reconnecting watcher for the actor unless one is
// running. It returns false when a watcher already existed.
func (s *NotificationService) EnsureWatching(ctx context.Context, session *models.SessionContext) bool {
	actor := actorKey(session)
	s.mu.Lock()
	if _, ok := s.watching[actor]; ok {
		s.mu.Unlock()
		return false
	}
	watchCtx, cancel := context.WithCancel(ctx)
	w := &watcher{cancel: cancel}
	s.watching[actor] = w
	s.mu.Unlock()

	go func() {
		defer s.release(actor, w)
		for {
			err := s.Watch(watchCtx, session)
			if watchCtx.Err() != nil {
				return
			}
			if err != nil {
				s.logger.Warn("notification stream dropped", zap.String("actor_id", actor), zap.Error(err))
				if errors.Is(err, appErrors.ErrUnauthorized) {
					return
				}
			}
			select {
			case <-watchCtx.Done():
				return
			case <-time.After(s.backoff):
			}
		}
	}()
	return true
}

// Watching reports whether a watcher runs for the actor.
func (s *NotificationService) Watching(session *models.SessionContext) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.watching[actorKey(session)]
	return ok
}

// StopWatching cancels the actor's watcher, if any.
func (s *NotificationService) StopWatching(session *models.SessionContext) {
	actor := actorKey(session)
	s.mu.Lock()
	if w, ok := s.watching[actor]; ok {
		w.cancel()
		delete(s.watching, actor)
	}
	s.mu.Unlock()
}

// release cancels w and unregisters it if it is still the actor's watcher.
func (s *NotificationService) release(actor string, w *watcher) {
	w.cancel()
	s.mu.Lock()
	if s.watching[actor] == w {
		delete(s.watching, actor)
	}
	s.mu.Unlock()
}

// MarkRead marks one notification read and refetches.
func (s *NotificationService) MarkRead(ctx context.Context, session *models.SessionContext, id string) (*models.NotificationSnapshot, error) {
	if err := s.backend.MarkRead(ctx, session, id); err != nil {
		return nil, err
	}
	return s.Refresh(ctx, session)
}

// MarkAllRead marks everything read and refetches.
func (s *NotificationService) MarkAllRead(ctx context.Context, session *models.SessionContext) (*models.NotificationSnapshot, error) {
	if err := s.backend.MarkAllRead(ctx, session); err != nil {
		return nil, err
	}
	return s.Refresh(ctx, session)
}

// Delete removes one notification and refetches.
func (s *NotificationService) Delete(ctx context.Context, session *models.SessionContext, id string) (*models.NotificationSnapshot, error) {
	if err := s.backend.Delete(ctx, session, id); err != nil {
		return nil, err
	}
	return s.Refresh(ctx, session)
}

func actorKey(session *models.SessionContext) string {
	if session == nil || session.ActorID == "" {
		return "anonymous"
	}
	return session.ActorID
}

