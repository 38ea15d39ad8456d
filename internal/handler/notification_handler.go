package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/middleware"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

type notificationService interface {
	Current(ctx context.Context, session *models.SessionContext) (*models.NotificationSnapshot, error)
	EnsureWatching(ctx context.Context, session *models.SessionContext) bool
	Watching(session *models.SessionContext) bool
	MarkRead(ctx context.Context, session *models.SessionContext, id string) (*models.NotificationSnapshot, error)
	MarkAllRead(ctx context.Context, session *models.SessionContext) (*models.NotificationSnapshot, error)
	Delete(ctx context.Context, session *models.SessionContext, id string) (*models.NotificationSnapshot, error)
}

// NotificationHandler exposes the actor's notification snapshot.
type NotificationHandler struct {
	service notificationService
	// watchCtx bounds stream watchers; they outlive the request that
	// started them.
	watchCtx context.Context
	stream   bool
}

// NewNotificationHandler constructs the handler. When stream is set the
// first read of an actor starts a push watcher bound to watchCtx.
func NewNotificationHandler(watchCtx context.Context, svc notificationService, stream bool) *NotificationHandler {
	if watchCtx == nil {
		watchCtx = context.Background()
	}
	return &NotificationHandler{service: svc, watchCtx: watchCtx, stream: stream}
}

// Current godoc
// @Summary Notification snapshot
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) Current(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if h.stream {
		h.service.EnsureWatching(h.watchCtx, session)
	}
	snap, err := h.service.Current(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "streaming", h.service.Watching(session))
	respondOK(c, snap)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	snap, err := h.service.MarkRead(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, snap)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	snap, err := h.service.MarkAllRead(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, snap)
}

// Delete godoc
// @Summary Delete a notification
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	snap, err := h.service.Delete(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, snap)
}
