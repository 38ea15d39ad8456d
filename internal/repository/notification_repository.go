package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/pkg/httpclient"
)

// NotificationRepository talks to the notification backend.
type NotificationRepository struct {
	client *httpclient.Client
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(client *httpclient.Client) *NotificationRepository {
	return &NotificationRepository{client: client}
}

func (r *NotificationRepository) List(ctx context.Context, session *models.SessionContext) ([]models.Notification, error) {
	page, err := httpclient.GetPage[models.Notification](ctx, r.client, httpclient.Request{
		Path:      "/notifications",
		Session:   session,
		Operation: "list_notifications",
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// UnreadCount accepts a bare number or an object carrying count,
// unreadCount or unread.
func (r *NotificationRepository) UnreadCount(ctx context.Context, session *models.SessionContext) (int, error) {
	var raw json.RawMessage
	err := r.client.Do(ctx, httpclient.Request{
		Path:      "/notifications/unread-count",
		Session:   session,
		Operation: "unread_notifications",
	}, &raw)
	if err != nil {
		return 0, err
	}
	return decodeCount(raw)
}

func decodeCount(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("decode unread count: %w", err)
	}
	for _, key := range []string{"count", "unreadCount", "unread"} {
		if value, ok := obj[key]; ok {
			if err := json.Unmarshal(value, &n); err == nil {
				return n, nil
			}
			var text string
			if err := json.Unmarshal(value, &text); err == nil {
				if parsed, err := strconv.Atoi(text); err == nil {
					return parsed, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("decode unread count: no count field")
}

func (r *NotificationRepository) MarkRead(ctx context.Context, session *models.SessionContext, id string) error {
	return r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/notifications/%s/read", url.PathEscape(id)),
		Session:   session,
		Operation: "mark_notification_read",
	}, nil)
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, session *models.SessionContext) error {
	return r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      "/notifications/mark-all-read",
		Session:   session,
		Operation: "mark_all_notifications_read",
	}, nil)
}

func (r *NotificationRepository) Delete(ctx context.Context, session *models.SessionContext, id string) error {
	return r.client.Do(ctx, httpclient.Request{
		Method:    http.MethodDelete,
		Path:      "/notifications/" + url.PathEscape(id),
		Session:   session,
		Operation: "delete_notification",
	}, nil)
}

// Stream opens the push stream for the session's actor.
func (r *NotificationRepository) Stream(ctx context.Context, session *models.SessionContext) (io.ReadCloser, error) {
	query := url.Values{}
	if session != nil {
		query.Set("userId", session.ActorID)
	}
	return r.client.Stream(ctx, httpclient.Request{
		Path:      "/notifications/stream",
		Query:     query,
		Session:   session,
		Operation: "notification_stream",
	})
}
