package models

import "time"

// Notification is a message addressed to the current actor.
type Notification struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type,omitempty"`
	Link      string     `json:"link,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// NotificationSnapshot is the last fully refetched notification state.
type NotificationSnapshot struct {
	UnreadCount int            `json:"unreadCount"`
	Items       []Notification `json:"items"`
	RefreshedAt time.Time      `json:"refreshedAt"`
}

// NotificationEvent is one message received on the push stream.
type NotificationEvent struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
	Data string `json:"data,omitempty"`
}
