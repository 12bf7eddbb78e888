package models

import "time"

// NotificationType distinguishes plain notices from actionable invitations.
type NotificationType string

const (
	NotificationInfo       NotificationType = "info"
	NotificationNewEmail   NotificationType = "new_email"
	NotificationInvitation NotificationType = "invitation"
)

// Notification is an id-keyed record in the external notification store.
// Invitations carry a two-step flow: remote accept/reject, then local
// mark-as-read.
type Notification struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	IsRead    bool             `json:"is_read"`
	Link      string           `json:"link,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// PushEvent is a real-time event fanned out to SSE/WebSocket subscribers.
type PushEvent struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"` // "new_email", "deleted", "status_change", "sync"
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Time    time.Time              `json:"time"`
}
