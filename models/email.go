package models

import (
	"strings"
	"time"
)

// ClientRef is the optional CRM contact linked to a message, used as the
// sender display fallback.
type ClientRef struct {
	ID         int64  `json:"id"`
	Enterprise string `json:"enterprise,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// Attachment describes a file attached to a received email.
type Attachment struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ReceivedEmail is the local mirror of a remote mailbox record. Flags are
// independently toggleable; the authoritative copy lives in the backend.
type ReceivedEmail struct {
	ID             int64        `json:"id"`
	FromEmail      string       `json:"from_email"`
	FromName       string       `json:"from_name,omitempty"`
	Subject        string       `json:"subject"`
	Snippet        string       `json:"snippet,omitempty"`
	ReceivedAt     time.Time    `json:"received_at"`
	IsRead         bool         `json:"is_read"`
	IsStarred      bool         `json:"is_starred"`
	IsArchived     bool         `json:"is_archived"`
	Client         *ClientRef   `json:"client,omitempty"`
	HasAttachments bool         `json:"has_attachments"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ContentHTML    string       `json:"content_html,omitempty"`
	ContentText    string       `json:"content_text,omitempty"`
}

// SenderDomain returns the part of from_email after "@", lowercased.
func (e *ReceivedEmail) SenderDomain() string {
	if idx := strings.LastIndex(e.FromEmail, "@"); idx >= 0 {
		return strings.ToLower(e.FromEmail[idx+1:])
	}
	return ""
}

// HasContact reports whether a CRM contact is associated with the message.
func (e *ReceivedEmail) HasContact() bool {
	return e.Client != nil
}

// DisplayName is the sender name shown in list views: personal name first,
// then the CRM contact, then the bare address.
func (e *ReceivedEmail) DisplayName() string {
	if e.FromName != "" {
		return e.FromName
	}
	if e.Client != nil {
		if e.Client.Enterprise != "" {
			return e.Client.Enterprise
		}
		name := strings.TrimSpace(e.Client.FirstName + " " + e.Client.LastName)
		if name != "" {
			return name
		}
	}
	return e.FromEmail
}

// BodyText returns the plain text used for keyword scanning: content_text
// when present, otherwise the html body.
func (e *ReceivedEmail) BodyText() string {
	if e.ContentText != "" {
		return e.ContentText
	}
	return e.ContentHTML
}

// SyncResult is the outcome of a mailbox sync run.
type SyncResult struct {
	Synced int      `json:"synced"`
	Errors []string `json:"errors,omitempty"`
}
