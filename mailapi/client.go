// Package mailapi is the HTTP client for the CMS backend that owns the
// remote mailbox and the notification store. Every call is a single JSON
// request with the bearer token attached; all business validation lives on
// the other side of this boundary.
package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"maildesk/models"
	"maildesk/utils"
)

// InboxFilters is the query tuple for a paginated inbox fetch. Optional
// flags are pointers so "not filtered" and "filtered to false" stay distinct.
type InboxFilters struct {
	Page       int
	PageSize   int
	IsArchived *bool
	IsRead     *bool
	IsStarred  *bool
	Search     string
	View       string
}

// Client talks to the backend mailbox API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *utils.Logger
}

// NewClient creates a backend client. The timeout applies per request.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		log:        utils.Log.WithField("component", "mailapi"),
	}
}

type inboxResponse struct {
	Data []models.ReceivedEmail `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageCount int `json:"pageCount"`
		} `json:"pagination"`
		UnreadCount int `json:"unreadCount"`
	} `json:"meta"`
}

// FetchInbox issues the filtered, paginated mailbox query.
func (c *Client) FetchInbox(ctx context.Context, f InboxFilters) (*models.InboxPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("pageSize", strconv.Itoa(f.PageSize))
	if f.IsArchived != nil {
		q.Set("isArchived", strconv.FormatBool(*f.IsArchived))
	}
	if f.IsRead != nil {
		q.Set("isRead", strconv.FormatBool(*f.IsRead))
	}
	if f.IsStarred != nil {
		q.Set("isStarred", strconv.FormatBool(*f.IsStarred))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.View != "" && f.View != "inbox" {
		q.Set("view", f.View)
	}

	var out inboxResponse
	if err := c.do(ctx, http.MethodGet, "/received-emails?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	return models.NewInboxPage(out.Data, f.Page, f.PageSize,
		out.Meta.Pagination.PageCount, out.Meta.UnreadCount), nil
}

// FetchEmail retrieves one message, or nil when the backend has no record
// for the id.
func (c *Client) FetchEmail(ctx context.Context, id int64) (*models.ReceivedEmail, error) {
	var email models.ReceivedEmail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/received-emails/%d", id), nil, &email)
	if err != nil {
		if utils.StatusOf(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

// MarkRead marks a message as read.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/received-emails/%d/read", id), nil, nil)
}

// MarkUnread marks a message as unread.
func (c *Client) MarkUnread(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/received-emails/%d/unread", id), nil, nil)
}

// ToggleStar flips the starred flag on the backend copy.
func (c *Client) ToggleStar(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/received-emails/%d/star", id), nil, nil)
}

// Archive moves a message out of the active mailbox.
func (c *Client) Archive(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/received-emails/%d/archive", id), nil, nil)
}

// Unarchive restores an archived message.
func (c *Client) Unarchive(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/received-emails/%d/unarchive", id), nil, nil)
}

// Delete permanently removes a message.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/received-emails/%d", id), nil, nil)
}

// Sync asks the backend's mail sync service to pull new messages.
func (c *Client) Sync(ctx context.Context) (*models.SyncResult, error) {
	var result models.SyncResult
	if err := c.do(ctx, http.MethodPost, "/received-emails/sync", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateEmail pushes a newly synced message into the backend mailbox. Used
// by the local sync provider.
func (c *Client) CreateEmail(ctx context.Context, email *models.ReceivedEmail) error {
	return c.do(ctx, http.MethodPost, "/received-emails", email, nil)
}

// FetchNotifications retrieves the notification list.
func (c *Client) FetchNotifications(ctx context.Context) ([]models.Notification, error) {
	var out struct {
		Data []models.Notification `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/notifications/read-all", nil, nil)
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/notifications/%d", id), nil, nil)
}

// AcceptInvitation accepts an invitation notification on the backend. The
// caller is responsible for the follow-up local mark-as-read.
func (c *Client) AcceptInvitation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/accept", id), nil, nil)
}

// RejectInvitation declines an invitation notification on the backend.
func (c *Client) RejectInvitation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/reject", id), nil, nil)
}

// do executes one backend request. Non-2xx responses become AppErrors
// carrying the remote status so handlers can map not-found and expired
// resources onto distinct user-facing messages.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.BadGatewayError("backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the log, backends tend to
		// explain themselves there.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("%s %s returned %d: %s", method, path, resp.StatusCode, snippet)
		return utils.NewAppError(resp.StatusCode,
			fmt.Sprintf("backend returned %d", resp.StatusCode), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
