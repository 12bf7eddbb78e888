package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"maildesk/inbox"
	"maildesk/mailsync"
	"maildesk/utils"
)

// InboxHandler exposes the reconciliation store over HTTP. Filter state
// travels in query parameters; mutations are id-keyed.
type InboxHandler struct {
	store  *inbox.Store
	syncer *mailsync.Syncer
	hub    *Hub
}

// NewInboxHandler creates the inbox handler. The syncer may be nil when no
// local IMAP account is configured; sync then delegates to the backend.
func NewInboxHandler(store *inbox.Store, syncer *mailsync.Syncer, hub *Hub) *InboxHandler {
	return &InboxHandler{store: store, syncer: syncer, hub: hub}
}

// List applies view/filter/page parameters and returns the visible window.
// A view switch resets page and filters to the view defaults before any
// explicit parameter is applied.
func (h *InboxHandler) List(c *fiber.Ctx) error {
	if view := c.Query("view"); view != "" && inbox.View(view) != h.store.ActiveView() {
		if err := h.store.SetView(inbox.View(view)); err != nil {
			return err
		}
	}
	if search := c.Query("search"); search != "" || c.Context().QueryArgs().Has("search") {
		h.store.SetSearch(search)
	}
	if v := c.Query("unread"); v != "" {
		h.store.SetUnreadOnly(v == "true")
	}
	if v := c.Query("starred"); v != "" {
		h.store.SetStarredOnly(v == "true")
	}
	if v := c.Query("archived"); v != "" {
		h.store.SetArchived(v == "true")
	}
	if p := c.Query("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil {
			h.store.SetPage(page)
		}
	}

	page, err := h.store.Load(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Open returns one message and marks it read optimistically.
func (h *InboxHandler) Open(c *fiber.Ctx) error {
	id, err := emailID(c)
	if err != nil {
		return err
	}
	email, err := h.store.Open(c.Context(), id)
	if err != nil {
		if errors.Is(err, inbox.ErrActionInFlight) {
			return utils.NewAppError(fiber.StatusConflict, "action already in progress", err)
		}
		return err
	}
	return c.JSON(email)
}

// ToggleRead flips the read flag.
func (h *InboxHandler) ToggleRead(c *fiber.Ctx) error {
	return h.mutate(c, h.store.ToggleRead, "read")
}

// ToggleStar flips the starred flag.
func (h *InboxHandler) ToggleStar(c *fiber.Ctx) error {
	return h.mutate(c, h.store.ToggleStar, "star")
}

// Archive moves the message out of the active mailbox.
func (h *InboxHandler) Archive(c *fiber.Ctx) error {
	return h.mutate(c, h.store.Archive, "archive")
}

// Unarchive restores an archived message.
func (h *InboxHandler) Unarchive(c *fiber.Ctx) error {
	return h.mutate(c, h.store.Unarchive, "unarchive")
}

// Delete permanently removes a message. Destructive, so the explicit
// confirm parameter is required and the outcome is always reported.
func (h *InboxHandler) Delete(c *fiber.Ctx) error {
	if c.Query("confirm") != "true" {
		return utils.BadRequestError("deletion requires confirm=true", nil)
	}

	id, err := emailID(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.Context(), id); err != nil {
		return err
	}

	h.hub.NotifyEmailDeleted(id)
	return c.JSON(fiber.Map{"deleted": id})
}

// Sync runs a mailbox sync pass: the local IMAP provider when configured,
// the backend's sync service otherwise. Subscribers are notified so open
// clients refresh their lists.
func (h *InboxHandler) Sync(c *fiber.Ctx) error {
	if h.syncer != nil && h.syncer.Enabled() {
		result, err := h.syncer.Run(c.Context())
		if err != nil {
			return utils.BadGatewayError("mailbox sync failed", err)
		}
		if result.Synced > 0 {
			h.hub.NotifySync(result.Synced)
		}
		return c.JSON(result)
	}

	result, err := h.store.Sync(c.Context())
	if err != nil {
		return err
	}
	if result.Synced > 0 {
		h.hub.NotifySync(result.Synced)
	}
	return c.JSON(result)
}

// UnreadCount returns the badge value for the navigation bar.
func (h *InboxHandler) UnreadCount(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"unread_count": h.store.UnreadCount()})
}

func (h *InboxHandler) mutate(c *fiber.Ctx, op func(ctx context.Context, id int64) error, status string) error {
	id, err := emailID(c)
	if err != nil {
		return err
	}
	if err := op(c.Context(), id); err != nil {
		if errors.Is(err, inbox.ErrActionInFlight) {
			return utils.NewAppError(fiber.StatusConflict, "action already in progress", err)
		}
		return err
	}
	h.hub.NotifyStatusChange(id, status)
	return c.JSON(fiber.Map{"ok": true})
}

func emailID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, utils.BadRequestError("invalid email id", err)
	}
	return id, nil
}
