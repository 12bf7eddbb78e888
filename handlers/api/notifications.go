package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"maildesk/mailapi"
	"maildesk/utils"
)

// NotificationHandler proxies the external notification store: id-keyed
// remote mutations, with invitations adding a two-step accept/reject flow.
type NotificationHandler struct {
	api *mailapi.Client
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(api *mailapi.Client) *NotificationHandler {
	return &NotificationHandler{api: api}
}

// List returns the notification list.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	list, err := h.api.FetchNotifications(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

// MarkRead marks one notification as read.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	if err := h.api.MarkNotificationRead(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

// MarkAllRead marks every notification as read.
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	if err := h.api.MarkAllNotificationsRead(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Delete removes a notification. Destructive, so confirm is required.
func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	if c.Query("confirm") != "true" {
		return utils.BadRequestError("deletion requires confirm=true", nil)
	}
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	if err := h.api.DeleteNotification(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": id})
}

// Accept accepts an invitation: remote decision call first, then the local
// mark-as-read; the response carries the redirect target when one applies.
func (h *NotificationHandler) Accept(c *fiber.Ctx) error {
	return h.decide(c, h.api.AcceptInvitation, "accepted")
}

// Reject declines an invitation with the same two-step flow.
func (h *NotificationHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, h.api.RejectInvitation, "rejected")
}

func (h *NotificationHandler) decide(c *fiber.Ctx, op func(ctx context.Context, id int64) error, outcome string) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := op(c.Context(), id); err != nil {
		return err
	}

	// The decision succeeded; a failed mark-as-read only leaves the badge
	// stale, so it is logged rather than failing the request.
	if err := h.api.MarkNotificationRead(c.Context(), id); err != nil {
		utils.Log.Warn("failed to mark invitation %d as read after %s: %v", id, outcome, err)
	}

	redirect := c.Query("redirect")
	return c.JSON(fiber.Map{
		"id":       id,
		"outcome":  outcome,
		"redirect": redirect,
	})
}

func notificationID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, utils.BadRequestError("invalid notification id", err)
	}
	return id, nil
}
