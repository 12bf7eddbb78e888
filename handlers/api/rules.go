package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"maildesk/models"
	"maildesk/rules"
	"maildesk/storage"
	"maildesk/utils"
)

// RuleHandler serves the filter-rule authoring surface. Clients edit a
// working copy of the whole list and persist it in one save-all call;
// there is no partial persistence of a subset.
type RuleHandler struct {
	store *storage.RuleStore
}

// NewRuleHandler creates a rule handler backed by the given store.
func NewRuleHandler(store *storage.RuleStore) *RuleHandler {
	return &RuleHandler{store: store}
}

// List returns the persisted rule set sorted for display.
func (h *RuleHandler) List(c *fiber.Ctx) error {
	list, err := h.store.LoadRuleSet()
	if err != nil {
		return utils.InternalServerError("failed to load rules", err)
	}
	if list == nil {
		list = []models.FilterRule{}
	}
	return c.JSON(fiber.Map{"data": list})
}

// Draft mints a new in-memory rule for the authoring UI. Nothing is
// persisted until the next save-all.
func (h *RuleHandler) Draft(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(rules.NewDraftRule())
}

// SaveAll validates and persists the entire working copy. Any invalid rule
// rejects the whole set; the working state stays with the client so nothing
// is discarded on refusal.
func (h *RuleHandler) SaveAll(c *fiber.Ctx) error {
	var list []models.FilterRule
	if err := c.BodyParser(&list); err != nil {
		return utils.BadRequestError("invalid rule list payload", err)
	}

	saved, err := h.store.SaveRuleSet(list)
	if err != nil {
		var vErr *rules.ValidationError
		if errors.As(err, &vErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation_failed",
				"rule_id": vErr.RuleID,
				"reason":  vErr.Reason,
			})
		}
		return utils.InternalServerError("failed to save rules", err)
	}

	utils.Log.Info("rule set saved: %d rules", len(saved))
	return c.JSON(fiber.Map{"data": saved})
}

// Evaluate runs the persisted rule set against one message and returns the
// merged automation outcome. This is the hook the classification step calls
// per incoming email.
func (h *RuleHandler) Evaluate(c *fiber.Ctx) error {
	var email models.ReceivedEmail
	if err := c.BodyParser(&email); err != nil {
		return utils.BadRequestError("invalid email payload", err)
	}

	list, err := h.store.LoadRuleSet()
	if err != nil {
		return utils.InternalServerError("failed to load rules", err)
	}

	return c.JSON(rules.EvaluateAll(list, &email))
}
