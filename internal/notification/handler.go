package notification

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler serves a user's inbox.
type Handler struct {
	inbox *Inbox
}

// NewHandler builds the inbox HTTP handler.
func NewHandler(inbox *Inbox) *Handler {
	return &Handler{inbox: inbox}
}

type messageResponse struct {
	Kind      string `json:"kind"`
	Level     string `json:"level"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// List returns the caller's notifications.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	msgs := h.inbox.List(uid)
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{Kind: m.Kind, Level: m.Level, Body: m.Body, CreatedAt: m.CreatedAt.Format(time.RFC3339Nano)})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"notifications": out})
}

// Clear empties the caller's inbox.
func (h *Handler) Clear(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	h.inbox.Clear(uid)
	return c.SendStatus(http.StatusNoContent)
}
