package settings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/logging"
	"github.com/ghost-swarm/ghost_swarm/internal/notification"
)

// Handler exposes the settings endpoints.
type Handler struct {
	service  *Service
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewHandler builds the settings HTTP handler.
func NewHandler(service *Service, notifier notification.Notifier, logger *slog.Logger) *Handler {
	return &Handler{service: service, notifier: notifier, logger: logging.Component(logger, "settings")}
}

// Get returns the caller's settings.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	s, err := h.service.Load(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(s)
}

// Put replaces the caller's settings.
func (h *Handler) Put(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req Settings
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	saved, err := h.service.Save(c.UserContext(), uid, req)
	if err != nil {
		if errors.Is(err, ErrInvalidPayoutAddress) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if h.notifier != nil {
		err := h.notifier.Send(c.UserContext(), notification.Message{
			Kind:        notification.KindSettingsSaved,
			Level:       notification.LevelSuccess,
			Destination: uid,
			Body:        "Settings saved!",
		})
		if err != nil {
			h.logger.Warn("notify failed", slog.String("user_id", uid), slog.Any("error", err))
		}
	}
	return c.Status(http.StatusOK).JSON(saved)
}
