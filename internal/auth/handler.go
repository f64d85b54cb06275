package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/identity"
)

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	ids      *identity.Service
	svc      *Service
	onLogout []func(userID string)
}

// NewHandler builds the auth handler. onLogout hooks run after a session is cleared.
func NewHandler(ids *identity.Service, svc *Service, onLogout ...func(userID string)) *Handler {
	return &Handler{ids: ids, svc: svc, onLogout: onLogout}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	UserID      string `json:"user_id,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login validates credentials and returns an access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	token, err := h.svc.Login(c.UserContext(), user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(tokenResponse{UserID: user.ID, AccessToken: token.AccessToken, TokenType: "Bearer", ExpiresIn: token.ExpiresIn})
}

// Refresh issues a new access token for the caller's live session.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	raw, _ := c.Locals("access_token").(string)
	if raw == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	token, err := h.svc.Refresh(c.UserContext(), raw)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(tokenResponse{AccessToken: token.AccessToken, TokenType: "Bearer", ExpiresIn: token.ExpiresIn})
}

// Logout clears the caller's session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	for _, hook := range h.onLogout {
		hook(uid)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
