package edge

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ghost-swarm/ghost_swarm/internal/earning"
)

// HelloMessage is the static greeting served by the hello function.
const HelloMessage = "Hello from Ghost Swarm edge functions!"

// Handler serves the stateless edge functions. Nothing it produces is persisted.
type Handler struct {
	generator *earning.Generator
}

// NewHandler builds the edge handler around a shared generator.
func NewHandler(generator *earning.Generator) *Handler {
	return &Handler{generator: generator}
}

type generateRequest struct {
	AgentID string `json:"agentId"`
}

type generateResponse struct {
	Amount    float64 `json:"amount"`
	Source    string  `json:"source"`
	AgentID   string  `json:"agent_id"`
	Type      string  `json:"type"`
	CreatedAt string  `json:"created_at"`
}

// CORS allows any origin to call the edge functions.
func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: strings.Join([]string{fiber.MethodPost, fiber.MethodGet, fiber.MethodOptions}, ", "),
		AllowHeaders: "Content-Type, Authorization",
	})
}

// Register mounts the edge functions on router.
func (h *Handler) Register(router fiber.Router) {
	router.Use(CORS())
	router.Get("/hello", h.Hello)
	router.Post("/hello", h.Hello)
	router.Post("/generate-earning", h.GenerateEarning)
}

// Hello returns the static greeting.
func (h *Handler) Hello(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": HelloMessage})
}

// GenerateEarning returns one random earning for the requested agent. The source is
// always drawn from the catalog.
func (h *Handler) GenerateEarning(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	p := h.generator.Generate(earning.Agent{ID: req.AgentID})
	return c.Status(http.StatusOK).JSON(generateResponse{
		Amount:    p.Amount.Float64(),
		Source:    p.Source,
		AgentID:   p.AgentID,
		Type:      p.Kind,
		CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
	})
}
