package swarm

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/agent"
	"github.com/ghost-swarm/ghost_swarm/internal/ledger"
)

// Handler exposes the dashboard and swarm control endpoints.
type Handler struct {
	manager *Manager
	ledger  ledger.Ledger
}

// NewHandler builds the swarm HTTP handler.
func NewHandler(manager *Manager, l ledger.Ledger) *Handler {
	return &Handler{manager: manager, ledger: l}
}

type transactionResponse struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	Amount    string `json:"amount"`
	Source    string `json:"source"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

type agentResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Earnings string `json:"earnings"`
	Method   string `json:"method"`
}

type statusResponse struct {
	AutoMode      bool   `json:"auto_mode"`
	Activating    bool   `json:"activating"`
	Progress      int    `json:"progress"`
	BurstsRunning int    `json:"bursts_running"`
	Agents        int    `json:"agents"`
	Balance       string `json:"balance"`
}

type dashboardResponse struct {
	Balance      string                `json:"balance"`
	Agents       int                   `json:"agents"`
	Transactions []transactionResponse `json:"transactions"`
	Leaderboard  []agentResponse       `json:"leaderboard"`
	Status       statusResponse        `json:"status"`
}

type autoModeRequest struct {
	Enabled *bool `json:"enabled"`
}

// Dashboard returns balance, recent activity, leaderboard and control state.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	snap := s.Snapshot()
	return c.Status(http.StatusOK).JSON(dashboardResponse{
		Balance:      snap.Balance.String(),
		Agents:       snap.Agents,
		Transactions: toTransactionResponses(snap.Transactions),
		Leaderboard:  toAgentResponses(snap.Leaderboard),
		Status:       toStatusResponse(snap.Status),
	})
}

// SetAuto toggles the earnings loop.
func (h *Handler) SetAuto(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req autoModeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Enabled == nil {
		return fiber.NewError(http.StatusBadRequest, "enabled is required")
	}
	if err := s.SetAutoMode(*req.Enabled); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toStatusResponse(s.Status()))
}

// Activate starts an activation sequence.
func (h *Handler) Activate(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.Activate(); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusAccepted).JSON(toStatusResponse(s.Status()))
}

// CancelBurst stops any running burst.
func (h *Handler) CancelBurst(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	cancelled := s.CancelBurst()
	return c.Status(http.StatusOK).JSON(fiber.Map{"cancelled": cancelled})
}

// Status returns the control-panel state.
func (h *Handler) Status(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toStatusResponse(s.Status()))
}

// Leaderboard returns the top earning agents.
func (h *Handler) Leaderboard(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toAgentResponses(s.Roster().Leaderboard(LeaderboardSize)))
}

// Transactions lists stored transactions, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	limit := c.QueryInt("limit", ledger.MaxRecent)
	if limit <= 0 {
		return fiber.NewError(http.StatusBadRequest, "limit must be positive")
	}
	txs, err := h.ledger.Recent(c.UserContext(), uid, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponses(txs))
}

// Reconcile reports drift between the stored balance and the ledger.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	r, err := s.Reconcile(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"stored":     r.Stored.String(),
		"expected":   r.Expected.String(),
		"in_memory":  r.InMemory.String(),
		"drift":      r.Drift.String(),
		"consistent": r.Consistent(),
	})
}

func (h *Handler) session(c *fiber.Ctx) (*Session, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return nil, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	s, err := h.manager.Session(c.UserContext(), uid)
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrActivationInProgress):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSessionClosed):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func toTransactionResponses(txs []ledger.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:        tx.ID,
			AgentID:   tx.AgentID,
			Amount:    tx.Amount.String(),
			Source:    tx.Source,
			Type:      tx.Kind,
			CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func toAgentResponses(agents []agent.Agent) []agentResponse {
	out := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentResponse{ID: a.ID, Name: a.Name, Earnings: a.Earnings.String(), Method: a.Method})
	}
	return out
}

func toStatusResponse(st Status) statusResponse {
	return statusResponse{
		AutoMode:      st.AutoMode,
		Activating:    st.Activating,
		Progress:      st.Progress,
		BurstsRunning: st.BurstsRunning,
		Agents:        st.Agents,
		Balance:       st.Balance.String(),
	}
}
