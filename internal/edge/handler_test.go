package edge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/earning"
)

func newApp() *fiber.App {
	app := fiber.New()
	NewHandler(earning.NewGenerator(3)).Register(app.Group("/functions"))
	return app
}

func TestHello(t *testing.T) {
	app := newApp()
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, err := app.Test(httptest.NewRequest(method, "/functions/hello", nil))
		if err != nil {
			t.Fatalf("%s request: %v", method, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", method, resp.StatusCode)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["message"] != HelloMessage {
			t.Fatalf("unexpected message %q", body["message"])
		}
	}
}

func TestGenerateEarning(t *testing.T) {
	app := newApp()
	req := httptest.NewRequest(http.MethodPost, "/functions/generate-earning", strings.NewReader(`{"agentId":"a1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://dashboard.example")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AgentID != "a1" || body.Type != "earning" || !earning.IsCatalogMethod(body.Source) {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Amount < 0.01 || body.Amount > 2.00 {
		t.Fatalf("amount %v out of range", body.Amount)
	}
	if body.CreatedAt == "" {
		t.Fatalf("missing created_at")
	}
}

func TestGenerateEarningRejectsMalformedJSON(t *testing.T) {
	app := newApp()
	req := httptest.NewRequest(http.MethodPost, "/functions/generate-earning", strings.NewReader(`{"agentId":`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestPreflight(t *testing.T) {
	app := newApp()
	req := httptest.NewRequest(http.MethodOptions, "/functions/generate-earning", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Fatalf("unexpected allow methods %q", got)
	}
}
