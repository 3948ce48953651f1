package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func testApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxReasonLength: 100, MaxDaysRequested: 30}))
	app.Post("/api/v1/decide", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/policy/documents", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp.StatusCode
}

func TestValidDecidePasses(t *testing.T) {
	app := testApp()
	code := postJSON(t, app, "/api/v1/decide",
		`{"reason_text":"My grandfather passed away","days_requested":3}`)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestMissingReasonRejected(t *testing.T) {
	app := testApp()
	code := postJSON(t, app, "/api/v1/decide", `{"days_requested":3}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing reason_text, got %d", code)
	}
}

func TestOversizedReasonRejected(t *testing.T) {
	app := testApp()
	long := strings.Repeat("x", 200)
	code := postJSON(t, app, "/api/v1/decide",
		`{"reason_text":"`+long+`","days_requested":3}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for oversized reason_text, got %d", code)
	}
}

func TestDaysRequestedOutOfRange(t *testing.T) {
	app := testApp()
	code := postJSON(t, app, "/api/v1/decide",
		`{"reason_text":"flu","days_requested":400}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range days_requested, got %d", code)
	}
}

func TestMalformedJSONRejected(t *testing.T) {
	app := testApp()
	code := postJSON(t, app, "/api/v1/decide", `{not json`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", code)
	}
}

func TestGetRequestsPassThrough(t *testing.T) {
	app := testApp()
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected GETs untouched, got %d", resp.StatusCode)
	}
}

func TestOversizedDocumentBatchRejected(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{MaxDocumentSize: 64}))
	app.Post("/api/v1/policy/documents", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	body := `{"documents":[{"source_id":"a","format":"md","content":"` + strings.Repeat("y", 200) + `"}]}`
	code := postJSON(t, app, "/api/v1/policy/documents", body)
	if code != fiber.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized batch, got %d", code)
	}
}
