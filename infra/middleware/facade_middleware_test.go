package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"facade_server/pkg/apperr"
	"facade_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/nalgeon/be"
)

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(Recover(), RequestID(), RequestLogger(), SecurityHeaders())
	return app
}

func detailOf(t *testing.T, body io.Reader) string {
	t.Helper()
	var out struct {
		Detail string `json:"detail"`
	}
	be.Err(t, json.NewDecoder(body).Decode(&out), nil)
	return out.Detail
}

func TestErrorHandler(t *testing.T) {
	app := newApp()
	app.Get("/app", func(c *fiber.Ctx) error {
		return apperr.LabelOperation("Snoozed", errors.New("quota"))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("unexpected")
	})

	tests := []struct {
		path   string
		status int
		detail string
	}{
		{"/app", 500, `label operation failed for "Snoozed": quota`},
		{"/plain", 500, "boom"},
		{"/panic", 500, "An unexpected error occurred"},
		{"/nope", 404, "Cannot GET /nope"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			be.Err(t, err, nil)
			be.Equal(t, resp.StatusCode, tt.status)
			be.Equal(t, detailOf(t, resp.Body), tt.detail)
		})
	}
}

func TestRequestID(t *testing.T) {
	app := newApp()
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.UserContext().Value(logger.RequestIDKey).(string)
		return c.SendString(id)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	be.Err(t, err, nil)
	be.Equal(t, resp.Header.Get("X-Request-ID"), "req-123")
	body, _ := io.ReadAll(resp.Body)
	be.Equal(t, string(body), "req-123")

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	be.Err(t, err, nil)
	be.Equal(t, len(resp.Header.Get("X-Request-ID")), 36)
	be.Equal(t, resp.Header.Get("X-Content-Type-Options"), "nosniff")
}

func TestRateLimit(t *testing.T) {
	app := newApp()
	app.Use(RateLimit(2, time.Minute))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		be.Err(t, err, nil)
		be.Equal(t, resp.StatusCode, 200)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	be.Err(t, err, nil)
	be.Equal(t, resp.StatusCode, 429)
	be.Equal(t, detailOf(t, resp.Body), "rate limit exceeded")

	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	be.Err(t, err, nil)
	be.Equal(t, resp.StatusCode, 200)
}
