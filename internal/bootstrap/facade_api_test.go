package bootstrap

import (
	"net/http/httptest"
	"testing"
	"time"

	"facade_server/adapter/in/http"
	"facade_server/config"

	"github.com/nalgeon/be"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Environment:     "test",
		CallTimeout:     time.Second,
		SendLocation:    time.UTC,
		AllowedOrigins:  []string{"https://chat.example.com"},
		RateLimitPerMin: 2,
	}
}

func TestNewApp_Middleware(t *testing.T) {
	app := NewApp(testConfig(), http.NewHealthHandler(nil, nil, nil, nil))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("Origin", "https://chat.example.com")
	resp, err := app.Test(req)
	be.Err(t, err, nil)
	be.Equal(t, resp.StatusCode, 200)
	be.Equal(t, resp.Header.Get("X-Request-ID"), "req-1")
	be.Equal(t, resp.Header.Get("X-Content-Type-Options"), "nosniff")
	be.Equal(t, resp.Header.Get("Access-Control-Allow-Origin"), "https://chat.example.com")
}

func TestNewApp_UnknownRoute(t *testing.T) {
	app := NewApp(testConfig())

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	be.Err(t, err, nil)
	be.Equal(t, resp.StatusCode, 404)
}

func TestNewApp_RateLimit(t *testing.T) {
	app := NewApp(testConfig(), http.NewHealthHandler(nil, nil, nil, nil))

	// health checks are exempt
	for range 5 {
		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		be.Err(t, err, nil)
		be.Equal(t, resp.StatusCode, 200)
	}

	var last int
	for range 3 {
		resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
		be.Err(t, err, nil)
		last = resp.StatusCode
	}
	be.Equal(t, last, 429)
}
