package bootstrap

import (
	"context"
	"strings"
	"time"

	"facade_server/adapter/in/http"
	"facade_server/config"
	"facade_server/infra/middleware"
	"facade_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const stopTimeout = 30 * time.Second

// Registrar is a handler group that mounts its own routes.
type Registrar interface {
	Register(router fiber.Router)
}

// NewAPI builds the dependencies, starts the scheduler and returns the app.
// cleanup stops the scheduler and releases connections.
func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	deps, release, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	if err := deps.Scheduler.Start(context.Background()); err != nil {
		release()
		return nil, nil, err
	}

	app := NewApp(cfg,
		http.NewHealthHandler(deps.Guard, deps.Latency, deps.Scheduler, deps.Redis),
		http.NewMailHandler(deps.MailService),
		http.NewScheduleHandler(deps.MailService),
	)

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := deps.Scheduler.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Scheduler did not stop cleanly")
		}
		release()
	}
	return app, cleanup, nil
}

// NewApp creates the Fiber app with the global middleware stack and mounts
// the given handlers at the root.
func NewApp(cfg *config.Config, handlers ...Registrar) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 4 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		MaxAge:        86400,
	}))

	if cfg.RateLimitPerMin > 0 {
		app.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
	}

	for _, h := range handlers {
		h.Register(app)
	}
	return app
}
