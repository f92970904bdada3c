// Package main provides the form agent API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/planner"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	planner     *planner.Service
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	plannerService *planner.Service,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		planner:     plannerService,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.planner, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Form Agent API")
	})

	conversations := app.Group("/conversations")
	conversations.Post("/", handlers.CreateConversation)
	conversations.Get("/:id", handlers.GetConversation)
	conversations.Get("/:id/versions", handlers.GetConversationVersions)
	conversations.Post("/:id/turns", handlers.RunTurn)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
