// Package web provides HTTP handlers and REST API endpoints for conversations
// and planner turns.
package web

import (
	"net/http"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/planner"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// UserIDHeader carries the authenticated user id. Authentication itself is a
// gateway concern; this surface trusts the header.
const UserIDHeader = "X-User-ID"

type APIHandlers struct {
	planner     *planner.Service
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	plannerService *planner.Service,
	store persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		planner:     plannerService,
		persistence: store,
		validator:   validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Form agent API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Form agent API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateConversation(c fiber.Ctx) error {
	userID := c.Get(UserIDHeader)
	if userID == "" {
		return badRequest(c, UserIDHeader+" header is required")
	}

	var req CreateConversationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.persistence.UserByID(c.Context(), userID); err != nil {
		return handleStorageError(c, err)
	}

	now := time.Now().UTC()
	conversation := &models.Conversation{
		UserID:    userID,
		Title:     req.Title,
		Status:    models.ConversationStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.persistence.SaveConversation(c.Context(), conversation); err != nil {
		return handleStorageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(conversation)
}

func (h *APIHandlers) GetConversation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Conversation ID is required")
	}

	conversation, err := h.persistence.ConversationByID(c.Context(), id)
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(conversation)
}

func (h *APIHandlers) GetConversationVersions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Conversation ID is required")
	}

	if _, err := h.persistence.ConversationByID(c.Context(), id); err != nil {
		return handleStorageError(c, err)
	}

	versions, err := h.persistence.SnapshotVersions(c.Context(), id)
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation_id": id,
		"versions":        versions,
	})
}

// RunTurn runs one synchronous planner turn. The response may take seconds;
// model latency dominates.
func (h *APIHandlers) RunTurn(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Conversation ID is required")
	}

	var req RunTurnRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.planner.RunTurn(c.Context(), planner.TurnInput{
		ConversationID: id,
		Prompt:         req.Prompt,
		Documents:      req.Documents,
	})
	if err != nil {
		return handleStorageError(c, err)
	}

	if result.Error != "" {
		return turnError(c, result.Error, result.Details)
	}

	return c.JSON(result)
}
