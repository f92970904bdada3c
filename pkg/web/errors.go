package web

import (
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleStorageError provides typed handling for persistence layer errors.
func handleStorageError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsConversationNotFound(err):
		return notFound(c, "conversation not found")
	case persistence.IsUserNotFound(err):
		return notFound(c, "user not found")
	case persistence.IsTaskNotFound(err):
		return notFound(c, "task not found")
	case persistence.IsConversationConflict(err):
		return conflict(c, "conversation was updated concurrently")
	default:
		return internalError(c, err)
	}
}

// turnError maps a failed turn's error kind to a problem response. A failed
// turn is a 500 except for the kinds the caller can act upon.
func turnError(c fiber.Ctx, kind, details string) error {
	switch kind {
	case "conversation_not_found":
		return notFound(c, "conversation not found")
	case "conversation_conflict":
		return conflict(c, details)
	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType(kind).
			WithDetail(details)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
