package http

import (
	"fmt"

	"facade_server/core/port/in"
	"facade_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ScheduleHandler exposes the status of delayed sends.
type ScheduleHandler struct {
	svc in.ScheduleService
}

func NewScheduleHandler(svc in.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{svc: svc}
}

// Register registers scheduled-job routes.
func (h *ScheduleHandler) Register(router fiber.Router) {
	jobs := router.Group("/schedule")
	jobs.Get("/", h.ListJobs)
	jobs.Get("/:id", h.GetJob)
	jobs.Delete("/:id", h.CancelJob)
}

// ListJobs
// GET /schedule
func (h *ScheduleHandler) ListJobs(c *fiber.Ctx) error {
	jobs, err := h.svc.ListJobs(c.UserContext())
	if err != nil {
		return fmt.Errorf("Error listing scheduled emails: %w", err)
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// GetJob
// GET /schedule/:id
func (h *ScheduleHandler) GetJob(c *fiber.Ctx) error {
	job, err := h.svc.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return fmt.Errorf("Error reading scheduled email: %w", err)
	}
	return c.JSON(job)
}

// CancelJob cancels a job that has not fired yet.
// DELETE /schedule/:id
func (h *ScheduleHandler) CancelJob(c *fiber.Ctx) error {
	job, err := h.svc.CancelJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return fmt.Errorf("Error cancelling scheduled email: %w", err)
	}
	return response.OK(c, "Scheduled email cancelled", job)
}
