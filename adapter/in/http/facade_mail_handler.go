package http

import (
	"errors"
	"fmt"

	"facade_server/core/port/in"
	"facade_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const welcomeMessage = "Welcome to Gmail Search GPT Backend"

// MailHandler handles the mailbox endpoints.
type MailHandler struct {
	svc in.MailService
}

func NewMailHandler(svc in.MailService) *MailHandler {
	return &MailHandler{svc: svc}
}

// Register registers mail routes.
func (h *MailHandler) Register(router fiber.Router) {
	router.Get("/", h.Home)
	router.Get("/search", h.Search)
	router.Post("/reply", h.Reply)
	router.Post("/star", h.Star)
	router.Post("/snooze", h.Snooze)
	router.Post("/mark", h.Mark)
	router.Post("/schedule", h.Schedule)
}

// Home
// GET /
func (h *MailHandler) Home(c *fiber.Ctx) error {
	return response.Message(c, welcomeMessage)
}

// Search returns full content for one page of matching messages.
// GET /search?query=...&max_results=5
func (h *MailHandler) Search(c *fiber.Ctx) error {
	fail := func(err error) error { return fmt.Errorf("Failed to search emails: %w", err) }

	maxResults, err := queryInt64(c, "max_results", "maxResults")
	if err != nil {
		return fail(err)
	}

	emails, err := h.svc.Search(c.UserContext(), c.Query("query"), maxResults)
	if err != nil {
		return fail(err)
	}
	if len(emails) == 0 {
		return response.Message(c, "No emails found.")
	}
	return c.JSON(fiber.Map{"emails": emails})
}

// Reply answers the sender of a message.
// POST /reply {email_id, message_body, cc?, bcc?}
func (h *MailHandler) Reply(c *fiber.Ctx) error {
	fail := func(err error) error { return fmt.Errorf("Failed to send email reply: %w", err) }

	var req in.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(fmt.Errorf("invalid request body: %w", err))
	}
	if req.EmailID == "" {
		return fail(errors.New("email_id is required"))
	}

	res, err := h.svc.Reply(c.UserContext(), &req)
	if err != nil {
		return fail(err)
	}
	return response.OK(c, "Reply sent successfully", res)
}

// Star
// POST /star?email_id=...
func (h *MailHandler) Star(c *fiber.Ctx) error {
	fail := func(err error) error { return fmt.Errorf("Error starring email: %w", err) }

	emailID, err := requireQuery(c, "email_id")
	if err != nil {
		return fail(err)
	}
	res, err := h.svc.Star(c.UserContext(), emailID)
	if err != nil {
		return fail(err)
	}
	return response.OK(c, "Email starred successfully", res)
}

// Snooze applies the snooze label, creating it on first use.
// POST /snooze?email_id=...
func (h *MailHandler) Snooze(c *fiber.Ctx) error {
	fail := func(err error) error { return fmt.Errorf("Error snoozing email: %w", err) }

	emailID, err := requireQuery(c, "email_id")
	if err != nil {
		return fail(err)
	}
	res, err := h.svc.Snooze(c.UserContext(), emailID)
	if err != nil {
		return fail(err)
	}
	return response.OK(c, "Email snoozed successfully", res)
}

// Mark sets read/unread and important.
// POST /mark?email_id=...&as_read=false&as_important=false
func (h *MailHandler) Mark(c *fiber.Ctx) error {
	fail := func(err error) error { return fmt.Errorf("Error marking email: %w", err) }

	emailID, err := requireQuery(c, "email_id")
	if err != nil {
		return fail(err)
	}
	asRead, err := queryBool(c, "as_read", false)
	if err != nil {
		return fail(err)
	}
	asImportant, err := queryBool(c, "as_important", false)
	if err != nil {
		return fail(err)
	}

	res, err := h.svc.Mark(c.UserContext(), emailID, asRead, asImportant)
	if err != nil {
		return fail(err)
	}
	return response.OK(c, "Email updated successfully", res)
}

// Schedule registers a delayed send. The response only confirms the job
// is queued; response carries the job as first stored.
// POST /schedule?to_email&subject&body&send_time=YYYY-MM-DD HH:MM:SS&cc&bcc
func (h *MailHandler) Schedule(c *fiber.Ctx) error {
	fail := func(err error) error { return fmt.Errorf("Error scheduling email: %w", err) }

	req := in.ScheduleRequest{
		Subject: c.Query("subject"),
		Body:    c.Query("body"),
		Cc:      c.Query("cc"),
		Bcc:     c.Query("bcc"),
	}
	var err error
	if req.To, err = requireQuery(c, "to_email"); err != nil {
		return fail(err)
	}
	if req.SendTime, err = requireQuery(c, "send_time"); err != nil {
		return fail(err)
	}

	res, err := h.svc.Schedule(c.UserContext(), &req)
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{
		"message":  res.Message,
		"response": res.Job,
		"job_id":   res.Job.JobID,
	})
}
