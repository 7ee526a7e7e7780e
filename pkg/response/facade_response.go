// Package response renders the facade's JSON bodies.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Result is the body of every successful mutating call.
type Result struct {
	Message  string `json:"message"`
	Response any    `json:"response,omitempty"`
}

// Detail is the body of every failed call.
type Detail struct {
	Detail string `json:"detail"`
}

// OK returns {message, response}.
func OK(c *fiber.Ctx, message string, resp any) error {
	return c.JSON(Result{Message: message, Response: resp})
}

// Message returns {message}.
func Message(c *fiber.Ctx, message string) error {
	return c.JSON(Result{Message: message})
}

// Fail returns {detail} with the given status.
func Fail(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(Detail{Detail: detail})
}

// InternalError returns a 500 {detail}.
func InternalError(c *fiber.Ctx, detail string) error {
	return Fail(c, fiber.StatusInternalServerError, detail)
}
