// Package middleware holds the Fiber middleware shared by every route.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"facade_server/pkg/apperr"
	"facade_server/pkg/logger"
	"facade_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDLocal = "request_id"

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDLocal).(string)
	return id
}

// ErrorHandler renders every error as {"detail": "..."}. Application errors
// are all 500s; Fiber's own errors (unknown route, body too large) keep
// their status.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return response.Fail(c, fe.Code, fe.Message)
		}

		log := logger.WithFields(apperr.FieldsOf(err)).WithFields(map[string]any{
			"request_id": requestID(c),
			"error_code": apperr.CodeOf(err),
			"path":       c.Path(),
		})
		log.Error("%s %s failed: %v", c.Method(), c.Path(), err)

		return response.InternalError(c, err.Error())
	}
}

// RequestID takes X-Request-ID from the caller or generates one, and puts
// it in the locals, the user context and the response header.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(requestIDLocal, id)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.RequestIDKey, id))
		c.Set(fiber.HeaderXRequestID, id)
		return c.Next()
	}
}

// RequestLogger logs one line per request at a level chosen by status.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler runs after us
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		log := logger.WithFields(map[string]any{
			"request_id": requestID(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"ip":         c.IP(),
		}).WithDuration(time.Since(start))

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request failed")
		case status >= fiber.StatusBadRequest:
			log.Warn("request rejected")
		default:
			log.Info("request completed")
		}
		return err
	}
}

// Recover turns a handler panic into a 500 {detail} response.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.WithFields(map[string]any{
				"request_id": requestID(c),
				"panic":      fmt.Sprint(r),
				"path":       c.Path(),
				"stack":      string(debug.Stack()),
			}).Error("panic recovered")
			err = response.InternalError(c, "An unexpected error occurred")
		}()
		return c.Next()
	}
}
